package txbuilder

import (
	"math/big"
)

const DefaultPriorityFeePercent = 2

// FeeCalculator turns the node's gas price and priority fee floor into the
// EIP-1559 fee fields of a transaction.
type FeeCalculator func(gasPrice, minPriorityFee *big.Int) FeeParams

// ComputeFees uses a 2% premium over gasPrice, never below the node floor.
func ComputeFees(gasPrice, minPriorityFee *big.Int) FeeParams {
	return PercentFeeCalculator(DefaultPriorityFeePercent)(gasPrice, minPriorityFee)
}

func PercentFeeCalculator(percent uint64) FeeCalculator {
	return func(gasPrice, minPriorityFee *big.Int) FeeParams {
		base := orZero(gasPrice)
		tip := new(big.Int).Mul(base, new(big.Int).SetUint64(percent))
		tip.Div(tip, big.NewInt(100))
		if floor := orZero(minPriorityFee); tip.Cmp(floor) < 0 {
			tip.Set(floor)
		}
		return FeeParams{
			MaxFeePerGas:         new(big.Int).Add(base, tip),
			MaxPriorityFeePerGas: tip,
		}
	}
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
