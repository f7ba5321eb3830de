package txbuilder

import (
	"context"
	"math"

	"github.com/ethereum/go-ethereum"
)

const DefaultGasMarginPercent = 10

// ResolveGas returns explicit unchanged when it is non-zero. Otherwise it
// estimates msg and adds a 10% margin, rounded down.
func ResolveGas(ctx context.Context, estimator GasEstimator, msg ethereum.CallMsg, explicit uint64) (uint64, error) {
	return resolveGas(ctx, estimator, msg, explicit, DefaultGasMarginPercent)
}

func resolveGas(ctx context.Context, estimator GasEstimator, msg ethereum.CallMsg, explicit uint64, marginPercent uint64) (uint64, error) {
	if explicit > 0 {
		return explicit, nil
	}
	gas, err := estimator.EstimateGas(ctx, msg)
	if err != nil {
		return 0, &EstimateGasError{Err: err, CallMsg: msg}
	}
	return applyGasMargin(gas, marginPercent), nil
}

// applyGasMargin returns floor(gas * (100+percent) / 100), saturating at
// MaxUint64.
func applyGasMargin(gas uint64, percent uint64) uint64 {
	if percent == 0 {
		return gas
	}
	extra := gas / 100 * percent
	extra += gas % 100 * percent / 100
	if gas > math.MaxUint64-extra {
		return math.MaxUint64
	}
	return gas + extra
}
