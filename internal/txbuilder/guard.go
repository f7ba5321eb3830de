package txbuilder

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// CostSummary is what a human is asked to approve before signing.
type CostSummary struct {
	Gas                  uint64
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	Value                *big.Int
	Balance              *big.Int
}

func (s CostSummary) Fee() *big.Int {
	return new(big.Int).Mul(orZero(s.GasPrice), new(big.Int).SetUint64(s.Gas))
}

func (s CostSummary) MaxFee() *big.Int {
	perGas := new(big.Int).Add(orZero(s.MaxFeePerGas), orZero(s.MaxPriorityFeePerGas))
	return perGas.Mul(perGas, new(big.Int).SetUint64(s.Gas))
}

func (s CostSummary) Cost() *big.Int {
	return new(big.Int).Add(s.Fee(), orZero(s.Value))
}

func (s CostSummary) MaxCost() *big.Int {
	return new(big.Int).Add(s.MaxFee(), orZero(s.Value))
}

func (s CostSummary) AfterBalance() *big.Int {
	return new(big.Int).Sub(orZero(s.Balance), s.Cost())
}

func (s CostSummary) MinAfterBalance() *big.Int {
	return new(big.Int).Sub(orZero(s.Balance), s.MaxCost())
}

type Prompter interface {
	Confirm(summary CostSummary) (bool, error)
}

type Guard struct {
	prompter Prompter
	logger   *slog.Logger
}

func NewGuard(prompter Prompter, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{prompter: prompter, logger: logger}
}

// SignIfRequested returns (nil, nil) when key is nil; the transaction is then
// left for the node to sign. With a key it checks the sender, the worst-case
// cost against balance and, when confirm is set, asks the prompter.
func (g *Guard) SignIfRequested(tx *UnsignedTx, key *ecdsa.PrivateKey, balance *big.Int, confirm bool) (*types.Transaction, error) {
	if key == nil {
		return nil, nil
	}
	if tx == nil {
		return nil, errors.New("transaction is nil")
	}
	derived := crypto.PubkeyToAddress(key.PublicKey)
	if derived != tx.From {
		return nil, &KeyMismatchError{Expected: tx.From, Derived: derived}
	}
	if tx.Fees == nil {
		return nil, errors.New("fee fields are required for local signing")
	}

	summary := tx.costSummary(balance)
	maxCost := summary.MaxCost()
	if maxCost.Cmp(orZero(balance)) > 0 {
		return nil, &InsufficientBalanceError{Balance: new(big.Int).Set(orZero(balance)), MaxCost: maxCost}
	}

	if confirm {
		if g.prompter == nil {
			return nil, errors.New("confirmation requested but no prompter configured")
		}
		ok, err := g.prompter.Confirm(summary)
		if err != nil {
			return nil, fmt.Errorf("confirmation prompt: %w", err)
		}
		if !ok {
			return nil, ErrUserCancelled
		}
	}

	unsigned, err := tx.DynamicFeeTx()
	if err != nil {
		return nil, err
	}
	signed, err := types.SignTx(unsigned, types.LatestSignerForChainID(tx.ChainID), key)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	g.logger.Debug("transaction signed", "tx_hash", signed.Hash().Hex(), "max_cost_wei", maxCost.String())
	return signed, nil
}

// costSummary reports the base gas price implied by the fee fields.
func (u *UnsignedTx) costSummary(balance *big.Int) CostSummary {
	s := CostSummary{
		Gas:     u.Gas,
		Value:   orZero(u.Value),
		Balance: orZero(balance),
	}
	if u.Fees != nil {
		s.MaxFeePerGas = orZero(u.Fees.MaxFeePerGas)
		s.MaxPriorityFeePerGas = orZero(u.Fees.MaxPriorityFeePerGas)
		s.GasPrice = new(big.Int).Sub(s.MaxFeePerGas, s.MaxPriorityFeePerGas)
		if s.GasPrice.Sign() < 0 {
			s.GasPrice.SetInt64(0)
		}
	}
	return s
}
