package txbuilder

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"ethhelper/internal/chain"
)

type FeeParams struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// Intent is what the caller wants executed. A nil To deploys Data as
// contract creation code. Gas 0 asks for an estimate.
type Intent struct {
	From  common.Address
	To    *common.Address
	Data  []byte
	Value *big.Int
	Gas   uint64
}

func (i Intent) CallMsg() ethereum.CallMsg {
	return ethereum.CallMsg{
		From:  i.From,
		To:    i.To,
		Value: orZero(i.Value),
		Data:  i.Data,
	}
}

// ChainState is a per-call snapshot. GasPrice, MinPriorityFee and Balance
// are only read when the transaction will be signed locally.
type ChainState struct {
	ChainID        *big.Int
	Nonce          uint64
	GasPrice       *big.Int
	MinPriorityFee *big.Int
	Balance        *big.Int
}

func ReadChainState(ctx context.Context, client StateReader, account common.Address, signing bool) (*ChainState, error) {
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	nonce, err := client.PendingNonceAt(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	state := &ChainState{ChainID: chainID, Nonce: nonce}
	if !signing {
		return state, nil
	}
	if state.GasPrice, err = client.SuggestGasPrice(ctx); err != nil {
		return nil, fmt.Errorf("gas price: %w", err)
	}
	if state.MinPriorityFee, err = client.SuggestGasTipCap(ctx); err != nil {
		return nil, fmt.Errorf("max priority fee: %w", err)
	}
	if state.Balance, err = client.BalanceAt(ctx, account, nil); err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}
	return state, nil
}

// UnsignedTx carries fee fields only when it is going to be signed locally.
type UnsignedTx struct {
	From    common.Address
	To      *common.Address
	Data    []byte
	Nonce   uint64
	ChainID *big.Int
	Gas     uint64
	Value   *big.Int
	Fees    *FeeParams
}

func BuildTransaction(state *ChainState, intent Intent, gas uint64, signing bool, calc FeeCalculator) *UnsignedTx {
	tx := &UnsignedTx{
		From:    intent.From,
		To:      intent.To,
		Data:    intent.Data,
		Nonce:   state.Nonce,
		ChainID: state.ChainID,
		Gas:     gas,
		Value:   new(big.Int).Set(orZero(intent.Value)),
	}
	if signing {
		if calc == nil {
			calc = ComputeFees
		}
		fees := calc(state.GasPrice, state.MinPriorityFee)
		tx.Fees = &fees
	}
	return tx
}

// MaxCost is (maxFee + maxPriorityFee) * gas + value.
func (u *UnsignedTx) MaxCost() *big.Int {
	cost := new(big.Int)
	if u.Fees != nil {
		cost.Add(orZero(u.Fees.MaxFeePerGas), orZero(u.Fees.MaxPriorityFeePerGas))
	}
	cost.Mul(cost, new(big.Int).SetUint64(u.Gas))
	return cost.Add(cost, orZero(u.Value))
}

func (u *UnsignedTx) DynamicFeeTx() (*types.Transaction, error) {
	if u.ChainID == nil {
		return nil, errors.New("chainID is required")
	}
	if u.Value == nil {
		return nil, errors.New("value is required")
	}
	if u.Gas == 0 {
		return nil, errors.New("gasLimit is required")
	}
	if u.Fees == nil || u.Fees.MaxFeePerGas == nil || u.Fees.MaxPriorityFeePerGas == nil {
		return nil, errors.New("maxFeePerGas and maxPriorityFeePerGas are required")
	}
	if u.Fees.MaxFeePerGas.Sign() < 0 || u.Fees.MaxPriorityFeePerGas.Sign() < 0 {
		return nil, errors.New("fee values must be non-negative")
	}
	if u.Value.Sign() < 0 {
		return nil, errors.New("value must be non-negative")
	}
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   u.ChainID,
		Nonce:     u.Nonce,
		Gas:       u.Gas,
		GasFeeCap: u.Fees.MaxFeePerGas,
		GasTipCap: u.Fees.MaxPriorityFeePerGas,
		To:        u.To,
		Value:     u.Value,
		Data:      u.Data,
	}), nil
}

// ManagedArgs leaves fee fields to the node's own policy.
func (u *UnsignedTx) ManagedArgs() chain.TxArgs {
	args := chain.TxArgs{
		From:  u.From,
		To:    u.To,
		Gas:   hexutil.Uint64(u.Gas),
		Value: (*hexutil.Big)(orZero(u.Value)),
		Nonce: hexutil.Uint64(u.Nonce),
		Data:  u.Data,
	}
	if u.ChainID != nil {
		args.ChainID = (*hexutil.Big)(u.ChainID)
	}
	return args
}

func (u *UnsignedTx) LogAttrs() []any {
	attrs := []any{
		"from", u.From.Hex(),
		"to", addrToHex(u.To),
		"nonce", u.Nonce,
		"chain_id", bigString(u.ChainID),
		"gas", u.Gas,
		"value", bigString(u.Value),
		"data_len", len(u.Data),
	}
	if u.Fees != nil {
		attrs = append(attrs,
			"max_fee_wei", bigString(u.Fees.MaxFeePerGas),
			"priority_fee_wei", bigString(u.Fees.MaxPriorityFeePerGas),
		)
	}
	return attrs
}

func addrToHex(addr *common.Address) string {
	if addr == nil {
		return ""
	}
	return addr.Hex()
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
