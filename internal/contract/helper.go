package contract

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"ethhelper/internal/decoder"
	"ethhelper/internal/txbuilder"
)

type Backend interface {
	txbuilder.ChainClient
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Sender is the account transactions are sent from. A nil Key leaves signing
// to the node.
type Sender struct {
	Address common.Address
	Key     *ecdsa.PrivateKey
}

type TxOptions struct {
	Sender  Sender
	Gas     uint64
	Value   *big.Int
	Confirm bool
}

// CallResult holds decoded outputs for view calls and the receipt otherwise.
type CallResult struct {
	Kind    Kind
	Outputs []interface{}
	Receipt *types.Receipt
}

type Helper struct {
	backend Backend
	tx      *txbuilder.Transactor
	logger  *slog.Logger
}

func NewHelper(backend Backend, tx *txbuilder.Transactor, logger *slog.Logger) *Helper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Helper{backend: backend, tx: tx, logger: logger}
}

func (h *Helper) Deploy(ctx context.Context, art *Artifact, args []interface{}, opts TxOptions) (*types.Receipt, error) {
	if art == nil {
		return nil, errors.New("artifact is nil")
	}
	if len(art.Bytecode) == 0 {
		return nil, fmt.Errorf("contract %s has no bytecode", art.Name)
	}
	_, kind, err := art.Constructor()
	if err != nil {
		return nil, err
	}
	packed, err := art.ABI.Pack("", args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s constructor arguments: %w", art.Name, err)
	}
	data := append(append([]byte{}, art.Bytecode...), packed...)

	h.logger.Info("deploying contract", "contract", art.Name, "constructor", kind.String())
	receipt, err := h.tx.Transact(ctx, txbuilder.Intent{
		From:  opts.Sender.Address,
		Data:  data,
		Value: h.payableValue(kind, opts.Value),
		Gas:   opts.Gas,
	}, opts.Sender.Key, opts.Confirm)
	if err != nil {
		return nil, err
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		h.logger.Info("contract deployed", "contract", art.Name, "address", receipt.ContractAddress.Hex())
	}
	return receipt, nil
}

// Call reads view functions with eth_call and sends a transaction for any
// other function.
func (h *Helper) Call(ctx context.Context, art *Artifact, address common.Address, function string, args []interface{}, opts TxOptions) (*CallResult, error) {
	if art == nil {
		return nil, errors.New("artifact is nil")
	}
	method, kind, err := art.Function(function)
	if err != nil {
		return nil, err
	}
	data, err := art.ABI.Pack(method.Name, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s arguments: %w", method.Name, err)
	}

	if kind == KindView {
		out, err := h.backend.CallContract(ctx, ethereum.CallMsg{
			From: opts.Sender.Address,
			To:   &address,
			Data: data,
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", method.Name, err)
		}
		values, err := decoder.DecodeOutputs(method, out)
		if err != nil {
			return nil, err
		}
		return &CallResult{Kind: kind, Outputs: values}, nil
	}

	h.logger.Info("calling contract function", "contract", art.Name, "function", method.Name, "mutability", kind.String())
	receipt, err := h.tx.Transact(ctx, txbuilder.Intent{
		From:  opts.Sender.Address,
		To:    &address,
		Data:  data,
		Value: h.payableValue(kind, opts.Value),
		Gas:   opts.Gas,
	}, opts.Sender.Key, opts.Confirm)
	if err != nil {
		return nil, err
	}
	return &CallResult{Kind: kind, Receipt: receipt}, nil
}

func (h *Helper) payableValue(kind Kind, value *big.Int) *big.Int {
	if value == nil || value.Sign() == 0 {
		return new(big.Int)
	}
	if kind != KindPayable {
		h.logger.Warn("target is not payable, sending zero value", "requested_wei", value.String())
		return new(big.Int)
	}
	return new(big.Int).Set(value)
}
