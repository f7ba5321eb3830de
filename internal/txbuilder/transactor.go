package txbuilder

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

type TransactorConfig struct {
	GasMarginPercent    uint64
	FeeCalculator       FeeCalculator
	ReceiptPollInterval time.Duration
}

// Transactor runs one intent through gas resolution, building, the signing
// guard and submission.
type Transactor struct {
	client ChainClient
	guard  *Guard
	logger *slog.Logger
	cfg    TransactorConfig
}

func NewTransactor(client ChainClient, guard *Guard, logger *slog.Logger, cfg TransactorConfig) *Transactor {
	if logger == nil {
		logger = slog.Default()
	}
	if guard == nil {
		guard = NewGuard(nil, logger)
	}
	if cfg.GasMarginPercent == 0 {
		cfg.GasMarginPercent = DefaultGasMarginPercent
	}
	if cfg.FeeCalculator == nil {
		cfg.FeeCalculator = ComputeFees
	}
	if cfg.ReceiptPollInterval <= 0 {
		cfg.ReceiptPollInterval = DefaultReceiptPollInterval
	}
	return &Transactor{client: client, guard: guard, logger: logger, cfg: cfg}
}

// Transact signs locally when key is set and otherwise lets the node sign for
// intent.From.
func (t *Transactor) Transact(ctx context.Context, intent Intent, key *ecdsa.PrivateKey, confirm bool) (*types.Receipt, error) {
	if t.client == nil {
		return nil, errors.New("chain client is required")
	}
	gas, err := resolveGas(ctx, t.client, intent.CallMsg(), intent.Gas, t.cfg.GasMarginPercent)
	if err != nil {
		if reason := RevertReason(err); reason != "" {
			t.logger.Warn("gas estimation reverted", "revert_reason", reason)
		}
		return nil, err
	}
	if intent.Gas == 0 {
		t.logger.Info("gas estimated", "gas", gas, "margin_percent", t.cfg.GasMarginPercent)
	}

	signing := key != nil
	state, err := ReadChainState(ctx, t.client, intent.From, signing)
	if err != nil {
		return nil, err
	}
	tx := BuildTransaction(state, intent, gas, signing, t.cfg.FeeCalculator)
	t.logger.Info("built tx", tx.LogAttrs()...)

	signed, err := t.guard.SignIfRequested(tx, key, state.Balance, confirm)
	if err != nil {
		return nil, err
	}
	if signed != nil {
		t.logger.Info("sending signed transaction", "tx_hash", signed.Hash().Hex())
	} else {
		t.logger.Info("sending transaction through node account", "from", intent.From.Hex())
	}

	receipt, err := Submit(ctx, t.client, tx, signed, t.cfg.ReceiptPollInterval)
	if err != nil {
		return nil, err
	}
	t.logReceipt(ctx, intent, receipt)
	return receipt, nil
}

func (t *Transactor) logReceipt(ctx context.Context, intent Intent, receipt *types.Receipt) {
	if b, err := receipt.MarshalJSON(); err == nil {
		t.logger.Debug("transaction receipt", "receipt", string(b))
	}
	attrs := []any{
		"tx_hash", receipt.TxHash.Hex(),
		"status", receipt.Status,
		"block", receipt.BlockNumber,
		"gas_used", receipt.GasUsed,
	}
	if receipt.ContractAddress != (common.Address{}) {
		attrs = append(attrs, "contract_address", receipt.ContractAddress.Hex())
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		t.logger.Warn("transaction reverted", attrs...)
	} else {
		t.logger.Info("transaction mined", attrs...)
	}
	balance, err := t.client.BalanceAt(ctx, intent.From, nil)
	if err != nil {
		t.logger.Warn("balance after transaction unavailable", "error", err)
		return
	}
	t.logger.Info("balance after transaction", "account", intent.From.Hex(), "ether", FormatUnits(balance, UnitEther))
}

// RevertReason extracts a Solidity revert string from an RPC error, if any.
func RevertReason(err error) string {
	var dataErr interface{ ErrorData() interface{} }
	if !errors.As(err, &dataErr) {
		return ""
	}
	switch v := dataErr.ErrorData().(type) {
	case string:
		if b, derr := hexutil.Decode(v); derr == nil {
			if reason, rerr := abi.UnpackRevert(b); rerr == nil {
				return reason
			}
		}
	case []byte:
		if reason, rerr := abi.UnpackRevert(v); rerr == nil {
			return reason
		}
	}
	return ""
}
