package txbuilder

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var ErrUserCancelled = errors.New("transaction cancelled by user")

type EstimateGasError struct {
	Err     error
	CallMsg ethereum.CallMsg
}

func (e *EstimateGasError) Error() string {
	if e == nil {
		return "estimate gas failed"
	}
	if e.Err == nil {
		return "estimate gas failed"
	}
	return "estimate gas failed: " + e.Err.Error()
}

func (e *EstimateGasError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

type InsufficientBalanceError struct {
	Balance *big.Int
	MaxCost *big.Int
}

func (e *InsufficientBalanceError) Error() string {
	if e == nil || e.Balance == nil || e.MaxCost == nil {
		return "insufficient balance"
	}
	return fmt.Sprintf("insufficient balance: max cost %s wei exceeds balance %s wei", e.MaxCost, e.Balance)
}

type KeyMismatchError struct {
	Expected common.Address
	Derived  common.Address
}

func (e *KeyMismatchError) Error() string {
	if e == nil {
		return "private key does not match sender"
	}
	return fmt.Sprintf("private key belongs to %s, not sender %s", e.Derived.Hex(), e.Expected.Hex())
}

type TransactionFailedError struct {
	Receipt *types.Receipt
}

func (e *TransactionFailedError) Error() string {
	if e == nil || e.Receipt == nil {
		return "transaction failed"
	}
	return fmt.Sprintf("transaction %s failed with status %d", e.Receipt.TxHash.Hex(), e.Receipt.Status)
}

// SubmissionError reports a failure during or after broadcast. When
// MaybeSubmitted is set the node may still include the transaction and the
// caller must reconcile by Hash or Nonce before retrying.
type SubmissionError struct {
	Hash           common.Hash
	Nonce          uint64
	MaybeSubmitted bool
	Err            error
}

func (e *SubmissionError) Error() string {
	if e == nil {
		return "submit transaction failed"
	}
	msg := "submit transaction failed"
	if e.MaybeSubmitted {
		msg = fmt.Sprintf("transaction may have been submitted (nonce %d", e.Nonce)
		if e.Hash != (common.Hash{}) {
			msg += ", hash " + e.Hash.Hex()
		}
		msg += ")"
	}
	if e.Err == nil {
		return msg
	}
	return msg + ": " + e.Err.Error()
}

func (e *SubmissionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// CheckReceipt returns a TransactionFailedError for receipts whose status is
// not successful.
func CheckReceipt(r *types.Receipt) error {
	if r == nil {
		return errors.New("receipt is nil")
	}
	if r.Status != types.ReceiptStatusSuccessful {
		return &TransactionFailedError{Receipt: r}
	}
	return nil
}
