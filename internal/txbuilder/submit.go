package txbuilder

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"ethhelper/internal/util"
)

const DefaultReceiptPollInterval = time.Second

// Submit sends signed when present, otherwise hands tx to the node's managed
// account, then blocks until the receipt is mined or ctx ends. The receipt is
// returned as is; a failed status is not an error here.
func Submit(ctx context.Context, client Submitter, tx *UnsignedTx, signed *types.Transaction, pollInterval time.Duration) (*types.Receipt, error) {
	if tx == nil {
		return nil, errors.New("transaction is nil")
	}
	var (
		hash common.Hash
		err  error
	)
	if signed != nil {
		hash = signed.Hash()
		err = client.SendTransaction(ctx, signed)
	} else {
		hash, err = client.SendManagedTransaction(ctx, tx.ManagedArgs())
	}
	if err != nil {
		return nil, reconcile(ctx, client, tx, hash, err)
	}
	receipt, err := WaitReceipt(ctx, client, hash, pollInterval)
	if err != nil {
		return nil, &SubmissionError{Hash: hash, Nonce: tx.Nonce, MaybeSubmitted: true, Err: err}
	}
	return receipt, nil
}

// WaitReceipt polls for the receipt of hash until it exists.
func WaitReceipt(ctx context.Context, client ReceiptReader, hash common.Hash, interval time.Duration) (*types.Receipt, error) {
	if interval <= 0 {
		interval = DefaultReceiptPollInterval
	}
	var receipt *types.Receipt
	err := util.PollUntil(ctx, interval, 0, func(ctx context.Context) (bool, error) {
		r, err := client.TransactionReceipt(ctx, hash)
		if errors.Is(err, ethereum.NotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		receipt = r
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// reconcile decides whether a failed send may still have reached the node: the
// signed hash is known, or the sender's pending nonce moved past ours.
func reconcile(ctx context.Context, client Submitter, tx *UnsignedTx, hash common.Hash, sendErr error) error {
	out := &SubmissionError{Hash: hash, Nonce: tx.Nonce, Err: sendErr}
	if hash != (common.Hash{}) {
		if found, _, err := client.TransactionByHash(ctx, hash); err == nil && found != nil {
			out.MaybeSubmitted = true
			return out
		}
	}
	nonce, err := client.PendingNonceAt(ctx, tx.From)
	if err != nil {
		// Unknown either way.
		out.MaybeSubmitted = true
		return out
	}
	out.MaybeSubmitted = nonce > tx.Nonce
	return out
}
