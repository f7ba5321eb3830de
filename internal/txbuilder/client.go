package txbuilder

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"ethhelper/internal/chain"
)

type StateReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

type GasEstimator interface {
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

type Submitter interface {
	ReceiptReader
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	SendManagedTransaction(ctx context.Context, args chain.TxArgs) (common.Hash, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// ChainClient is the subset of *chain.Client the transaction path needs.
type ChainClient interface {
	StateReader
	GasEstimator
	Submitter
}

var _ ChainClient = (*chain.Client)(nil)
