package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"ethhelper/internal/util"
)

type HeaderReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

type LogReader interface {
	HeaderReader
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

type BlockNotFoundError struct {
	Number uint64
	Err    error
}

func (e *BlockNotFoundError) Error() string {
	if e == nil {
		return "block not found"
	}
	if e.Err == nil {
		return fmt.Sprintf("block %d not found", e.Number)
	}
	return fmt.Sprintf("block %d not found: %v", e.Number, e.Err)
}

func (e *BlockNotFoundError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// EstimateBlockPeriod is the timestamp distance between probe and its parent.
func EstimateBlockPeriod(ctx context.Context, client HeaderReader, probe uint64) (time.Duration, error) {
	if probe == 0 {
		return 0, &BlockNotFoundError{Number: 0, Err: errors.New("genesis has no parent")}
	}
	cur, err := headerAt(ctx, client, probe)
	if err != nil {
		return 0, err
	}
	prev, err := headerAt(ctx, client, probe-1)
	if err != nil {
		return 0, err
	}
	if cur.Time < prev.Time {
		return 0, nil
	}
	return time.Duration(cur.Time-prev.Time) * time.Second, nil
}

func headerAt(ctx context.Context, client HeaderReader, number uint64) (*types.Header, error) {
	h, err := client.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if errors.Is(err, ethereum.NotFound) || (err == nil && h == nil) {
		return nil, &BlockNotFoundError{Number: number, Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("header %d: %w", number, err)
	}
	return h, nil
}

// Selector picks the logs to wait for. A nil Address matches any emitter.
type Selector struct {
	Address *common.Address
	Topic   common.Hash
}

type PollerConfig struct {
	// MinInterval bounds the sleep from below on chains whose block period
	// rounds to zero.
	MinInterval time.Duration
}

type Poller struct {
	client LogReader
	logger *slog.Logger
	cfg    PollerConfig
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewPoller(client LogReader, logger *slog.Logger, cfg PollerConfig) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 100 * time.Millisecond
	}
	return &Poller{client: client, logger: logger, cfg: cfg, sleep: util.Sleep}
}

// WaitForEvent inspects one block at a time starting at fromBlock until a
// block holds logs matching sel. With timeoutBlocks > 0 it gives up, returning
// no logs, once block fromBlock+timeoutBlocks has been inspected. When the
// chain head is reached it sleeps half a block period before asking again.
func (p *Poller) WaitForEvent(ctx context.Context, sel Selector, fromBlock uint64, timeoutBlocks int64) ([]types.Log, error) {
	period, err := EstimateBlockPeriod(ctx, p.client, fromBlock)
	if err != nil {
		return nil, err
	}
	halfPeriod := period / 2
	if halfPeriod < p.cfg.MinInterval {
		halfPeriod = p.cfg.MinInterval
	}
	p.logger.Debug("waiting for event",
		"topic", sel.Topic.Hex(),
		"from_block", fromBlock,
		"timeout_blocks", timeoutBlocks,
		"block_period", period,
	)

	head, err := p.client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("block number: %w", err)
	}
	queried := fromBlock - 1
	for {
		if queried >= head {
			if err := p.sleep(ctx, halfPeriod); err != nil {
				return nil, err
			}
			if head, err = p.client.BlockNumber(ctx); err != nil {
				return nil, fmt.Errorf("block number: %w", err)
			}
			continue
		}

		queried++
		logs, err := p.client.FilterLogs(ctx, sel.query(queried))
		if err != nil {
			return nil, fmt.Errorf("logs of block %d: %w", queried, err)
		}
		if len(logs) > 0 {
			p.logger.Info("event found", "block", queried, "logs", len(logs))
			return logs, nil
		}
		if timeoutBlocks > 0 && queried >= fromBlock+uint64(timeoutBlocks) {
			p.logger.Info("event wait timed out", "from_block", fromBlock, "last_block", queried)
			return []types.Log{}, nil
		}
	}
}

// WaitForContractEvent waits for the named event emitted by address.
func (p *Poller) WaitForContractEvent(ctx context.Context, address common.Address, event abi.Event, fromBlock uint64, timeoutBlocks int64) ([]types.Log, error) {
	return p.WaitForEvent(ctx, Selector{Address: &address, Topic: event.ID}, fromBlock, timeoutBlocks)
}

func (s Selector) query(block uint64) ethereum.FilterQuery {
	n := new(big.Int).SetUint64(block)
	q := ethereum.FilterQuery{
		FromBlock: n,
		ToBlock:   n,
		Topics:    [][]common.Hash{{s.Topic}},
	}
	if s.Address != nil {
		q.Addresses = []common.Address{*s.Address}
	}
	return q
}
