package events

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

var transferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

type fakeChain struct {
	heads      []uint64 // successive BlockNumber answers; the last one repeats
	blockTime  uint64
	logsAt     map[uint64][]types.Log
	missing    map[uint64]bool
	queried    []uint64
	headCalls  int
	lastFilter ethereum.FilterQuery
}

func (f *fakeChain) HeaderByNumber(_ context.Context, n *big.Int) (*types.Header, error) {
	if f.missing[n.Uint64()] {
		return nil, ethereum.NotFound
	}
	return &types.Header{Number: n, Time: 1_700_000_000 + n.Uint64()*f.blockTime}, nil
}

func (f *fakeChain) BlockNumber(context.Context) (uint64, error) {
	i := f.headCalls
	if i >= len(f.heads) {
		i = len(f.heads) - 1
	}
	f.headCalls++
	return f.heads[i], nil
}

func (f *fakeChain) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	if q.FromBlock.Cmp(q.ToBlock) != 0 {
		panic("expected single block query")
	}
	f.lastFilter = q
	n := q.FromBlock.Uint64()
	f.queried = append(f.queried, n)
	return f.logsAt[n], nil
}

func newTestPoller(chain *fakeChain, sleeps *[]time.Duration) *Poller {
	p := NewPoller(chain, slog.New(slog.NewTextHandler(io.Discard, nil)), PollerConfig{})
	p.sleep = func(_ context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}
	return p
}

func TestEstimateBlockPeriod(t *testing.T) {
	chain := &fakeChain{blockTime: 12}
	period, err := EstimateBlockPeriod(context.Background(), chain, 100)
	require.NoError(t, err)
	require.Equal(t, 12*time.Second, period)
}

func TestEstimateBlockPeriodMissingBlock(t *testing.T) {
	chain := &fakeChain{blockTime: 12, missing: map[uint64]bool{99: true}}
	_, err := EstimateBlockPeriod(context.Background(), chain, 100)
	var notFound *BlockNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, uint64(99), notFound.Number)

	_, err = EstimateBlockPeriod(context.Background(), chain, 0)
	require.ErrorAs(t, err, &notFound)
}

func TestWaitForEventTimesOut(t *testing.T) {
	chain := &fakeChain{heads: []uint64{200}, blockTime: 12}
	var sleeps []time.Duration

	logs, err := newTestPoller(chain, &sleeps).WaitForEvent(context.Background(), Selector{Topic: transferTopic}, 100, 5)
	require.NoError(t, err)
	require.Empty(t, logs)
	require.Equal(t, []uint64{100, 101, 102, 103, 104, 105}, chain.queried)
	require.Empty(t, sleeps)
}

func TestWaitForEventStopsAtFirstMatch(t *testing.T) {
	match := types.Log{BlockNumber: 103, Topics: []common.Hash{transferTopic}}
	chain := &fakeChain{
		heads:     []uint64{200},
		blockTime: 12,
		logsAt:    map[uint64][]types.Log{103: {match}, 104: {match}},
	}
	var sleeps []time.Duration

	logs, err := newTestPoller(chain, &sleeps).WaitForEvent(context.Background(), Selector{Topic: transferTopic}, 100, 0)
	require.NoError(t, err)
	require.Equal(t, []types.Log{match}, logs)
	require.Equal(t, []uint64{100, 101, 102, 103}, chain.queried)
}

func TestWaitForEventSleepsHalfPeriodAtHead(t *testing.T) {
	match := types.Log{BlockNumber: 102}
	chain := &fakeChain{
		heads:     []uint64{100, 100, 101, 102},
		blockTime: 12,
		logsAt:    map[uint64][]types.Log{102: {match}},
	}
	var sleeps []time.Duration

	logs, err := newTestPoller(chain, &sleeps).WaitForEvent(context.Background(), Selector{Topic: transferTopic}, 100, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, []uint64{100, 101, 102}, chain.queried)
	require.Equal(t, []time.Duration{6 * time.Second, 6 * time.Second, 6 * time.Second}, sleeps)
}

func TestWaitForEventZeroPeriodUsesMinInterval(t *testing.T) {
	chain := &fakeChain{heads: []uint64{50, 52}, blockTime: 0}
	var sleeps []time.Duration

	logs, err := newTestPoller(chain, &sleeps).WaitForEvent(context.Background(), Selector{Topic: transferTopic}, 51, 1)
	require.NoError(t, err)
	require.Empty(t, logs)
	require.Equal(t, []time.Duration{100 * time.Millisecond}, sleeps)
	require.Equal(t, []uint64{51, 52}, chain.queried)
}

func TestWaitForContractEventScopesAddress(t *testing.T) {
	ev := abi.NewEvent("Ping", "Ping", false, abi.Arguments{})
	addr := common.HexToAddress("0x5555555555555555555555555555555555555555")
	chain := &fakeChain{
		heads:     []uint64{10},
		blockTime: 2,
		logsAt:    map[uint64][]types.Log{5: {{Address: addr, Topics: []common.Hash{ev.ID}}}},
	}
	var sleeps []time.Duration

	logs, err := newTestPoller(chain, &sleeps).WaitForContractEvent(context.Background(), addr, ev, 5, 3)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, []common.Address{addr}, chain.lastFilter.Addresses)
	require.Equal(t, [][]common.Hash{{ev.ID}}, chain.lastFilter.Topics)
}
