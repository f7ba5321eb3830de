package txbuilder

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ethhelper/internal/chain"
)

type fakeClient struct {
	chainID     *big.Int
	nonce       uint64
	gasPrice    *big.Int
	tipCap      *big.Int
	balance     *big.Int
	estimate    uint64
	estimateErr error
	sendErr     error
	nonceErr    error
	receiptErr  error
	knownTx     *types.Transaction

	estimateCalls int
	stateCalls    int
	sent          []*types.Transaction
	managed       []chain.TxArgs
	receiptMisses int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		chainID:  big.NewInt(1337),
		nonce:    4,
		gasPrice: big.NewInt(10_000_000_000),
		tipCap:   big.NewInt(1_000_000_000),
		balance:  new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18)),
		estimate: 100_000,
	}
}

func (f *fakeClient) ChainID(context.Context) (*big.Int, error) { return f.chainID, nil }

func (f *fakeClient) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.stateCalls++
	return f.nonce, f.nonceErr
}

func (f *fakeClient) SuggestGasPrice(context.Context) (*big.Int, error)  { return f.gasPrice, nil }
func (f *fakeClient) SuggestGasTipCap(context.Context) (*big.Int, error) { return f.tipCap, nil }

func (f *fakeClient) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return f.balance, nil
}

func (f *fakeClient) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	f.estimateCalls++
	return f.estimate, f.estimateErr
}

func (f *fakeClient) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeClient) SendManagedTransaction(_ context.Context, args chain.TxArgs) (common.Hash, error) {
	if f.sendErr != nil {
		return common.Hash{}, f.sendErr
	}
	f.managed = append(f.managed, args)
	return common.HexToHash("0xabc"), nil
}

func (f *fakeClient) TransactionByHash(_ context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	if f.knownTx != nil && f.knownTx.Hash() == hash {
		return f.knownTx, true, nil
	}
	return nil, false, ethereum.NotFound
}

func (f *fakeClient) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	if f.receiptMisses > 0 {
		f.receiptMisses--
		return nil, ethereum.NotFound
	}
	return &types.Receipt{TxHash: hash, Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(7)}, nil
}

type scriptedPrompter struct {
	answer bool
	calls  int
}

func (p *scriptedPrompter) Confirm(CostSummary) (bool, error) {
	p.calls++
	return p.answer, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustKey(t *testing.T) (*ecdsa.PrivateKey, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key, crypto.PubkeyToAddress(key.PublicKey)
}

func TestComputeFeesProperties(t *testing.T) {
	values := []int64{0, 1, 49, 50, 99, 100, 12345, 1_000_000_000, 987_654_321_123}
	for _, base := range values {
		for _, floor := range values {
			fees := ComputeFees(big.NewInt(base), big.NewInt(floor))
			twoPercent := big.NewInt(base * 2 / 100)
			assert.True(t, fees.MaxPriorityFeePerGas.Cmp(big.NewInt(floor)) >= 0, "base=%d floor=%d", base, floor)
			assert.True(t, fees.MaxPriorityFeePerGas.Cmp(twoPercent) >= 0, "base=%d floor=%d", base, floor)
			want := new(big.Int).Add(big.NewInt(base), fees.MaxPriorityFeePerGas)
			assert.Equal(t, 0, fees.MaxFeePerGas.Cmp(want), "base=%d floor=%d", base, floor)
		}
	}
}

func TestComputeFeesPicksLarger(t *testing.T) {
	fees := ComputeFees(big.NewInt(100_000_000_000), big.NewInt(1_000_000_000))
	require.Equal(t, "2000000000", fees.MaxPriorityFeePerGas.String())
	require.Equal(t, "102000000000", fees.MaxFeePerGas.String())

	fees = ComputeFees(big.NewInt(10), big.NewInt(7))
	require.Equal(t, "7", fees.MaxPriorityFeePerGas.String())
	require.Equal(t, "17", fees.MaxFeePerGas.String())
}

func TestResolveGasExplicitSkipsEstimator(t *testing.T) {
	client := newFakeClient()
	gas, err := ResolveGas(context.Background(), client, ethereum.CallMsg{}, 54321)
	require.NoError(t, err)
	require.Equal(t, uint64(54321), gas)
	require.Zero(t, client.estimateCalls)
}

func TestResolveGasAddsMargin(t *testing.T) {
	client := newFakeClient()
	gas, err := ResolveGas(context.Background(), client, ethereum.CallMsg{}, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(110_000), gas)

	for _, est := range []uint64{1, 9, 10, 21_000, 123_457, 999_999} {
		require.Equal(t, est*11/10, applyGasMargin(est, 10), "estimate %d", est)
	}
}

func TestResolveGasEstimationError(t *testing.T) {
	client := newFakeClient()
	client.estimateErr = errors.New("execution reverted")
	_, err := ResolveGas(context.Background(), client, ethereum.CallMsg{}, 0)
	var estErr *EstimateGasError
	require.ErrorAs(t, err, &estErr)
	require.Contains(t, err.Error(), "execution reverted")
}

func TestBuildTransactionFeeFieldsOnlyWhenSigning(t *testing.T) {
	state := &ChainState{
		ChainID:        big.NewInt(1337),
		Nonce:          9,
		GasPrice:       big.NewInt(100),
		MinPriorityFee: big.NewInt(5),
	}
	intent := Intent{Value: big.NewInt(3)}

	unsigned := BuildTransaction(state, intent, 21_000, false, nil)
	require.Nil(t, unsigned.Fees)
	require.Equal(t, uint64(9), unsigned.Nonce)
	require.Equal(t, uint64(21_000), unsigned.Gas)
	require.Equal(t, "3", unsigned.Value.String())

	signing := BuildTransaction(state, intent, 21_000, true, nil)
	require.NotNil(t, signing.Fees)
	require.Equal(t, "5", signing.Fees.MaxPriorityFeePerGas.String())
	require.Equal(t, "105", signing.Fees.MaxFeePerGas.String())
}

func signableTx(from common.Address, value int64) *UnsignedTx {
	return &UnsignedTx{
		From:    from,
		ChainID: big.NewInt(1337),
		Nonce:   1,
		Gas:     21_000,
		Value:   big.NewInt(value),
		Fees: &FeeParams{
			MaxFeePerGas:         big.NewInt(100),
			MaxPriorityFeePerGas: big.NewInt(10),
		},
	}
}

func TestSignIfRequestedBalanceBoundary(t *testing.T) {
	key, from := mustKey(t)
	guard := NewGuard(nil, testLogger())
	tx := signableTx(from, 5)
	maxCost := big.NewInt((100+10)*21_000 + 5)
	require.Equal(t, maxCost.String(), tx.MaxCost().String())

	signed, err := guard.SignIfRequested(tx, key, maxCost, false)
	require.NoError(t, err)
	require.NotNil(t, signed)

	short := new(big.Int).Sub(maxCost, big.NewInt(1))
	_, err = guard.SignIfRequested(tx, key, short, false)
	var balErr *InsufficientBalanceError
	require.ErrorAs(t, err, &balErr)
	require.Equal(t, maxCost.String(), balErr.MaxCost.String())
}

func TestSignIfRequestedKeyMismatch(t *testing.T) {
	key, _ := mustKey(t)
	for i := 0; i < 5; i++ {
		_, other := mustKey(t)
		_, err := NewGuard(nil, testLogger()).SignIfRequested(signableTx(other, 0), key, big.NewInt(1e18), false)
		var mismatch *KeyMismatchError
		require.ErrorAs(t, err, &mismatch)
		require.Equal(t, other, mismatch.Expected)
	}
}

func TestSignIfRequestedWithoutKey(t *testing.T) {
	signed, err := NewGuard(nil, testLogger()).SignIfRequested(&UnsignedTx{}, nil, nil, true)
	require.NoError(t, err)
	require.Nil(t, signed)
}

func TestSignIfRequestedPrompt(t *testing.T) {
	key, from := mustKey(t)

	no := &scriptedPrompter{answer: false}
	_, err := NewGuard(no, testLogger()).SignIfRequested(signableTx(from, 0), key, big.NewInt(1e18), true)
	require.ErrorIs(t, err, ErrUserCancelled)
	require.Equal(t, 1, no.calls)

	yes := &scriptedPrompter{answer: true}
	signed, err := NewGuard(yes, testLogger()).SignIfRequested(signableTx(from, 0), key, big.NewInt(1e18), true)
	require.NoError(t, err)
	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(1337)), signed)
	require.NoError(t, err)
	require.Equal(t, from, sender)
}

func TestTerminalPrompter(t *testing.T) {
	summary := CostSummary{
		Gas:                  21_000,
		GasPrice:             big.NewInt(1_000_000_000),
		MaxFeePerGas:         big.NewInt(1_020_000_000),
		MaxPriorityFeePerGas: big.NewInt(20_000_000),
		Value:                big.NewInt(0),
		Balance:              big.NewInt(1e18),
	}
	for input, want := range map[string]bool{"YES\n": true, " yes ": true, "y\n": false, "": false} {
		var out bytes.Buffer
		ok, err := (&TerminalPrompter{In: strings.NewReader(input), Out: &out}).Confirm(summary)
		require.NoError(t, err)
		require.Equal(t, want, ok, "input %q", input)
		require.Contains(t, out.String(), "Gas price:            1.000000000 Gwei")
		require.Contains(t, out.String(), confirmQuestion)
	}
}

func TestTerminalPrompterKeepsBufferedInput(t *testing.T) {
	summary := CostSummary{
		Gas:      21_000,
		GasPrice: big.NewInt(1),
		Value:    big.NewInt(0),
		Balance:  big.NewInt(1e18),
	}
	p := &TerminalPrompter{In: strings.NewReader("yes\nno\nyes\n"), Out: io.Discard}
	for _, want := range []bool{true, false, true, false} {
		ok, err := p.Confirm(summary)
		require.NoError(t, err)
		require.Equal(t, want, ok)
	}
}

func TestTransactManagedPathHasNoFees(t *testing.T) {
	client := newFakeClient()
	client.receiptMisses = 2
	tr := NewTransactor(client, nil, testLogger(), TransactorConfig{ReceiptPollInterval: time.Millisecond})
	to := common.HexToAddress("0x1111111111111111111111111111111111111111")

	receipt, err := tr.Transact(context.Background(), Intent{From: to, To: &to, Value: big.NewInt(1)}, nil, false)
	require.NoError(t, err)
	require.Equal(t, common.HexToHash("0xabc"), receipt.TxHash)
	require.Len(t, client.managed, 1)
	require.Equal(t, uint64(110_000), uint64(client.managed[0].Gas))
	require.Equal(t, uint64(4), uint64(client.managed[0].Nonce))
	require.Empty(t, client.sent)
}

func TestTransactSignedPath(t *testing.T) {
	key, from := mustKey(t)
	client := newFakeClient()
	tr := NewTransactor(client, NewGuard(nil, testLogger()), testLogger(), TransactorConfig{ReceiptPollInterval: time.Millisecond})
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")

	receipt, err := tr.Transact(context.Background(), Intent{From: from, To: &to, Gas: 50_000}, key, false)
	require.NoError(t, err)
	require.Len(t, client.sent, 1)
	sent := client.sent[0]
	require.Equal(t, sent.Hash(), receipt.TxHash)
	require.Equal(t, uint64(50_000), sent.Gas())
	require.Equal(t, "1000000000", sent.GasTipCap().String())
	require.Equal(t, "11000000000", sent.GasFeeCap().String())
	require.Zero(t, client.estimateCalls)
}

func TestSubmitReconcilesByNonce(t *testing.T) {
	client := newFakeClient()
	client.sendErr = errors.New("connection reset")
	tx := &UnsignedTx{Nonce: 4, Gas: 21_000, Value: big.NewInt(0)}

	_, err := Submit(context.Background(), client, tx, nil, time.Millisecond)
	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	require.False(t, subErr.MaybeSubmitted)

	client.nonce = 5
	_, err = Submit(context.Background(), client, tx, nil, time.Millisecond)
	require.ErrorAs(t, err, &subErr)
	require.True(t, subErr.MaybeSubmitted)
	require.Contains(t, err.Error(), "may have been submitted")
}

func TestSubmitMaybeSubmitted(t *testing.T) {
	key, from := mustKey(t)
	signed, err := NewGuard(nil, testLogger()).SignIfRequested(signableTx(from, 0), key, big.NewInt(1e18), false)
	require.NoError(t, err)

	cases := []struct {
		name      string
		setup     func(*fakeClient)
		signed    *types.Transaction
		wantHash  common.Hash
		wantNonce bool
	}{
		{
			name: "receipt lookup fails after managed send",
			setup: func(f *fakeClient) {
				f.receiptErr = errors.New("receipt unavailable")
			},
			wantHash: common.HexToHash("0xabc"),
		},
		{
			name: "signed send fails but node knows the hash",
			setup: func(f *fakeClient) {
				f.sendErr = errors.New("timeout")
				f.knownTx = signed
			},
			signed:   signed,
			wantHash: signed.Hash(),
		},
		{
			name: "managed send fails and nonce lookup fails",
			setup: func(f *fakeClient) {
				f.sendErr = errors.New("connection reset")
				f.nonceErr = errors.New("node unavailable")
			},
			wantNonce: true,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			client := newFakeClient()
			client.nonce = 1
			c.setup(client)
			tx := &UnsignedTx{From: from, Nonce: 1, Gas: 21_000, Value: big.NewInt(0)}

			receipt, err := Submit(context.Background(), client, tx, c.signed, time.Millisecond)
			require.Nil(t, receipt)
			var subErr *SubmissionError
			require.ErrorAs(t, err, &subErr)
			require.True(t, subErr.MaybeSubmitted)
			require.Equal(t, c.wantHash, subErr.Hash)
			require.Equal(t, uint64(1), subErr.Nonce)
			require.Equal(t, c.wantNonce, client.stateCalls > 0)
		})
	}
}

func TestConvertValToWei(t *testing.T) {
	cases := []struct {
		amount string
		unit   Unit
		want   string
	}{
		{"5", UnitWei, "5"},
		{"3", UnitGwei, "3000000000"},
		{"1", UnitEther, "1000000000000000000"},
		{"0.25", "Ether", "250000000000000000"},
		{"0", UnitEther, "0"},
	}
	for _, c := range cases {
		v, err := ConvertValToWei(c.amount, c.unit)
		require.NoError(t, err)
		require.Equal(t, c.want, v.String(), "%s %s", c.amount, c.unit)
	}
	_, err := ConvertValToWei("1.5", UnitWei)
	require.Error(t, err)
	for _, bad := range []string{"", "+5", "1e3", "-1", ".", "1.2.3", "0x10", "1 000"} {
		_, err = ConvertValToWei(bad, UnitGwei)
		require.Error(t, err, "amount %q", bad)
	}
	v, err := ConvertValToWei(".5", UnitGwei)
	require.NoError(t, err)
	require.Equal(t, "500000000", v.String())
	v, err = ConvertValToWei(" 1.000000000 ", UnitGwei)
	require.NoError(t, err)
	require.Equal(t, "1000000000", v.String())
	_, err = ConvertValToWei("1", "finney")
	require.Error(t, err)
}

func TestFormatUnits(t *testing.T) {
	require.Equal(t, "1.500000000000000000", FormatUnits(big.NewInt(1_500_000_000_000_000_000), UnitEther))
	require.Equal(t, "-0.000000001", FormatUnits(big.NewInt(-1), UnitGwei))
}
