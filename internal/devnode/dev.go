package devnode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"ethhelper/internal/chain"
	"ethhelper/internal/config"
	"ethhelper/internal/txbuilder"
	"ethhelper/internal/util"
)

const transferGas = 21_000

// DevGuard runs a geth --dev node and connects to its HTTP endpoint.
type DevGuard struct {
	*Guard
	cfg    config.DevNode
	logger *slog.Logger

	client     *chain.Client
	devAccount common.Address
}

// DevCommand is the geth invocation for cfg.
func DevCommand(cfg config.DevNode) []string {
	cmd := []string{
		cfg.Geth,
		"--networkid", strconv.FormatUint(cfg.ChainID, 10),
		"--dev",
		"--dev.gaslimit", strconv.FormatUint(cfg.GasLimit, 10),
		"--dev.period", strconv.FormatUint(cfg.BlockPeriod, 10),
		"--http",
		"--http.api", strings.Join(cfg.HTTPAPIs, ","),
		"--http.port", strconv.Itoa(cfg.HTTPPort),
	}
	if cfg.DataDir != "" {
		cmd = append(cmd, "--datadir", cfg.DataDir)
	}
	return cmd
}

func NewDevGuard(cfg config.DevNode, logger *slog.Logger) *DevGuard {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "devnode")
	return &DevGuard{
		Guard:  NewGuard(DevCommand(cfg), cfg.TermTimeout.Duration, logger),
		cfg:    cfg,
		logger: logger,
	}
}

func (d *DevGuard) URL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", d.cfg.HTTPPort)
}

// Start launches geth and waits until its HTTP endpoint answers. On any
// failure the process is stopped before returning.
func (d *DevGuard) Start(ctx context.Context) (err error) {
	if err := d.Guard.Start(); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if stopErr := d.Guard.Stop(); stopErr != nil {
				d.logger.Error("stop node after failed start", "error", stopErr)
			}
			d.client = nil
		}
	}()

	client, err := chain.Dial(ctx, d.URL(), d.cfg.ConnTimeout.Duration)
	if err != nil {
		return err
	}
	err = util.PollUntil(ctx, d.cfg.ConnInterval.Duration, d.cfg.ConnTimeout.Duration, func(ctx context.Context) (bool, error) {
		if !d.Guard.Running() {
			return false, errors.New("node process exited during startup")
		}
		return client.IsConnected(ctx), nil
	})
	if err != nil {
		client.Close()
		return &chain.ConnectionError{URL: d.URL(), Err: err}
	}

	accts, err := client.Accounts(ctx)
	if err != nil {
		client.Close()
		return err
	}
	if len(accts) == 0 {
		client.Close()
		return errors.New("dev node has no accounts")
	}
	balance, err := client.BalanceAt(ctx, accts[0], nil)
	if err != nil {
		client.Close()
		return err
	}
	d.client = client
	d.devAccount = accts[0]
	d.logger.Info("dev account ready", "address", d.devAccount.Hex(), "balance_eth", txbuilder.FormatUnits(balance, txbuilder.UnitEther))
	return nil
}

func (d *DevGuard) Stop() error {
	if d.client != nil {
		d.client.Close()
		d.client = nil
	}
	return d.Guard.Stop()
}

// Client is nil until Start succeeds.
func (d *DevGuard) Client() *chain.Client {
	return d.client
}

func (d *DevGuard) DevAccount() common.Address {
	return d.devAccount
}

// FillAccount transfers wei from the dev account to addr and waits for the
// transfer to be mined.
func (d *DevGuard) FillAccount(ctx context.Context, addr common.Address, wei *big.Int) error {
	if d.client == nil {
		return errors.New("dev node is not started")
	}
	if wei == nil || wei.Sign() <= 0 {
		return errors.New("fill amount must be positive")
	}
	chainID, err := d.client.ChainID(ctx)
	if err != nil {
		return err
	}
	nonce, err := d.client.PendingNonceAt(ctx, d.devAccount)
	if err != nil {
		return err
	}
	d.logger.Info("funding account", "to", addr.Hex(), "amount_eth", txbuilder.FormatUnits(wei, txbuilder.UnitEther))
	to := addr
	hash, err := d.client.SendManagedTransaction(ctx, chain.TxArgs{
		From:    d.devAccount,
		To:      &to,
		Gas:     hexutil.Uint64(transferGas),
		Value:   (*hexutil.Big)(new(big.Int).Set(wei)),
		Nonce:   hexutil.Uint64(nonce),
		ChainID: (*hexutil.Big)(chainID),
	})
	if err != nil {
		return fmt.Errorf("fund %s: %w", addr.Hex(), err)
	}
	receipt, err := txbuilder.WaitReceipt(ctx, d.client, hash, d.cfg.ConnInterval.Duration)
	if err != nil {
		return err
	}
	if err := txbuilder.CheckReceipt(receipt); err != nil {
		return err
	}
	balance, err := d.client.BalanceAt(ctx, addr, nil)
	if err != nil {
		return err
	}
	d.logger.Info("account funded", "address", addr.Hex(), "balance_eth", txbuilder.FormatUnits(balance, txbuilder.UnitEther))
	return nil
}
