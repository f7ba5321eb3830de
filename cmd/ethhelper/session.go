package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"ethhelper/internal/chain"
	"ethhelper/internal/contract"
	"ethhelper/internal/deployments"
	"ethhelper/internal/keys"
	"ethhelper/internal/txbuilder"
)

// session is a connected node plus the sending account.
type session struct {
	env    *appEnv
	client *chain.Client
	sender contract.Sender
}

func openSession(c *cli.Context) (*session, error) {
	env := envFrom(c)
	client, err := chain.Dial(c.Context, env.cfg.RPC.HTTP, env.cfg.RPC.RequestTimeout.Duration)
	if err != nil {
		return nil, err
	}
	chainID, err := client.Ping(c.Context)
	if err != nil {
		client.Close()
		return nil, err
	}
	env.logger.Info("connected to node", "url", client.URL(), "chain_id", chainID)
	return &session{env: env, client: client}, nil
}

func (s *session) Close() {
	s.client.Close()
}

func (s *session) setupSender(c *cli.Context) error {
	acct := s.env.cfg.Accounts
	src := keys.Source{
		KeyJSON:     acct.KeyJSON,
		KeystoreDir: acct.KeystoreDir,
		Index:       acct.Index,
	}
	if acct.PassphraseEnv != "" {
		src.Passphrase = os.Getenv(acct.PassphraseEnv)
	}
	addr, key, err := keys.SetupSendingAccount(c.Context, src, s.client, s.env.logger)
	if err != nil {
		return err
	}
	s.sender = contract.Sender{Address: addr, Key: key}
	return nil
}

func (s *session) helper(c *cli.Context) *contract.Helper {
	cfg, logger := s.env.cfg, s.env.logger
	guard := txbuilder.NewGuard(&txbuilder.TerminalPrompter{In: c.App.Reader, Out: c.App.Writer}, logger)
	tr := txbuilder.NewTransactor(s.client, guard, logger, txbuilder.TransactorConfig{
		GasMarginPercent:    cfg.Tx.GasMarginPercent,
		FeeCalculator:       txbuilder.PercentFeeCalculator(cfg.Tx.PriorityFeePercent),
		ReceiptPollInterval: cfg.Tx.ReceiptPollInterval.Duration,
	})
	return contract.NewHelper(s.client, tr, logger)
}

func (s *session) txOptions(c *cli.Context) (contract.TxOptions, error) {
	value, err := txbuilder.ConvertValToWei(c.String("value"), txbuilder.Unit(c.String("value-unit")))
	if err != nil {
		return contract.TxOptions{}, err
	}
	if value.Sign() > 0 {
		s.env.logger.Warn("sending value with transaction", "value", c.String("value"), "unit", c.String("value-unit"), "wei", value.String())
	}
	return contract.TxOptions{
		Sender:  s.sender,
		Gas:     c.Uint64("gas"),
		Value:   value,
		Confirm: !c.Bool("no-confirm"),
	}, nil
}

func loadArtifact(c *cli.Context, env *appEnv) (*contract.Artifact, error) {
	name := c.String("contract")
	if name == "" {
		return nil, errors.New("--contract is required")
	}
	abiPath, binPath := c.String("abi"), c.String("bin")
	if abiPath != "" || binPath != "" {
		if abiPath == "" || binPath == "" {
			return nil, errors.New("--abi and --bin must be given together")
		}
		return contract.LoadFiles(name, abiPath, binPath)
	}
	loader := contract.NewLoader(env.cfg, &http.Client{Timeout: env.cfg.RPC.RequestTimeout.Duration}, env.logger)
	return loader.Load(c.Context, name, c.String("release"))
}

// resolveAddress prefers --address and falls back to the latest recorded
// deployment of the contract.
func resolveAddress(c *cli.Context, env *appEnv, contractName string) (common.Address, error) {
	if raw := c.String("address"); raw != "" {
		if !common.IsHexAddress(raw) {
			return common.Address{}, fmt.Errorf("invalid address %q", raw)
		}
		return common.HexToAddress(raw), nil
	}
	path := env.cfg.Deployments.Path
	if path == "" {
		return common.Address{}, errors.New("--address is required when no deployments path is configured")
	}
	store := deployments.New(path)
	if _, err := store.Load(); err != nil {
		return common.Address{}, err
	}
	rec, ok := store.Latest(contractName)
	if !ok {
		return common.Address{}, fmt.Errorf("no deployment of %s recorded in %s", contractName, path)
	}
	env.logger.Info("using recorded deployment", "contract", contractName, "address", rec.Address.Hex(), "block", rec.Block)
	return rec.Address, nil
}

func printJSON(w io.Writer, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
