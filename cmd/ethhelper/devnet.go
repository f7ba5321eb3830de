package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"ethhelper/internal/devnode"
	"ethhelper/internal/txbuilder"
)

var devnetCommand = &cli.Command{
	Name:  "devnet",
	Usage: "run a geth dev node until interrupted",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "geth",
			Usage: "geth binary (default from config)",
		},
		&cli.IntFlag{
			Name:  "port",
			Usage: "HTTP port (default from config)",
		},
		&cli.Uint64Flag{
			Name:  "period",
			Usage: "block period in seconds (default from config)",
		},
		&cli.StringSliceFlag{
			Name:  "fund",
			Usage: "address to fund from the dev account, repeatable",
		},
		&cli.StringFlag{
			Name:  "fund-amount",
			Value: "100",
			Usage: "amount sent to each --fund address",
		},
		&cli.StringFlag{
			Name:  "fund-unit",
			Value: "ether",
			Usage: "unit of --fund-amount",
		},
	},
	Action: runDevnet,
}

func runDevnet(c *cli.Context) error {
	env := envFrom(c)
	cfg := env.cfg.DevNode
	if c.IsSet("geth") {
		cfg.Geth = c.String("geth")
	}
	if c.IsSet("port") {
		cfg.HTTPPort = c.Int("port")
	}
	if c.IsSet("period") {
		cfg.BlockPeriod = c.Uint64("period")
	}

	var targets []common.Address
	for _, raw := range c.StringSlice("fund") {
		if !common.IsHexAddress(raw) {
			return fmt.Errorf("invalid --fund address %q", raw)
		}
		targets = append(targets, common.HexToAddress(raw))
	}
	amount, err := txbuilder.ConvertValToWei(c.String("fund-amount"), txbuilder.Unit(c.String("fund-unit")))
	if err != nil {
		return err
	}

	node := devnode.NewDevGuard(cfg, env.logger)
	if err := node.Start(c.Context); err != nil {
		return err
	}
	defer func() {
		if err := node.Stop(); err != nil {
			env.logger.Error("stop dev node", "error", err)
		}
	}()

	g, ctx := errgroup.WithContext(c.Context)
	g.Go(func() error {
		select {
		case <-node.Done():
			return errors.New("dev node exited unexpectedly")
		case <-ctx.Done():
			return nil
		}
	})
	g.Go(func() error {
		for _, addr := range targets {
			if err := node.FillAccount(ctx, addr, amount); err != nil {
				return err
			}
		}
		env.logger.Info("dev node ready", "url", node.URL(), "dev_account", node.DevAccount().Hex(), "funded", len(targets))
		<-ctx.Done()
		return nil
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
