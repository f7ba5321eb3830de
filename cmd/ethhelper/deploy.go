package main

import (
	"time"

	"github.com/urfave/cli/v2"

	"ethhelper/internal/contract"
	"ethhelper/internal/deployments"
	"ethhelper/internal/txbuilder"
)

var deployCommand = &cli.Command{
	Name:      "deploy",
	Usage:     "deploy the contract",
	ArgsUsage: "[constructor args...]",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "args",
			Aliases: []string{"params", "r"},
			Usage:   "constructor argument, repeatable; arrays as JSON",
		},
	},
	Action: runDeploy,
}

func runDeploy(c *cli.Context) error {
	env := envFrom(c)
	art, err := loadArtifact(c, env)
	if err != nil {
		return err
	}
	ctor, _, err := art.Constructor()
	if err != nil {
		return err
	}
	rawArgs := append(append([]string{}, c.StringSlice("args")...), c.Args().Slice()...)
	args, err := contract.ParseArgs(ctor.Inputs, rawArgs)
	if err != nil {
		return err
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.setupSender(c); err != nil {
		return err
	}
	opts, err := s.txOptions(c)
	if err != nil {
		return err
	}

	receipt, err := s.helper(c).Deploy(c.Context, art, args, opts)
	if err != nil {
		return err
	}
	if err := txbuilder.CheckReceipt(receipt); err != nil {
		return err
	}

	rec := deployments.Record{
		Contract:   art.Name,
		Address:    receipt.ContractAddress,
		TxHash:     receipt.TxHash,
		Deployer:   s.sender.Address,
		Release:    c.String("release"),
		DeployedAt: time.Now().UTC(),
	}
	if receipt.BlockNumber != nil {
		rec.Block = receipt.BlockNumber.Uint64()
	}
	if path := env.cfg.Deployments.Path; path != "" {
		store := deployments.New(path)
		if _, err := store.Load(); err != nil {
			return err
		}
		if err := store.Append(rec); err != nil {
			return err
		}
		env.logger.Info("deployment recorded", "path", store.Path())
	}
	return printJSON(c.App.Writer, rec)
}
