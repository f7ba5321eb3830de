package main

import (
	"github.com/urfave/cli/v2"

	"ethhelper/internal/contract"
	"ethhelper/internal/txbuilder"
)

var callCommand = &cli.Command{
	Name:      "call",
	Usage:     "call a contract function",
	ArgsUsage: "[function args...]",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "address",
			Aliases: []string{"d"},
			Usage:   "contract address (latest recorded deployment when unset)",
		},
		&cli.StringFlag{
			Name:     "function",
			Aliases:  []string{"f"},
			Usage:    "function name",
			Required: true,
		},
		&cli.StringSliceFlag{
			Name:    "args",
			Aliases: []string{"params", "r"},
			Usage:   "function argument, repeatable; arrays as JSON",
		},
	},
	Action: runCall,
}

type callOutput struct {
	Function   string        `json:"function"`
	Mutability string        `json:"mutability"`
	Outputs    []interface{} `json:"outputs,omitempty"`
	TxHash     string        `json:"tx_hash,omitempty"`
	Block      uint64        `json:"block,omitempty"`
	GasUsed    uint64        `json:"gas_used,omitempty"`
}

func runCall(c *cli.Context) error {
	env := envFrom(c)
	art, err := loadArtifact(c, env)
	if err != nil {
		return err
	}
	method, _, err := art.Function(c.String("function"))
	if err != nil {
		return err
	}
	rawArgs := append(append([]string{}, c.StringSlice("args")...), c.Args().Slice()...)
	args, err := contract.ParseArgs(method.Inputs, rawArgs)
	if err != nil {
		return err
	}
	address, err := resolveAddress(c, env, art.Name)
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

	res, err := s.helper(c).Call(c.Context, art, address, method.Name, args, opts)
	if err != nil {
		return err
	}
	out := callOutput{Function: method.Name, Mutability: res.Kind.String(), Outputs: res.Outputs}
	if res.Receipt != nil {
		if err := txbuilder.CheckReceipt(res.Receipt); err != nil {
			return err
		}
		out.TxHash = res.Receipt.TxHash.Hex()
		out.GasUsed = res.Receipt.GasUsed
		if res.Receipt.BlockNumber != nil {
			out.Block = res.Receipt.BlockNumber.Uint64()
		}
	}
	return printJSON(c.App.Writer, out)
}
