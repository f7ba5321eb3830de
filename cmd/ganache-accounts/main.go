package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"ethhelper/internal/keys"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "ganache-accounts",
		Usage: "Helper commands for Ganache accounts files",
		Commands: []*cli.Command{
			{
				Name:  "checksum",
				Usage: "rewrite every address of an accounts file in checksummed form",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "input file path",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "output",
						Aliases:  []string{"o"},
						Usage:    "output file path",
						Required: true,
					},
				},
				Action: func(c *cli.Context) error {
					logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, nil))
					if err := keys.ChecksumAccountsFile(c.String("output"), c.String("input")); err != nil {
						return err
					}
					logger.Info("accounts file checksummed", "input", c.String("input"), "output", c.String("output"))
					return nil
				},
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
