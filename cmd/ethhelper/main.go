package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"ethhelper/internal/config"
)

const (
	defaultConfigPath = "project_conf.json"
	envKey            = "env"
)

// appEnv is built once in Before and shared by every command.
type appEnv struct {
	cfg    *config.Config
	logger *slog.Logger
}

func envFrom(c *cli.Context) *appEnv {
	return c.App.Metadata[envKey].(*appEnv)
}

func newApp() *cli.App {
	return &cli.App{
		Name:                      "ethhelper",
		Usage:                     "Deploy and call contracts on an Ethereum node",
		DisableSliceFlagSeparator: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   defaultConfigPath,
				Usage:   "path to the project configuration file",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "verbose logging",
			},
			&cli.StringFlag{
				Name:    "http",
				Usage:   "HTTP provider URL (default from config, http://localhost:7545)",
				EnvVars: []string{"ETHHELPER_HTTP"},
			},
			&cli.StringFlag{
				Name:    "key-json",
				Usage:   "path to an accounts JSON file with addresses and private_keys",
				EnvVars: []string{"ETHHELPER_KEY_JSON"},
			},
			&cli.StringFlag{
				Name:    "keystore-dir",
				Usage:   "geth keystore directory to sign with",
				EnvVars: []string{"ETHHELPER_KEYSTORE_DIR"},
			},
			&cli.IntFlag{
				Name:  "account",
				Usage: "index of the account to use",
			},
			&cli.StringFlag{
				Name:  "release",
				Usage: "use the prebuilt contract from the release with this version tag",
			},
			&cli.StringFlag{
				Name:    "contract",
				Aliases: []string{"C"},
				Usage:   "contract name",
			},
			&cli.StringFlag{
				Name:  "abi",
				Usage: "explicit ABI file, used together with --bin",
			},
			&cli.StringFlag{
				Name:  "bin",
				Usage: "explicit bytecode file, used together with --abi",
			},
			&cli.Uint64Flag{
				Name:    "gas",
				Aliases: []string{"G"},
				Usage:   "gas limit (estimated when unset)",
			},
			&cli.StringFlag{
				Name:    "value",
				Aliases: []string{"V"},
				Value:   "0",
				Usage:   "value to send along with the transaction",
			},
			&cli.StringFlag{
				Name:    "value-unit",
				Aliases: []string{"U"},
				Value:   "wei",
				Usage:   "unit of --value: ether, gwei or wei",
			},
			&cli.BoolFlag{
				Name:  "no-confirm",
				Usage: "do not ask for confirmation before signing",
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			level := slog.LevelInfo
			if c.Bool("verbose") {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level}))
			c.App.Metadata = map[string]interface{}{envKey: &appEnv{cfg: cfg, logger: logger}}
			return nil
		},
		Commands: []*cli.Command{
			deployCommand,
			callCommand,
			waitEventCommand,
			devnetCommand,
		},
	}
}

// loadConfig reads the project file and applies flag overrides. A missing
// default project file falls back to built-in defaults.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) || c.IsSet("config") {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		cfg = config.Default()
	}
	if c.IsSet("http") {
		cfg.RPC.HTTP = c.String("http")
	}
	if c.IsSet("key-json") {
		cfg.Accounts.KeyJSON = c.String("key-json")
	}
	if c.IsSet("keystore-dir") {
		cfg.Accounts.KeystoreDir = c.String("keystore-dir")
	}
	if c.IsSet("account") {
		cfg.Accounts.Index = c.Int("account")
	}
	return cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
