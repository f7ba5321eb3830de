package main

import (
	"github.com/urfave/cli/v2"

	"ethhelper/internal/decoder"
	"ethhelper/internal/events"
)

var waitEventCommand = &cli.Command{
	Name:  "wait-event",
	Usage: "wait until the contract emits an event",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "address",
			Aliases: []string{"d"},
			Usage:   "contract address (latest recorded deployment when unset)",
		},
		&cli.StringFlag{
			Name:     "event",
			Aliases:  []string{"e"},
			Usage:    "event name",
			Required: true,
		},
		&cli.Uint64Flag{
			Name:  "from-block",
			Usage: "first block to inspect (current head when unset)",
		},
		&cli.Int64Flag{
			Name:  "timeout-blocks",
			Usage: "give up after this many blocks past --from-block; 0 waits forever",
		},
	},
	Action: runWaitEvent,
}

func runWaitEvent(c *cli.Context) error {
	env := envFrom(c)
	art, err := loadArtifact(c, env)
	if err != nil {
		return err
	}
	event, err := art.Event(c.String("event"))
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

	from := c.Uint64("from-block")
	if !c.IsSet("from-block") {
		if from, err = s.client.BlockNumber(c.Context); err != nil {
			return err
		}
	}
	poller := events.NewPoller(s.client, env.logger, events.PollerConfig{
		MinInterval: env.cfg.Events.MinPollInterval.Duration,
	})
	logs, err := poller.WaitForContractEvent(c.Context, address, event, from, c.Int64("timeout-blocks"))
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		env.logger.Warn("event not seen before timeout", "event", event.Name, "from_block", from, "timeout_blocks", c.Int64("timeout-blocks"))
	}
	decoded, err := decoder.DecodeLogs(event, logs)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, decoded)
}
