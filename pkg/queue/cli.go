package queue

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/transitgeo/transitgeo/pkg/config"
	"github.com/transitgeo/transitgeo/pkg/redis_client"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "queue",
		Usage: "Queue maintenance",
		Subcommands: []*cli.Command{
			{
				Name:  "cleaner",
				Usage: "return deliveries held by dead consumers to the redis queues",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "interval",
						Value: DefaultCleanInterval,
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}

					connection, err := redis_client.Connect(cfg.Queue)
					if err != nil {
						return err
					}
					defer connection.Close()

					ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
					defer stop()

					RunCleaner(ctx, connection, c.Duration("interval"))

					return nil
				},
			},
		},
	}
}
