package routes

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"github.com/transitgeo/transitgeo/pkg/config"
	"github.com/transitgeo/transitgeo/pkg/elastic_client"
	"github.com/transitgeo/transitgeo/pkg/events"
	"github.com/transitgeo/transitgeo/pkg/metrics"
	"github.com/transitgeo/transitgeo/pkg/redis_client"
	"github.com/transitgeo/transitgeo/pkg/sink"
	"github.com/transitgeo/transitgeo/pkg/stops"
	"github.com/transitgeo/transitgeo/pkg/ztmapi"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "routes",
		Usage: "Route geometries built from the stop and route structure feeds",
		Subcommands: []*cli.Command{
			{
				Name:  "build",
				Usage: "resolve stops, assemble route linestrings and append them to the route table",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "print the records instead of writing them",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}
					if err := cfg.RequireAPIKey(); err != nil {
						return err
					}

					ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
					defer stop()

					indexer, err := elastic_client.Connect(cfg.Elasticsearch)
					if err != nil {
						return err
					}
					defer indexer.WaitUntilQueueEmpty()

					client := ztmapi.NewClient(cfg.API)
					collector := metrics.NewCollector()

					resolver := &stops.Resolver{
						Source:  client,
						Workers: cfg.Routes.Workers,
					}
					if ttl := cfg.Routes.TimetableCacheTTL.Std(); ttl > 0 {
						connection, err := redis_client.Connect(cfg.Queue)
						if err != nil {
							return err
						}
						defer connection.Close()

						resolver.Cache = stops.NewLineCache(connection.Client, ttl)
					}

					builder := &Builder{
						Resolver:  resolver,
						Structure: client,
						Assembler: &Assembler{MinRoutePoints: cfg.Routes.MinRoutePoints},
						Table:     cfg.Routes.Table,
						Recorder: events.Recorders{
							events.LogRecorder{},
							events.MetricsRecorder{Collector: collector},
							events.ElasticRecorder{Indexer: indexer},
						},
						Metrics: collector,
					}

					dryRun := c.Bool("dry-run")
					if !dryRun {
						geometrySink, err := sink.New(ctx, cfg.Sink)
						if err != nil {
							return err
						}
						defer geometrySink.Close(context.Background())

						builder.Sink = geometrySink
					}

					report, err := builder.Build(ctx)
					if err != nil {
						return err
					}

					if dryRun {
						pretty.Println(report.Routes)
						for _, record := range report.Records {
							pretty.Println(record)
						}
					}

					log.Info().Int("routes", report.Routes.Built).Str("table", cfg.Routes.Table).Msg("Route build complete")

					return nil
				},
			},
		},
	}
}
