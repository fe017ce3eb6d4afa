package live

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/transitgeo/transitgeo/pkg/config"
	"github.com/transitgeo/transitgeo/pkg/elastic_client"
	"github.com/transitgeo/transitgeo/pkg/events"
	"github.com/transitgeo/transitgeo/pkg/metrics"
	"github.com/transitgeo/transitgeo/pkg/monitoring"
	"github.com/transitgeo/transitgeo/pkg/queue"
	"github.com/transitgeo/transitgeo/pkg/shape"
	"github.com/transitgeo/transitgeo/pkg/sink"
	"github.com/transitgeo/transitgeo/pkg/transit"
	"github.com/transitgeo/transitgeo/pkg/ztmapi"
	"github.com/urfave/cli/v2"
)

// environment holds what every live command sets up before running.
type environment struct {
	cfg       *config.Config
	indexer   *elastic_client.Indexer
	collector *metrics.Collector
	recorder  events.Recorder
}

func setup(c *cli.Context) (*environment, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	indexer, err := elastic_client.Connect(cfg.Elasticsearch)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector()

	return &environment{
		cfg:       cfg,
		indexer:   indexer,
		collector: collector,
		recorder: events.Recorders{
			events.LogRecorder{},
			events.MetricsRecorder{Collector: collector},
			events.ElasticRecorder{Indexer: indexer},
		},
	}, nil
}

func (e *environment) startMonitoring(ctx context.Context, broker queue.Broker) {
	server := &monitoring.Server{
		Collector: e.collector,
		Checks:    map[string]monitoring.HealthCheck{},
	}

	if rmqBroker, ok := broker.(*queue.RMQBroker); ok {
		server.QueueStats = rmqBroker
		server.Checks["redis"] = func(ctx context.Context) error {
			return rmqBroker.Connection.Client.Ping(ctx).Err()
		}
	}

	server.Start(ctx, e.cfg.MonitoringAddress)
}

func (e *environment) emitter(publisher queue.Publisher) *Emitter {
	topics := map[transit.VehicleClass]string{}
	for _, class := range e.cfg.VehicleClasses() {
		topics[class] = e.cfg.Topic(class)
	}

	return &Emitter{
		Source:    ztmapi.NewClient(e.cfg.API),
		Publisher: publisher,
		Classes:   e.cfg.VehicleClasses(),
		Topics:    topics,
		Interval:  e.cfg.Live.EmitInterval.Std(),
		Recorder:  e.recorder,
		Metrics:   e.collector,
	}
}

func (e *environment) processor(class transit.VehicleClass, consumer queue.Consumer, geometrySink sink.GeometrySink) (*Processor, error) {
	filter, err := NewFilter(e.cfg.Live.Filter)
	if err != nil {
		return nil, err
	}

	return &Processor{
		Class:        class,
		Topic:        e.cfg.Topic(class),
		Table:        e.cfg.PositionsTable(class),
		Consumer:     consumer,
		Sink:         geometrySink,
		Shapes:       shape.NewSynthesizer(e.cfg.Shape.RotationDegrees, e.cfg.Shape.ScaleFactor),
		GeometryType: transit.GeometryType(e.cfg.Shape.GeometryType),
		PollTimeout:  e.cfg.Live.PollTimeout.Std(),
		Window:       e.cfg.Live.Window.Std(),
		Location:     e.cfg.Location(),
		Filter:       filter,
		Recorder:     e.recorder,
	}, nil
}

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "live",
		Usage: "Live vehicle positions drawn as vehicle silhouettes",
		Subcommands: []*cli.Command{
			{
				Name:  "emit",
				Usage: "publish live vehicle snapshots to the queue",
				Action: func(c *cli.Context) error {
					env, err := setup(c)
					if err != nil {
						return err
					}
					defer env.indexer.WaitUntilQueueEmpty()

					if err := env.cfg.RequireAPIKey(); err != nil {
						return err
					}

					ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
					defer stop()

					broker, err := queue.Open(env.cfg.Queue)
					if err != nil {
						return err
					}
					defer broker.Close()

					env.startMonitoring(ctx, broker)

					return env.emitter(broker).Run(ctx)
				},
			},
			{
				Name:  "process",
				Usage: "consume snapshots of one vehicle class and replace its live table",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "class",
						Usage: "vehicle class to process (buses or trams)",
						Value: string(transit.VehicleClassBuses),
					},
				},
				Action: func(c *cli.Context) error {
					class, err := transit.ParseVehicleClass(c.String("class"))
					if err != nil {
						return err
					}

					env, err := setup(c)
					if err != nil {
						return err
					}
					defer env.indexer.WaitUntilQueueEmpty()

					ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
					defer stop()

					broker, err := queue.Open(env.cfg.Queue)
					if err != nil {
						return err
					}
					defer broker.Close()

					consumer, err := broker.Subscribe(env.cfg.Topic(class))
					if err != nil {
						return err
					}
					defer consumer.Close()

					geometrySink, err := sink.New(ctx, env.cfg.Sink)
					if err != nil {
						return err
					}
					defer geometrySink.Close(context.Background())

					processor, err := env.processor(class, consumer, geometrySink)
					if err != nil {
						return err
					}

					env.startMonitoring(ctx, broker)

					return processor.Run(ctx)
				},
			},
			{
				Name:  "run",
				Usage: "run the emitter and a processor per class in one process over an in-memory queue",
				Action: func(c *cli.Context) error {
					env, err := setup(c)
					if err != nil {
						return err
					}
					defer env.indexer.WaitUntilQueueEmpty()

					if err := env.cfg.RequireAPIKey(); err != nil {
						return err
					}

					ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
					defer stop()

					broker := queue.NewMemoryBroker()
					defer broker.Close()

					geometrySink, err := sink.New(ctx, env.cfg.Sink)
					if err != nil {
						return err
					}
					defer geometrySink.Close(context.Background())

					var processors []*Processor
					for _, class := range env.cfg.VehicleClasses() {
						consumer, err := broker.Subscribe(env.cfg.Topic(class))
						if err != nil {
							return err
						}

						processor, err := env.processor(class, consumer, geometrySink)
						if err != nil {
							return err
						}
						processors = append(processors, processor)
					}

					env.startMonitoring(ctx, broker)

					return RunAll(ctx, env.emitter(broker), processors)
				},
			},
		},
	}
}

// RunAll runs the emitter and processors until the context is cancelled.
func RunAll(ctx context.Context, emitter *Emitter, processors []*Processor) error {
	var wg conc.WaitGroup
	errs := make([]error, len(processors)+1)

	wg.Go(func() {
		errs[0] = emitter.Run(ctx)
	})

	for i, processor := range processors {
		i, processor := i, processor
		wg.Go(func() {
			errs[i+1] = processor.Run(ctx)
		})
	}

	wg.Wait()

	log.Info().Msg("Live pipeline stopped")

	return errors.Join(errs...)
}
