package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/transitgeo/transitgeo/pkg/config"
	"github.com/transitgeo/transitgeo/pkg/database"
	"github.com/transitgeo/transitgeo/pkg/transit"
)

// GeometrySink persists geometry records into named tables.
type GeometrySink interface {
	Name() string

	// AppendRoutes adds records to the table, keeping what is already there.
	AppendRoutes(ctx context.Context, table string, records []transit.GeometryRecord) error

	// ReplacePositions makes the table hold exactly the given records. An empty batch
	// empties the table.
	ReplacePositions(ctx context.Context, table string, records []transit.GeometryRecord) error

	Close(ctx context.Context) error
}

// New builds the configured sinks, fanning out when more than one backend is listed.
func New(ctx context.Context, cfg config.SinkConfig) (GeometrySink, error) {
	var sinks []GeometrySink

	for _, backend := range cfg.Backends {
		s, err := newBackend(ctx, backend, cfg)
		if err != nil {
			closeAll(ctx, sinks)
			return nil, fmt.Errorf("sink %s: %w", backend, err)
		}

		log.Info().Str("sink", s.Name()).Msg("Geometry sink ready")
		sinks = append(sinks, s)
	}

	if len(sinks) == 1 {
		return sinks[0], nil
	}

	return NewFanOut(sinks...), nil
}

func newBackend(ctx context.Context, backend string, cfg config.SinkConfig) (GeometrySink, error) {
	switch backend {
	case "mongo":
		instance, err := database.ConnectMongoDB(cfg)
		if err != nil {
			return nil, err
		}
		return NewMongoSink(instance), nil
	case "postgres":
		return OpenPostgresSink(ctx, cfg.PostgresConnection)
	case "csv":
		return NewCSVSink(cfg.CSVDirectory)
	case "gtfsrt":
		return NewGTFSRTSink(cfg.GTFSRTDirectory)
	case "memory":
		return NewMemorySink(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

func closeAll(ctx context.Context, sinks []GeometrySink) error {
	var errs []error
	for _, s := range sinks {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
