package routes

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/transitgeo/transitgeo/pkg/events"
	"github.com/transitgeo/transitgeo/pkg/metrics"
	"github.com/transitgeo/transitgeo/pkg/sink"
	"github.com/transitgeo/transitgeo/pkg/stops"
	"github.com/transitgeo/transitgeo/pkg/transit"
	"github.com/transitgeo/transitgeo/pkg/ztmapi"
)

type StructureSource interface {
	FetchRouteStructure(ctx context.Context) (ztmapi.RouteStructure, error)
}

// Builder runs the batch pipeline: resolve stops, assemble routes, append them to the
// route table.
type Builder struct {
	Resolver  *stops.Resolver
	Structure StructureSource
	Assembler *Assembler

	// Sink may be nil for a dry run.
	Sink  sink.GeometrySink
	Table string

	Recorder events.Recorder
	Metrics  *metrics.Collector
}

type BuildReport struct {
	Stops   stops.Report
	Routes  Report
	Records []transit.GeometryRecord
}

func (b *Builder) Build(ctx context.Context) (*BuildReport, error) {
	startTime := time.Now()

	report, err := b.build(ctx)

	result := events.CycleResult{
		Pipeline:  events.PipelineRoutes,
		Topic:     b.Table,
		Status:    events.StatusOK,
		Timestamp: startTime,
		Duration:  time.Since(startTime),
	}
	if err != nil {
		result.Status = events.StatusError
		result.Err = err
	} else {
		result.Records = report.Routes.Built
		result.Dropped = report.Routes.Unresolved + report.Routes.TooShort + report.Routes.BadOrdinal
		if b.Sink == nil {
			result.Reason = "dry run"
		}
	}
	b.record(result)

	if err == nil && b.Metrics != nil {
		b.Metrics.RoutesBuilt.Set(float64(report.Routes.Built))
		b.Metrics.RoutesFailed.WithLabelValues("too_short").Set(float64(report.Routes.TooShort))
		b.Metrics.RoutesFailed.WithLabelValues("bad_ordinal").Set(float64(report.Routes.BadOrdinal))
	}

	return report, err
}

func (b *Builder) build(ctx context.Context) (*BuildReport, error) {
	stopTable, stopsReport, err := b.Resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	structure, err := b.Structure.FetchRouteStructure(ctx)
	if err != nil {
		return nil, err
	}

	assembler := b.Assembler
	if assembler == nil {
		assembler = &Assembler{MinRoutePoints: DefaultMinRoutePoints}
	}

	records, routesReport := assembler.Assemble(Flatten(structure), stopTable)

	log.Info().
		Int("segments", routesReport.Segments).
		Int("unresolved", routesReport.Unresolved).
		Int("built", routesReport.Built).
		Int("tooshort", routesReport.TooShort).
		Int("badordinal", routesReport.BadOrdinal).
		Msg("Assembled routes")

	if b.Sink != nil {
		if err := b.Sink.AppendRoutes(ctx, b.Table, records); err != nil {
			return nil, fmt.Errorf("write routes: %w", err)
		}
	}

	return &BuildReport{
		Stops:   stopsReport,
		Routes:  routesReport,
		Records: records,
	}, nil
}

func (b *Builder) record(result events.CycleResult) {
	if b.Recorder != nil {
		b.Recorder.Record(result)
	}
}
