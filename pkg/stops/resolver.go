package stops

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"github.com/transitgeo/transitgeo/pkg/transit"
	"github.com/transitgeo/transitgeo/pkg/ztmapi"
)

const DefaultWorkers = 8

type Source interface {
	FetchStops(ctx context.Context) ([]transit.Stop, error)
	FetchStopLines(ctx context.Context, key transit.StopKey) ([]string, error)
}

type Resolver struct {
	Source  Source
	Workers int

	// Cache is optional.
	Cache *LineCache
}

type Report struct {
	Listed   int
	Resolved int
	Skipped  int // sentinel answers
	Failed   int
	Cached   int
	Duration time.Duration
}

type lineResult struct {
	lines  []string
	ok     bool
	cached bool
	err    error
}

// Resolve builds the stop table. Each listed post is looked up individually; posts the
// operator has no timetable for are skipped and posts whose lookup fails are dropped.
// A post listed more than once keeps its last listing.
func (r *Resolver) Resolve(ctx context.Context) (map[transit.StopKey]transit.Stop, Report, error) {
	startTime := time.Now()
	report := Report{}

	listed, err := r.Source.FetchStops(ctx)
	if err != nil {
		return nil, report, fmt.Errorf("stop list: %w", err)
	}
	report.Listed = len(listed)

	workers := r.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	results := make([]lineResult, len(listed))
	p := pool.New().WithMaxGoroutines(workers)

	for i := range listed {
		i := i
		p.Go(func() {
			results[i] = r.lookupLines(ctx, listed[i].Key)
		})
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		return nil, report, err
	}

	resolved := make(map[transit.StopKey]transit.Stop, len(listed))
	for i, stop := range listed {
		result := results[i]

		switch {
		case result.err != nil:
			report.Failed++
			log.Warn().Err(result.err).Str("stop", stop.Key.String()).Msg("Dropping stop, failed to fetch lines")
			continue
		case !result.ok:
			report.Skipped++
			continue
		}

		if result.cached {
			report.Cached++
		}

		stop.Lines = result.lines
		resolved[stop.Key] = stop
	}
	report.Resolved = len(resolved)
	report.Duration = time.Since(startTime)

	log.Info().
		Int("listed", report.Listed).
		Int("resolved", report.Resolved).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Int("cached", report.Cached).
		Str("length", report.Duration.String()).
		Msg("Resolved stops")

	return resolved, report, nil
}

func (r *Resolver) lookupLines(ctx context.Context, key transit.StopKey) lineResult {
	if r.Cache != nil {
		if lines, ok := r.Cache.Get(ctx, key); ok {
			return lineResult{lines: lines, ok: true, cached: true}
		}
	}

	lines, err := r.Source.FetchStopLines(ctx, key)
	if errors.Is(err, ztmapi.ErrInvalidParameters) {
		log.Debug().Str("stop", key.String()).Msg("No timetable for stop")
		return lineResult{}
	}
	if err != nil {
		return lineResult{err: err}
	}

	if r.Cache != nil {
		r.Cache.Set(ctx, key, lines)
	}

	return lineResult{lines: lines, ok: true}
}
