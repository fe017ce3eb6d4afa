package live

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/transitgeo/transitgeo/pkg/events"
	"github.com/transitgeo/transitgeo/pkg/queue"
	"github.com/transitgeo/transitgeo/pkg/shape"
	"github.com/transitgeo/transitgeo/pkg/sink"
	"github.com/transitgeo/transitgeo/pkg/transit"
	"github.com/transitgeo/transitgeo/pkg/ztmapi"
)

const (
	DefaultPollTimeout = 30 * time.Second
	DefaultWindow      = 60 * time.Second

	pollErrorDelay = time.Second
)

// Processor turns snapshots from one topic into vehicle silhouettes and replaces the
// class's live table with them, one snapshot per cycle.
type Processor struct {
	Class    transit.VehicleClass
	Topic    string
	Table    string
	Consumer queue.Consumer
	Sink     sink.GeometrySink

	Shapes       *shape.Synthesizer
	GeometryType transit.GeometryType

	PollTimeout time.Duration
	Window      time.Duration
	Location    *time.Location
	Filter      *Filter

	Recorder events.Recorder
	Now      func() time.Time
}

// Run processes cycles until the context is cancelled or the consumer is closed.
func (p *Processor) Run(ctx context.Context) error {
	log.Info().
		Str("class", string(p.Class)).
		Str("topic", p.Topic).
		Str("table", p.Table).
		Str("filter", p.Filter.String()).
		Msg("Starting live processor")

	for {
		result := p.Cycle(ctx)

		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(result.Err, queue.ErrClosed) {
			return result.Err
		}

		if result.Status == events.StatusError && result.Reason == "poll" {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(pollErrorDelay):
			}
		}
	}
}

func (p *Processor) Cycle(ctx context.Context) events.CycleResult {
	startTime := p.now()

	result := p.cycle(ctx)
	result.Pipeline = events.PipelineLive
	result.Topic = p.Topic
	result.Timestamp = startTime
	result.Duration = p.now().Sub(startTime)

	if ctx.Err() == nil && p.Recorder != nil {
		p.Recorder.Record(result)
	}

	return result
}

func (p *Processor) cycle(ctx context.Context) events.CycleResult {
	message, err := p.Consumer.Poll(ctx, p.pollTimeout())
	if errors.Is(err, queue.ErrPollTimeout) {
		return events.Skipped(events.PipelineLive, p.Topic, "poll timeout")
	}
	if err != nil {
		return events.Failed(events.PipelineLive, p.Topic, "poll", err)
	}

	payload := message.Payload()

	if ztmapi.IsSentinel(payload) {
		if err := message.Ack(); err != nil {
			return events.Failed(events.PipelineLive, p.Topic, "ack", err)
		}
		return events.Skipped(events.PipelineLive, p.Topic, "no data")
	}

	snapshot, err := DecodeSnapshot(payload, p.Class, p.location())
	if err != nil {
		if rejectErr := message.Reject(); rejectErr != nil {
			log.Error().Err(rejectErr).Str("topic", p.Topic).Msg("Failed to reject message")
		}
		return events.Failed(events.PipelineLive, p.Topic, "decode", err)
	}

	// the window is measured from when the snapshot is processed, not from when the poll began
	records, dropped := p.BuildRecords(snapshot.Positions, p.now())
	dropped += snapshot.Dropped

	writeErr := p.Sink.ReplacePositions(ctx, p.Table, records)

	// a later snapshot supersedes this one, so it is acknowledged even when the write failed
	if err := message.Ack(); err != nil {
		log.Error().Err(err).Str("topic", p.Topic).Msg("Failed to ack message")
	}

	if writeErr != nil {
		result := events.Failed(events.PipelineLive, p.Topic, "sink", writeErr)
		result.Dropped = dropped
		return result
	}

	return events.CycleResult{
		Status:  events.StatusOK,
		Records: len(records),
		Dropped: dropped,
	}
}

// BuildRecords applies the time window and filter and draws a silhouette for every
// remaining position, in snapshot order.
func (p *Processor) BuildRecords(positions []transit.VehiclePosition, now time.Time) ([]transit.GeometryRecord, int) {
	inWindow := InWindow(positions, now, p.window())
	dropped := len(positions) - len(inWindow)

	synthesizer := p.Shapes
	if synthesizer == nil {
		synthesizer = shape.Default()
	}

	records := make([]transit.GeometryRecord, 0, len(inWindow))
	for i := range inWindow {
		position := inWindow[i]

		matched, err := p.Filter.Match(position, now)
		if err != nil {
			log.Debug().Err(err).Str("line", position.Line).Msg("Filter failed for position")
		}
		if !matched {
			dropped++
			continue
		}

		silhouette := synthesizer.Shape(position.Point())

		records = append(records, transit.GeometryRecord{
			Key:         position.Line,
			Geometry:    silhouette.WKT(p.GeometryType),
			Description: position.Description(),
			Position:    &position,
		})
	}

	return records, dropped
}

func (p *Processor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Processor) pollTimeout() time.Duration {
	if p.PollTimeout > 0 {
		return p.PollTimeout
	}
	return DefaultPollTimeout
}

func (p *Processor) window() time.Duration {
	if p.Window > 0 {
		return p.Window
	}
	return DefaultWindow
}

func (p *Processor) location() *time.Location {
	if p.Location != nil {
		return p.Location
	}
	return time.Local
}
