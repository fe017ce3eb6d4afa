package live

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/transitgeo/transitgeo/pkg/events"
	"github.com/transitgeo/transitgeo/pkg/metrics"
	"github.com/transitgeo/transitgeo/pkg/queue"
	"github.com/transitgeo/transitgeo/pkg/transit"
)

const DefaultEmitInterval = 15 * time.Second

type VehicleSource interface {
	FetchVehicles(ctx context.Context, class transit.VehicleClass) (json.RawMessage, error)
}

// Emitter fetches a live snapshot for every class and publishes it untouched to the
// class's topic, once per interval.
type Emitter struct {
	Source    VehicleSource
	Publisher queue.Publisher

	Classes []transit.VehicleClass
	Topics  map[transit.VehicleClass]string

	Interval time.Duration

	Recorder events.Recorder
	Metrics  *metrics.Collector
}

// Run emits until the context is cancelled. The interval is measured from the start of
// each cycle.
func (e *Emitter) Run(ctx context.Context) error {
	interval := e.Interval
	if interval <= 0 {
		interval = DefaultEmitInterval
	}

	log.Info().Str("interval", interval.String()).Int("classes", len(e.Classes)).Msg("Starting live emitter")

	for {
		startTime := time.Now()

		e.Cycle(ctx)

		waitTime := interval - time.Since(startTime)
		if waitTime < 0 {
			waitTime = 0
		}

		timer := time.NewTimer(waitTime)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// Cycle emits one snapshot per class. A failing class does not affect the others.
func (e *Emitter) Cycle(ctx context.Context) []events.CycleResult {
	results := make([]events.CycleResult, 0, len(e.Classes))

	for _, class := range e.Classes {
		if ctx.Err() != nil {
			break
		}

		result := e.emit(ctx, class)
		if e.Recorder != nil {
			e.Recorder.Record(result)
		}
		results = append(results, result)
	}

	return results
}

func (e *Emitter) emit(ctx context.Context, class transit.VehicleClass) events.CycleResult {
	startTime := time.Now()
	topic := e.topic(class)

	result := events.CycleResult{
		Pipeline:  events.PipelineEmitter,
		Topic:     topic,
		Status:    events.StatusOK,
		Timestamp: startTime,
	}

	payload, err := e.Source.FetchVehicles(ctx, class)
	if err != nil {
		result = events.Failed(events.PipelineEmitter, topic, "fetch", err)
	} else if err := e.Publisher.Publish(ctx, topic, payload); err != nil {
		result = events.Failed(events.PipelineEmitter, topic, "publish", err)
		if e.Metrics != nil {
			e.Metrics.PublishErrs.WithLabelValues(topic).Inc()
		}
	} else {
		result.Records = 1
		if e.Metrics != nil {
			e.Metrics.Published.WithLabelValues(topic).Inc()
		}
	}

	result.Timestamp = startTime
	result.Duration = time.Since(startTime)
	return result
}

func (e *Emitter) topic(class transit.VehicleClass) string {
	if topic, exists := e.Topics[class]; exists {
		return topic
	}
	return string(class)
}
