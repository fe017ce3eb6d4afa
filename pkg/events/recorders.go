package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/transitgeo/transitgeo/pkg/elastic_client"
	"github.com/transitgeo/transitgeo/pkg/metrics"
)

type LogRecorder struct{}

func (LogRecorder) Record(result CycleResult) {
	var event *zerolog.Event
	switch result.Status {
	case StatusError:
		event = log.Error().Err(result.Err)
	case StatusSkipped:
		event = log.Debug()
	default:
		event = log.Info()
	}

	event.
		Str("pipeline", string(result.Pipeline)).
		Str("topic", result.Topic).
		Str("status", string(result.Status)).
		Str("reason", result.Reason).
		Int("records", result.Records).
		Int("dropped", result.Dropped).
		Str("length", result.Duration.String()).
		Msg("Cycle complete")
}

type MetricsRecorder struct {
	Collector *metrics.Collector
}

func (m MetricsRecorder) Record(result CycleResult) {
	pipeline := string(result.Pipeline)

	m.Collector.Cycles.WithLabelValues(pipeline, result.Topic, string(result.Status)).Inc()
	m.Collector.Records.WithLabelValues(pipeline, result.Topic).Add(float64(result.Records))
	m.Collector.Dropped.WithLabelValues(pipeline, result.Topic).Add(float64(result.Dropped))
	m.Collector.CycleDuration.WithLabelValues(pipeline).Observe(result.Duration.Seconds())
}

// ElasticRecorder indexes results into a monthly index. With a nil indexer it does nothing.
type ElasticRecorder struct {
	Indexer     *elastic_client.Indexer
	IndexPrefix string
}

type elasticDocument struct {
	CycleResult

	DurationSeconds float64 `json:"duration_seconds"`
	Error           string  `json:"error,omitempty"`
}

func (e ElasticRecorder) Record(result CycleResult) {
	if !e.Indexer.Enabled() {
		return
	}

	document := elasticDocument{
		CycleResult:     result,
		DurationSeconds: result.Duration.Seconds(),
	}
	if result.Err != nil {
		document.Error = result.Err.Error()
	}

	documentJSON, err := json.Marshal(document)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode cycle event")
		return
	}

	e.Indexer.IndexRequest(e.indexName(result.Timestamp), bytes.NewReader(documentJSON))
}

func (e ElasticRecorder) indexName(timestamp time.Time) string {
	prefix := e.IndexPrefix
	if prefix == "" {
		prefix = "transitgeo-cycles"
	}
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	return fmt.Sprintf("%s-%d-%02d", prefix, timestamp.Year(), timestamp.Month())
}
