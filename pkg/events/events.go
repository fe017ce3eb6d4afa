package events

import (
	"time"
)

type Pipeline string

const (
	PipelineRoutes  Pipeline = "routes"
	PipelineEmitter Pipeline = "emitter"
	PipelineLive    Pipeline = "live"
)

type Status string

const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// CycleResult describes the outcome of one pipeline iteration.
type CycleResult struct {
	Pipeline Pipeline `json:"pipeline"`
	Topic    string   `json:"topic,omitempty"`
	Status   Status   `json:"status"`
	Reason   string   `json:"reason,omitempty"`

	Records int `json:"records"`
	Dropped int `json:"dropped"`

	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`

	Err error `json:"-"`
}

func Skipped(pipeline Pipeline, topic string, reason string) CycleResult {
	return CycleResult{
		Pipeline: pipeline,
		Topic:    topic,
		Status:   StatusSkipped,
		Reason:   reason,
	}
}

func Failed(pipeline Pipeline, topic string, reason string, err error) CycleResult {
	return CycleResult{
		Pipeline: pipeline,
		Topic:    topic,
		Status:   StatusError,
		Reason:   reason,
		Err:      err,
	}
}

type Recorder interface {
	Record(result CycleResult)
}

// Recorders fans a result out to every recorder in order.
type Recorders []Recorder

func (r Recorders) Record(result CycleResult) {
	for _, recorder := range r {
		recorder.Record(result)
	}
}

type RecorderFunc func(result CycleResult)

func (f RecorderFunc) Record(result CycleResult) {
	f(result)
}
