package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	Cycles        *prometheus.CounterVec // status label: ok|skipped|error
	Records       *prometheus.CounterVec
	Dropped       *prometheus.CounterVec
	CycleDuration *prometheus.HistogramVec

	Published    *prometheus.CounterVec
	PublishErrs  *prometheus.CounterVec
	RoutesBuilt  prometheus.Gauge
	RoutesFailed *prometheus.GaugeVec // reason label: too_short|bad_ordinal
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transitgeo_cycles_total",
			Help: "Pipeline cycles by outcome.",
		}, []string{"pipeline", "topic", "status"}),
		Records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transitgeo_records_total",
			Help: "Geometry records written.",
		}, []string{"pipeline", "topic"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transitgeo_dropped_total",
			Help: "Input entries dropped while building records.",
		}, []string{"pipeline", "topic"}),
		CycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "transitgeo_cycle_duration_seconds",
			Help:    "Duration of a pipeline cycle.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 15),
		}, []string{"pipeline"}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transitgeo_queue_published_total",
			Help: "Snapshots published to the queue.",
		}, []string{"topic"}),
		PublishErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transitgeo_queue_publish_errors_total",
			Help: "Snapshots that failed to publish.",
		}, []string{"topic"}),
		RoutesBuilt: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "transitgeo_routes_built",
			Help: "Routes written by the last batch build.",
		}),
		RoutesFailed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "transitgeo_routes_rejected",
			Help: "Routes rejected by the last batch build.",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		c.Cycles, c.Records, c.Dropped, c.CycleDuration,
		c.Published, c.PublishErrs,
		c.RoutesBuilt, c.RoutesFailed,
	)

	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.reg
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}
