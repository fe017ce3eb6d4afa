package monitoring

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transitgeo/transitgeo/pkg/metrics"
)

type staticStats string

func (s staticStats) Stats(layout string, refresh string) (string, error) {
	return string(s) + layout, nil
}

func TestHealth(t *testing.T) {
	server := &Server{Checks: map[string]HealthCheck{
		"queue": func(ctx context.Context) error { return nil },
	}}

	resp, err := server.App().Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestHealthFailure(t *testing.T) {
	server := &Server{Checks: map[string]HealthCheck{
		"sink": func(ctx context.Context) error { return errors.New("down") },
	}}

	resp, err := server.App().Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, 503, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "down")
}

func TestMetrics(t *testing.T) {
	collector := metrics.NewCollector()
	collector.Published.WithLabelValues("buses").Inc()

	resp, err := (&Server{Collector: collector}).App().Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `transitgeo_queue_published_total{topic="buses"} 1`)
}

func TestQueueStats(t *testing.T) {
	resp, err := (&Server{}).App().Test(httptest.NewRequest("GET", "/queue/stats", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)

	resp, err = (&Server{QueueStats: staticStats("<table>")}).App().Test(httptest.NewRequest("GET", "/queue/stats?layout=condensed", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "<table>condensed", string(body))
}
