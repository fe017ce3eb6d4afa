package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector()

	c.Cycles.WithLabelValues("live", "buses", "ok").Inc()
	c.Cycles.WithLabelValues("live", "buses", "ok").Inc()
	c.Records.WithLabelValues("live", "buses").Add(12)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Cycles.WithLabelValues("live", "buses", "ok")))
	assert.Equal(t, 12.0, testutil.ToFloat64(c.Records.WithLabelValues("live", "buses")))
}
