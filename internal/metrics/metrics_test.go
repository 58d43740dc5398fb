package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewPlayRegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPlay(reg)

	m.RoundsTotal.WithLabelValues("phishing", "correct").Inc()
	m.PointsTotal.WithLabelValues("phishing").Add(160)
	m.ActiveSessions.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RoundsTotal.WithLabelValues("phishing", "correct")))
	assert.Equal(t, 160.0, testutil.ToFloat64(m.PointsTotal.WithLabelValues("phishing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSessions))

	count, err := testutil.GatherAndCount(reg)
	assert.NoError(t, err)
	assert.Equal(t, 3, count)

	assert.Panics(t, func() { NewPlay(reg) }, "double registration must fail loudly")
}
