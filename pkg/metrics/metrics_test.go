package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewChatMetrics("test_chat", reg)
	require.NoError(t, err)

	m.ObserveTurn("stream", OutcomeSuccess)
	m.ObserveTurn("stream", OutcomeSuccess)
	m.ObserveTurn("complete", OutcomeUpstreamError)
	m.ObserveFragment()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.turnsTotal.WithLabelValues("stream", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.turnsTotal.WithLabelValues("complete", OutcomeUpstreamError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fragmentsTotal))
}

func TestChatMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *ChatMetrics
	assert.NotPanics(t, func() {
		m.ObserveTurn("stream", OutcomeSuccess)
		m.ObserveFragment()
	})
}
