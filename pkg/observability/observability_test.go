package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.SummariesTotal.WithLabelValues("explicit", "success").Inc()
	m.NeutralizationsTotal.WithLabelValues("failure").Inc()
	m.InferenceCallsTotal.WithLabelValues("summarize", "ok").Add(3)
	m.AudioBytesTotal.Add(1024)
	m.SummaryQueueDepth.Set(7)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.SummariesTotal.WithLabelValues("explicit", "success")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.InferenceCallsTotal.WithLabelValues("summarize", "ok")))
	assert.Equal(t, float64(1024), testutil.ToFloat64(m.AudioBytesTotal))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.SummaryQueueDepth))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestTracer_SpansAreSafeWithoutProvider(t *testing.T) {
	tr := NewTracer()
	ctx := context.Background()

	ctx, span := tr.StartSummarizeSpan(ctx, "m1", "explicit")
	helper := NewSpanHelper(span)
	helper.SetDuration(120)
	helper.SetTaskCount(3)
	helper.SetSuccess()
	span.End()

	_, inner := tr.StartInferenceSpan(ctx, "gemini-2.5-flash", "summarize")
	NewSpanHelper(inner).SetError(errors.New("boom"), "timeout", true)
	inner.End()

	_, stage := tr.StartStageSpan(ctx, "parse_output")
	stage.End()
}
