package inference

import (
	"context"
	"time"

	cverrors "github.com/conclave-hq/conclave/pkg/errors"
	"github.com/conclave-hq/conclave/pkg/observability"
)

// instrumentedClient wraps a Client and records per-call metrics under a
// fixed stage label.
type instrumentedClient struct {
	inner   Client
	metrics *observability.Metrics
	stage   string
}

// Instrument decorates a client with call and latency metrics for one
// pipeline stage. A nil metric set returns the client unchanged.
func Instrument(inner Client, m *observability.Metrics, stage string) Client {
	if m == nil {
		return inner
	}
	return &instrumentedClient{inner: inner, metrics: m, stage: stage}
}

func (c *instrumentedClient) Model() string {
	return c.inner.Model()
}

func (c *instrumentedClient) Generate(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	out, err := c.inner.Generate(ctx, req)

	code := "ok"
	if err != nil {
		code = string(cverrors.Classify(err, c.stage).Code)
	}
	c.metrics.InferenceCallsTotal.WithLabelValues(c.stage, code).Inc()
	c.metrics.InferenceLatency.WithLabelValues(c.stage).Observe(time.Since(start).Seconds())
	return out, err
}
