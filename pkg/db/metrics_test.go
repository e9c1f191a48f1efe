package db

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolStatsCollector_Describe(t *testing.T) {
	c := NewPoolStatsCollector(nil, "conclave", "serve")

	ch := make(chan *prometheus.Desc, 10)
	c.Describe(ch)
	close(ch)

	var descs []*prometheus.Desc
	for d := range ch {
		descs = append(descs, d)
	}
	assert.Len(t, descs, 4)
}

func TestPoolStatsCollector_CollectNilPool(t *testing.T) {
	c := NewPoolStatsCollector(nil, "conclave", "serve")

	ch := make(chan prometheus.Metric, 10)
	c.Collect(ch)
	close(ch)

	count := 0
	for range ch {
		count++
	}
	assert.Zero(t, count, "nil pool should produce no metrics")
}

func TestRegisterPoolStatsCollector(t *testing.T) {
	reg := prometheus.NewRegistry()

	c1, err := RegisterPoolStatsCollector(nil, "conclave", "serve", reg)
	require.NoError(t, err)
	require.NotNil(t, c1)

	// Registering an identical collector again is tolerated.
	c2, err := RegisterPoolStatsCollector(nil, "conclave", "serve", reg)
	require.NoError(t, err)
	require.NotNil(t, c2)
}
