package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for pipeline and engine operations.
type Metrics struct {
	// Summarization
	SummariesTotal    *prometheus.CounterVec
	SummarySeconds    *prometheus.HistogramVec
	TasksExtracted    prometheus.Histogram
	SummaryQueueDepth prometheus.Gauge

	// Neutralization
	NeutralizationsTotal  *prometheus.CounterVec
	NeutralizationSeconds prometheus.Histogram
	QuotaDenialsTotal     prometheus.Counter

	// Inference
	InferenceCallsTotal   *prometheus.CounterVec
	InferenceLatency      *prometheus.HistogramVec
	InferenceRetriesTotal prometheus.Counter

	// Signaling
	ActiveRooms        prometheus.Gauge
	ActiveParticipants prometheus.Gauge
	AudioBytesTotal    prometheus.Counter
}

// DefaultMetrics creates metrics on the default registerer.
func DefaultMetrics() *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer)
}

// NewMetrics creates a new metric set on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SummariesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conclave_summaries_total",
				Help: "Summarization jobs by trigger and outcome",
			},
			[]string{"trigger", "outcome"},
		),
		SummarySeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "conclave_summary_seconds",
				Help:    "End to end summarization job latency",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"outcome"},
		),
		TasksExtracted: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "conclave_tasks_extracted",
				Help:    "Action items extracted per summary",
				Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
			},
		),
		SummaryQueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "conclave_summary_queue_depth",
				Help: "Summarization jobs waiting in the queue",
			},
		),

		NeutralizationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conclave_neutralizations_total",
				Help: "Neutralization attempts by outcome",
			},
			[]string{"outcome"},
		),
		NeutralizationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "conclave_neutralization_seconds",
				Help:    "Neutralization attempt latency",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
			},
		),
		QuotaDenialsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "conclave_quota_denials_total",
				Help: "Neutralization requests rejected by the rate limiter",
			},
		),

		InferenceCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conclave_inference_calls_total",
				Help: "Model calls by stage and result code",
			},
			[]string{"stage", "code"},
		),
		InferenceLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "conclave_inference_seconds",
				Help:    "Model call latency per stage",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		InferenceRetriesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "conclave_inference_retries_total",
				Help: "Model calls retried after a failure",
			},
		),

		ActiveRooms: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "conclave_active_rooms",
				Help: "Signaling rooms with at least one participant",
			},
		),
		ActiveParticipants: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "conclave_active_participants",
				Help: "Participants connected to the signaling hub",
			},
		),
		AudioBytesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "conclave_audio_bytes_total",
				Help: "Audio chunk bytes appended to room recordings",
			},
		),
	}
}
