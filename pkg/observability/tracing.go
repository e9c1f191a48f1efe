// Package observability provides tracing and metrics for the summarization
// pipeline and the neutralization engine.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the name of the tracer for conclave operations.
const TracerName = "conclave"

// Span attribute keys
const (
	AttrMeetingID  = "meeting_id"
	AttrTaskID     = "task_id"
	AttrActorID    = "actor_id"
	AttrTrigger    = "trigger"
	AttrStage      = "stage"
	AttrModel      = "model"
	AttrDurationMs = "duration_ms"
	AttrTaskCount  = "task_count"
	AttrConfidence = "confidence"
	AttrErrorType  = "error_type"
	AttrRetryable  = "retryable"
)

// Span names
const (
	SpanSummarize     = "conclave.summarize"
	SpanNeutralize    = "conclave.neutralize"
	SpanInferenceCall = "conclave.inference_call"
	SpanParseOutput   = "conclave.parse_output"
	SpanEmailTriage   = "conclave.email_triage"
)

// Tracer provides distributed tracing for pipeline and engine operations.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new conclave tracer.
func NewTracer() *Tracer {
	return &Tracer{tracer: otel.Tracer(TracerName)}
}

// StartSummarizeSpan starts a root span for one summarization job.
func (t *Tracer) StartSummarizeSpan(ctx context.Context, meetingID, trigger string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanSummarize,
		trace.WithAttributes(
			attribute.String(AttrMeetingID, meetingID),
			attribute.String(AttrTrigger, trigger),
		),
	)
}

// StartNeutralizeSpan starts a root span for one neutralization attempt.
func (t *Tracer) StartNeutralizeSpan(ctx context.Context, meetingID, taskID, actorID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanNeutralize,
		trace.WithAttributes(
			attribute.String(AttrMeetingID, meetingID),
			attribute.String(AttrTaskID, taskID),
			attribute.String(AttrActorID, actorID),
		),
	)
}

// StartInferenceSpan starts a span for a model call.
func (t *Tracer) StartInferenceSpan(ctx context.Context, model, stage string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanInferenceCall,
		trace.WithAttributes(
			attribute.String(AttrModel, model),
			attribute.String(AttrStage, stage),
		),
	)
}

// StartStageSpan starts a span for a named pipeline stage.
func (t *Tracer) StartStageSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, fmt.Sprintf("conclave.stage.%s", stage),
		trace.WithAttributes(attribute.String(AttrStage, stage)),
	)
}

// SpanHelper provides convenient methods for working with the current span.
type SpanHelper struct {
	span trace.Span
}

// NewSpanHelper creates a new span helper for the given span.
func NewSpanHelper(span trace.Span) *SpanHelper {
	return &SpanHelper{span: span}
}

// SetDuration sets the duration attribute.
func (h *SpanHelper) SetDuration(durationMs int64) {
	h.span.SetAttributes(attribute.Int64(AttrDurationMs, durationMs))
}

// SetTaskCount sets the number of tasks extracted from a summary.
func (h *SpanHelper) SetTaskCount(n int) {
	h.span.SetAttributes(attribute.Int(AttrTaskCount, n))
}

// SetConfidence sets the agent's reported confidence score.
func (h *SpanHelper) SetConfidence(score int) {
	h.span.SetAttributes(attribute.Int(AttrConfidence, score))
}

// SetError records an error on the span.
func (h *SpanHelper) SetError(err error, errorType string, retryable bool) {
	h.span.SetStatus(codes.Error, err.Error())
	h.span.SetAttributes(
		attribute.String(AttrErrorType, errorType),
		attribute.Bool(AttrRetryable, retryable),
	)
	h.span.RecordError(err)
}

// SetSuccess marks the span as successful.
func (h *SpanHelper) SetSuccess() {
	h.span.SetStatus(codes.Ok, "")
}

// AddEvent adds an event to the span.
func (h *SpanHelper) AddEvent(name string, attrs ...attribute.KeyValue) {
	h.span.AddEvent(name, trace.WithAttributes(attrs...))
}
