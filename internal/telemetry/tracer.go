// Package telemetry provides OpenTelemetry spans for nextup. Without an SDK
// registered the global tracer is a no-op.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/julianstephens/nextup"

// Span names
const (
	SpanShuffleEvaluate = "nextup.shuffle.evaluate"
	SpanShuffleFire     = "nextup.shuffle.fire"
	SpanShuffleManual   = "nextup.shuffle.manual"
	SpanPomodoroAdvance = "nextup.pomodoro.advance"

	SpanSyncCompare = "nextup.sync.compare"
	SpanSyncApply   = "nextup.sync.apply"
	SpanSyncPush    = "nextup.sync.push"
)

// Attribute keys
const (
	KeyTaskID        = "nextup.task.id"
	KeyScheduledAt   = "nextup.shuffle.scheduled_at"
	KeyDailyCount    = "nextup.shuffle.daily_count"
	KeyDecision      = "nextup.shuffle.decision"
	KeyPhase         = "nextup.pomodoro.phase"
	KeyPeerDeviceID  = "nextup.peer.device_id"
	KeyManifestSize  = "nextup.sync.manifest_size"
	KeyRequestCount  = "nextup.sync.request_count"
	KeyAdvertiseSize = "nextup.sync.advertise_count"
	KeyErrorCategory = "nextup.error.category"
)

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span with the given attributes.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartTaskSpan starts a span tagged with a task id.
func StartTaskSpan(ctx context.Context, name, taskID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String(KeyTaskID, taskID))
	return tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// SetDecision records what a scheduling evaluation decided.
func SetDecision(span trace.Span, decision string) {
	span.SetAttributes(attribute.String(KeyDecision, decision))
}

// RecordError records an error on a span with an optional category
func RecordError(span trace.Span, err error, category string) {
	if err == nil {
		return
	}

	attrs := []attribute.KeyValue{attribute.String("exception.message", err.Error())}
	if category != "" {
		attrs = append(attrs, attribute.String(KeyErrorCategory, category))
	}

	span.RecordError(err, trace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
}
