package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestSpansWithoutProvider(t *testing.T) {
	ctx, span := StartTaskSpan(context.Background(), SpanShuffleFire, "task-1", attribute.Int(KeyDailyCount, 2))
	if ctx == nil || span == nil {
		t.Fatal("StartTaskSpan() returned nil")
	}
	SetDecision(span, "armed")
	RecordError(span, errors.New("boom"), "storage")
	RecordError(span, nil, "")
	span.End()
}
