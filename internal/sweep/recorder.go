package sweep

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Recorder receives spans and metrics from a sweep.
type Recorder interface {
	StartSpan(ctx context.Context, name string) (context.Context, trace.Span)
	RecordKind(ctx context.Context, region, kind string, d time.Duration, listed int, err error)
	RecordOutcome(ctx context.Context, region, kind, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) StartSpan(ctx context.Context, _ string) (context.Context, trace.Span) {
	return ctx, trace.SpanFromContext(ctx)
}

func (nopRecorder) RecordKind(context.Context, string, string, time.Duration, int, error) {}

func (nopRecorder) RecordOutcome(context.Context, string, string, string) {}
