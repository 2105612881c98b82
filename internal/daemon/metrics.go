package daemon

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DaemonMetrics holds operational metrics using OTEL semantic conventions
type DaemonMetrics struct {
	sweeps        metric.Int64Counter
	sweepDuration metric.Float64Histogram
	resources     metric.Int64Gauge
}

// NewDaemonMetrics creates daemon metrics on the global meter provider.
func NewDaemonMetrics() (*DaemonMetrics, error) {
	return newDaemonMetricsWithProvider(otel.GetMeterProvider())
}

func newDaemonMetricsWithProvider(provider metric.MeterProvider) (*DaemonMetrics, error) {
	meter := provider.Meter("tagsweep.daemon")

	sweeps, err := meter.Int64Counter(
		"tagsweep.daemon.sweeps",
		metric.WithDescription("Number of sweep runs"),
		metric.WithUnit("{sweep}"),
	)
	if err != nil {
		return nil, err
	}

	sweepDuration, err := meter.Float64Histogram(
		"tagsweep.daemon.sweep.duration",
		metric.WithDescription("Duration of sweep runs"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 15, 30, 60, 120, 300, 600, 1800),
	)
	if err != nil {
		return nil, err
	}

	resources, err := meter.Int64Gauge(
		"tagsweep.resources.written",
		metric.WithDescription("Ownership records written by the last sweep"),
		metric.WithUnit("{resource}"),
	)
	if err != nil {
		return nil, err
	}

	return &DaemonMetrics{
		sweeps:        sweeps,
		sweepDuration: sweepDuration,
		resources:     resources,
	}, nil
}

// RecordSweep records a sweep run with its status and duration.
func (m *DaemonMetrics) RecordSweep(ctx context.Context, status string, durationSeconds float64) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.sweeps.Add(ctx, 1, attrs)
	m.sweepDuration.Record(ctx, durationSeconds, attrs)
}

// RecordResourcesWritten records how many records the last sweep wrote.
func (m *DaemonMetrics) RecordResourcesWritten(ctx context.Context, count int64) {
	m.resources.Record(ctx, count)
}
