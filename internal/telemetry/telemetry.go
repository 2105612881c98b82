// Package telemetry provides OpenTelemetry instrumentation for tagsweep.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/tagsweep/internal/config"
)

const instrumentationName = "github.com/yairfalse/tagsweep"

// Option configures a Provider.
type Option func(*options)

type options struct {
	prometheus bool
}

// WithPrometheus adds a pull-based Prometheus reader served by Handler.
func WithPrometheus() Option {
	return func(o *options) { o.prometheus = true }
}

// Provider wraps OTEL tracer and meter providers.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	registry       *promclient.Registry

	// Metrics
	kindDuration   metric.Float64Histogram
	resourceCount  metric.Int64Counter
	kindErrors     metric.Int64Counter
	outcomeCounter metric.Int64Counter
}

// NewProvider creates a new telemetry provider.
func NewProvider(ctx context.Context, cfg config.OTELConfig, opts ...Option) (*Provider, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	p := &Provider{}

	if err := p.setupTracing(ctx, cfg, res); err != nil {
		return nil, err
	}

	if err := p.setupMetrics(ctx, cfg, o, res); err != nil {
		if p.tracerProvider != nil {
			_ = p.tracerProvider.Shutdown(ctx)
		}
		return nil, err
	}

	if err := p.initMetrics(); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Provider) setupTracing(ctx context.Context, cfg config.OTELConfig, res *resource.Resource) error {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}

	if cfg.Traces.Enabled && cfg.Endpoint != "" {
		exp, err := createTraceExporter(ctx, cfg)
		if err != nil {
			return fmt.Errorf("create trace exporter: %w", err)
		}
		sampler := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Traces.SampleRate))
		opts = append(opts, sdktrace.WithBatcher(exp), sdktrace.WithSampler(sampler))
	}

	p.tracerProvider = sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(p.tracerProvider)
	p.tracer = p.tracerProvider.Tracer(instrumentationName)

	return nil
}

func (p *Provider) setupMetrics(ctx context.Context, cfg config.OTELConfig, o options, res *resource.Resource) error {
	opts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
	}

	if o.prometheus {
		p.registry = promclient.NewRegistry()
		exp, err := prometheus.New(prometheus.WithRegisterer(p.registry))
		if err != nil {
			return fmt.Errorf("create prometheus exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(exp))
	}

	if cfg.Metrics.Enabled && cfg.Endpoint != "" {
		exp, err := createMetricExporter(ctx, cfg)
		if err != nil {
			return fmt.Errorf("create metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
	}

	p.meterProvider = sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(p.meterProvider)
	p.meter = p.meterProvider.Meter(instrumentationName)

	return nil
}

func createTraceExporter(ctx context.Context, cfg config.OTELConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.New(ctx, opts...)
}

func createMetricExporter(ctx context.Context, cfg config.OTELConfig) (sdkmetric.Exporter, error) {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	return otlpmetricgrpc.New(ctx, opts...)
}

func (p *Provider) initMetrics() error {
	var err error

	p.kindDuration, err = p.meter.Float64Histogram(
		"tagsweep_kind_duration_seconds",
		metric.WithDescription("Duration of one resource kind sweep in one region"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create kind_duration: %w", err)
	}

	p.resourceCount, err = p.meter.Int64Counter(
		"tagsweep_resources_listed_total",
		metric.WithDescription("Total resources enumerated"),
	)
	if err != nil {
		return fmt.Errorf("create resource_count: %w", err)
	}

	p.kindErrors, err = p.meter.Int64Counter(
		"tagsweep_kind_errors_total",
		metric.WithDescription("Total resource kinds that failed enumeration"),
	)
	if err != nil {
		return fmt.Errorf("create kind_errors: %w", err)
	}

	p.outcomeCounter, err = p.meter.Int64Counter(
		"tagsweep_resources_total",
		metric.WithDescription("Total resources handled, by outcome"),
	)
	if err != nil {
		return fmt.Errorf("create outcomes: %w", err)
	}

	return nil
}

// Handler serves the Prometheus registry, or nil without WithPrometheus.
func (p *Provider) Handler() http.Handler {
	if p.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// StartSpan starts a new span.
func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, name)
}

// RecordKind records the duration and listed count of one kind, and counts
// the kind as an error when err is not nil.
func (p *Provider) RecordKind(ctx context.Context, region, kind string, d time.Duration, listed int, err error) {
	attrs := metric.WithAttributes(
		attribute.String("region", region),
		attribute.String("kind", kind),
	)
	p.kindDuration.Record(ctx, d.Seconds(), attrs)
	p.resourceCount.Add(ctx, int64(listed), attrs)
	if err != nil {
		p.kindErrors.Add(ctx, 1, attrs)
	}
}

// RecordOutcome counts one handled resource.
func (p *Provider) RecordOutcome(ctx context.Context, region, kind, outcome string) {
	p.outcomeCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("region", region),
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}

// Shutdown flushes and shuts down the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown tracer: %w", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown meter: %w", err)
		}
	}
	return nil
}
