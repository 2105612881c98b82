// Package sweep runs the enumerate, resolve, and upsert pipeline over regions.
package sweep

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yairfalse/tagsweep/internal/filter"
	"github.com/yairfalse/tagsweep/internal/plugin"
	"github.com/yairfalse/tagsweep/pkg/resource"
)

// Config holds the pipeline policy.
type Config struct {
	TagKey     string
	DenyOwners []string
	Kinds      []resource.Kind // nil sweeps every kind
	Filter     *filter.Filter  // nil admits every resource
}

// Driver runs the pipeline for every configured kind of one region.
type Driver struct {
	resolver *Resolver
	writer   *Writer
	filter   *filter.Filter
	kinds    []resource.Kind
	recorder Recorder
	log      zerolog.Logger
}

// NewDriver creates a region driver writing to store. A nil recorder disables
// spans and metrics.
func NewDriver(store Upserter, cfg Config, rec Recorder, log zerolog.Logger) *Driver {
	kinds := cfg.Kinds
	if len(kinds) == 0 {
		kinds = resource.Kinds()
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Driver{
		resolver: NewResolver(cfg.TagKey),
		writer:   NewWriter(store, cfg.DenyOwners, log),
		filter:   cfg.Filter,
		kinds:    kinds,
		recorder: rec,
		log:      log,
	}
}

// Run sweeps every kind of inv in order. Each kind is isolated: an
// enumeration failure is recorded on its KindReport and the next kind runs.
func (d *Driver) Run(ctx context.Context, inv plugin.Inventory) RegionReport {
	region := inv.Region()
	ctx, span := d.recorder.StartSpan(ctx, "sweep.region")
	defer span.End()
	span.SetAttributes(attribute.String("cloud.region", region))

	start := time.Now()
	report := RegionReport{Region: region}
	d.log.Info().Ctx(ctx).Str("region", region).Msg("processing region")

	for _, kind := range d.kinds {
		if ctx.Err() != nil {
			break
		}
		report.Kinds = append(report.Kinds, d.runKind(ctx, inv, kind))
	}

	report.Duration = time.Since(start)
	if report.Failed() {
		span.SetStatus(codes.Error, "every kind failed")
	}
	return report
}

func (d *Driver) runKind(ctx context.Context, inv plugin.Inventory, kind resource.Kind) (kr KindReport) {
	region := inv.Region()
	kr.Kind = kind
	start := time.Now()

	ctx, span := d.recorder.StartSpan(ctx, "sweep.kind")
	logger := d.log.With().Ctx(ctx).Str("region", region).Str("kind", kind.String()).Logger()
	span.SetAttributes(attribute.String("cloud.region", region), attribute.String("resource.kind", kind.String()))

	var listErr error
	defer func() {
		if p := recover(); p != nil {
			listErr = fmt.Errorf("panic: %v", p)
		}
		if listErr != nil {
			kr.Error = listErr.Error()
			span.RecordError(listErr)
			span.SetStatus(codes.Error, listErr.Error())
			logger.Error().Err(listErr).Msg("resource kind failed")
		}
		kr.Duration = time.Since(start)
		d.recorder.RecordKind(ctx, region, kind.String(), kr.Duration, kr.Listed, listErr)
		span.End()
	}()

	src, ok := inv.Source(kind)
	if !ok {
		listErr = fmt.Errorf("no source for %s", kind)
		return kr
	}

	locators, err := src.List(ctx)
	if err != nil {
		listErr = fmt.Errorf("list %s: %w", kind, err)
		return kr
	}
	kr.Listed = len(locators)
	logger.Info().Int("count", len(locators)).Msg("listed resources")

	for _, loc := range locators {
		if ctx.Err() != nil {
			kr.Cancelled = true
			logger.Warn().Int("remaining", kr.Listed-kr.Written-kr.Skipped-kr.Failed).Msg("sweep cancelled")
			return kr
		}

		outcome := d.handle(ctx, src, loc, &kr, logger)
		d.recorder.RecordOutcome(ctx, region, kind.String(), outcome.String())
	}

	return kr
}

// handle runs one resource through extract, resolve, and write.
func (d *Driver) handle(ctx context.Context, src plugin.Source, loc resource.Locator, kr *KindReport, logger zerolog.Logger) Outcome {
	kind := src.Kind()
	id := resource.ExtractID(loc.Raw, kind)

	res, err := d.resolver.Resolve(ctx, src, loc)
	if err != nil {
		kr.TagErrors++
		d.logRecoverable(logger, err)
	}

	if res.Skip {
		kr.Skipped++
		logger.Info().Str("resource_id", id).Str("name", loc.Name).Msg("no valid customer tag found, skipping")
		return OutcomeSkipped
	}

	if !d.filter.Allow(res.Tags) {
		kr.Skipped++
		logger.Debug().Str("resource_id", id).Msg("excluded by tag filter")
		return OutcomeSkipped
	}

	outcome, err := d.writer.Write(ctx, res.Owner, id, kind)
	switch outcome {
	case OutcomeWritten:
		kr.Written++
	case OutcomeSkipped:
		kr.Skipped++
	case OutcomeFailed:
		kr.Failed++
		d.logRecoverable(logger, err)
	}
	return outcome
}

func (d *Driver) logRecoverable(logger zerolog.Logger, err error) {
	re, ok := AsRecoverable(err)
	if !ok {
		logger.Error().Err(err).Msg("unexpected pipeline error")
		return
	}

	ev := logger.Warn()
	if re.Stage == StageWrite {
		ev = logger.Error()
	}
	ev.Err(re.Err).Str("stage", string(re.Stage)).Str("locator", re.Locator).Msg("recoverable error")
}

// Sweeper runs the driver over a list of regions.
type Sweeper struct {
	factory plugin.Factory
	driver  *Driver
	log     zerolog.Logger
}

// NewSweeper creates a sweeper building inventories with factory.
func NewSweeper(factory plugin.Factory, driver *Driver, log zerolog.Logger) *Sweeper {
	return &Sweeper{factory: factory, driver: driver, log: log}
}

// Run sweeps regions one after another and returns the report. The error is
// ErrRegionFailed (wrapped with the region names) when any region failed
// outright, or the context error if the sweep was cancelled.
func (s *Sweeper) Run(ctx context.Context, regions []string) (*Report, error) {
	report := &Report{ID: uuid.Must(uuid.NewV7()).String(), StartedAt: time.Now().UTC()}

	for _, region := range regions {
		if ctx.Err() != nil {
			break
		}
		report.Regions = append(report.Regions, s.runRegion(ctx, region))
	}
	report.FinishedAt = time.Now().UTC()

	totals := report.Totals()
	s.log.Info().
		Str("sweep_id", report.ID).
		Int("regions", len(report.Regions)).
		Int("listed", totals.Listed).
		Int("written", totals.Written).
		Int("skipped", totals.Skipped).
		Int("failed", totals.Failed).
		Int("kind_errors", totals.KindErrs).
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Msg("sweep complete")

	if err := ctx.Err(); err != nil {
		return report, err
	}
	if failed := report.FailedRegions(); len(failed) > 0 {
		return report, fmt.Errorf("%w: %s", ErrRegionFailed, strings.Join(failed, ", "))
	}
	return report, nil
}

func (s *Sweeper) runRegion(ctx context.Context, region string) RegionReport {
	inv, err := s.factory(ctx, region)
	if err != nil {
		s.log.Error().Err(err).Str("region", region).Msg("region inventory unavailable")
		return RegionReport{Region: region, Error: err.Error()}
	}
	return s.driver.Run(ctx, inv)
}
