package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yairfalse/tagsweep/internal/config"
	"github.com/yairfalse/tagsweep/internal/daemon"
	"github.com/yairfalse/tagsweep/internal/filter"
	"github.com/yairfalse/tagsweep/internal/journal"
	"github.com/yairfalse/tagsweep/internal/plugin"
	"github.com/yairfalse/tagsweep/internal/plugin/aws"
	"github.com/yairfalse/tagsweep/internal/store"
	"github.com/yairfalse/tagsweep/internal/sweep"
	"github.com/yairfalse/tagsweep/internal/telemetry"
)

var (
	sweepRegions     []string
	sweepKinds       []string
	sweepTagKey      string
	sweepTable       string
	sweepDatabaseURL string
	sweepProfile     string
	sweepJournal     string
	sweepInterval    string
	sweepMetricsAddr string
	sweepAutoMigrate bool
)

// sweepCmd runs the ownership sweep
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Sweep regions and upsert ownership records",
	Long: `Sweep every configured region once (or on an interval) and upsert one
ownership record per tagged resource.

Regions are processed one after another and kinds in a fixed order. A kind
that cannot be listed is reported and the sweep moves on. The command exits
non-zero when a region could not be swept at all.`,
	Example: `  tagsweep sweep --config tagsweep.yaml
  tagsweep sweep --regions us-east-1,eu-west-1 --tag-key customer
  tagsweep sweep --kinds vm,queue --table aws_resources
  tagsweep sweep --interval 15m --metrics-addr :9090`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	addSweepFlags(sweepCmd)
}

func addSweepFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSliceVar(&sweepRegions, "regions", nil, "Regions to sweep (comma-separated)")
	f.StringSliceVar(&sweepKinds, "kinds", nil, "Resource kinds to sweep (default all)")
	f.StringVar(&sweepTagKey, "tag-key", "", "Ownership tag key")
	f.StringVar(&sweepTable, "table", "", "Ownership table name")
	f.StringVar(&sweepDatabaseURL, "database-url", "", "PostgreSQL connection URL")
	f.StringVar(&sweepProfile, "profile", "", "AWS shared config profile")
	f.StringVar(&sweepJournal, "journal", "", "Sweep history database path")
	f.StringVar(&sweepInterval, "interval", "", "Repeat the sweep on this interval (e.g. 15m)")
	f.StringVar(&sweepMetricsAddr, "metrics-addr", "", "Metrics and health address in interval mode")
	f.BoolVar(&sweepAutoMigrate, "auto-migrate", false, "Create the ownership table and index if missing")
}

// applySweepFlags overrides cfg with the flags that were set.
func applySweepFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("regions") {
		cfg.Regions = sweepRegions
	}
	if f.Changed("kinds") {
		cfg.Kinds = sweepKinds
	}
	if f.Changed("tag-key") {
		cfg.TagKey = sweepTagKey
	}
	if f.Changed("table") {
		cfg.Database.Table = sweepTable
	}
	if f.Changed("database-url") {
		cfg.Database.URL = sweepDatabaseURL
	}
	if f.Changed("profile") {
		cfg.AWS.Profile = sweepProfile
	}
	if f.Changed("journal") {
		cfg.Journal.Path = sweepJournal
	}
	if f.Changed("interval") {
		cfg.Daemon.IntervalStr = sweepInterval
	}
	if f.Changed("metrics-addr") {
		cfg.Daemon.MetricsAddr = sweepMetricsAddr
	}
	if f.Changed("auto-migrate") {
		cfg.Database.AutoMigrate = sweepAutoMigrate
	}
	if err := cfg.ParseInterval(); err != nil {
		return err
	}
	return cfg.Validate()
}

func runSweep(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if err := applySweepFlags(cmd, cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	daemonMode := cfg.Daemon.Interval > 0
	var telemetryOpts []telemetry.Option
	if daemonMode {
		telemetryOpts = append(telemetryOpts, telemetry.WithPrometheus())
	}
	tel, err := telemetry.NewProvider(ctx, cfg.OTEL, telemetryOpts...)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("telemetry shutdown")
		}
	}()

	st, err := store.Open(ctx, cfg.Database.URL, store.Options{
		Table:        cfg.Database.Table,
		LogLevel:     gormlogger.Error,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		Logger:       &log,
	})
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if cfg.Database.AutoMigrate {
		if err := st.Migrate(ctx); err != nil {
			return err
		}
		log.Info().Str("table", st.Table()).Msg("ownership table migrated")
	}

	var upserter sweep.Upserter = st
	var hist *journal.Journal
	if cfg.Journal.Path != "" {
		hist, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer func() { _ = hist.Close() }()
		upserter = hist.Track(st)
	}

	registry := plugin.NewRegistry()
	aws.Register(registry, cfg.AWS.Profile)
	factory, err := registry.Get(aws.ProviderName)
	if err != nil {
		return err
	}

	kinds, err := cfg.ResourceKinds()
	if err != nil {
		return err
	}
	driver := sweep.NewDriver(upserter, sweep.Config{
		TagKey:     cfg.TagKey,
		DenyOwners: cfg.DenyOwners,
		Kinds:      kinds,
		Filter:     filter.New(cfg.Filter.IncludeTags, cfg.Filter.ExcludeTags),
	}, tel, log)
	sweeper := sweep.NewSweeper(factory, driver, log)

	log.Info().
		Strs("regions", cfg.Regions).
		Str("tag_key", cfg.TagKey).
		Str("table", st.Table()).
		Int("kinds", len(kinds)).
		Msg("tagsweep starting")

	runOnce := func(ctx context.Context) (*sweep.Report, error) {
		report, err := sweeper.Run(ctx, cfg.Regions)
		if hist != nil && report != nil {
			recordHistory(context.WithoutCancel(ctx), hist, report, cfg.Journal.KeepRuns, log)
		}
		return report, err
	}

	if !daemonMode {
		report, err := runOnce(ctx)
		if report != nil {
			printReport(cmd.OutOrStdout(), report)
		}
		return err
	}

	return runDaemon(ctx, cfg, tel, runOnce, log)
}

// recordHistory stores report in the journal and drops runs beyond keepRuns.
// Journal failures are logged; they never fail the sweep.
func recordHistory(ctx context.Context, hist *journal.Journal, report *sweep.Report, keepRuns int64, log zerolog.Logger) {
	rev, err := hist.Record(ctx, report)
	if err != nil {
		log.Error().Err(err).Msg("failed to record sweep history")
		return
	}

	if err := hist.Compact(keepRuns); err != nil {
		log.Error().Err(err).Int64("keep_runs", keepRuns).Msg("failed to compact sweep history")
		return
	}
	log.Debug().
		Int64("revision", rev).
		Int("resources", hist.Len()).
		Msg("sweep recorded")
}

func runDaemon(ctx context.Context, cfg *config.Config, tel *telemetry.Provider, fn daemon.SweepFunc, log zerolog.Logger) error {
	metrics, err := daemon.NewDaemonMetrics()
	if err != nil {
		return fmt.Errorf("create daemon metrics: %w", err)
	}

	d, err := daemon.NewDaemon(daemon.Config{
		Interval: cfg.Daemon.Interval,
		Addr:     cfg.Daemon.MetricsAddr,
		Metrics:  tel.Handler(),
	}, fn, metrics, log)
	if err != nil {
		return err
	}

	log.Info().
		Dur("interval", cfg.Daemon.Interval).
		Str("metrics_addr", cfg.Daemon.MetricsAddr).
		Msg("running in interval mode")
	return d.Run(ctx)
}

// printReport writes a per-region, per-kind summary table.
func printReport(out io.Writer, report *sweep.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "REGION\tKIND\tLISTED\tWRITTEN\tSKIPPED\tFAILED\tTAG ERRORS\tSTATUS")
	for _, region := range report.Regions {
		if region.Error != "" {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\t-\t-\t%s\n", region.Region, region.Error)
			continue
		}
		for _, k := range region.Kinds {
			status := "ok"
			switch {
			case !k.Enumerated():
				status = k.Error
			case k.Cancelled:
				status = "cancelled"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
				region.Region, k.Kind, k.Listed, k.Written, k.Skipped, k.Failed, k.TagErrors, status)
		}
	}
	_ = w.Flush()

	t := report.Totals()
	fmt.Fprintf(out, "\n%d listed, %d written, %d skipped, %d failed in %s\n",
		t.Listed, t.Written, t.Skipped, t.Failed, report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
}
