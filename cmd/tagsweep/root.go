package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/yairfalse/tagsweep/internal/config"
	"github.com/yairfalse/tagsweep/internal/telemetry"
)

var (
	version    = "0.1.0"
	configPath string
	logLevel   string
	logFormat  string

	rootCmd = &cobra.Command{
		Use:   "tagsweep",
		Short: "Cloud resource ownership sweeper",
		Long: `tagsweep - Cloud Resource Ownership Sweeper

tagsweep enumerates compute instances, load balancers, managed databases,
cache clusters and queues in every configured AWS region, reads the
ownership tag of each resource and upserts one ownership record per
(owner, resource) into a relational table.

Resources without an ownership tag are attributed to "Unknown" and never
written. Queues without the tag are skipped entirely.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`tagsweep {{.Version}} - Cloud Resource Ownership Sweeper
`)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (console, json)")
}

// loadConfig reads .env (if present), the config file, and TAGSWEEP_*
// variables, then applies the persistent flags.
func loadConfig(ctx context.Context) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) (zerolog.Logger, error) {
	return telemetry.NewLogger(cfg.Log, cfg.OTEL.ServiceName, cmd.ErrOrStderr())
}
