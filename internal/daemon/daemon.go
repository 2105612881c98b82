// Package daemon repeats sweeps on an interval and serves metrics and health
// endpoints while it does.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/rs/zerolog"

	"github.com/yairfalse/tagsweep/internal/sweep"
)

// SweepFunc runs one sweep.
type SweepFunc func(ctx context.Context) (*sweep.Report, error)

// Config holds daemon configuration
type Config struct {
	Interval time.Duration
	Addr     string       // empty disables the HTTP server
	Metrics  http.Handler // served on /metrics when not nil
}

// Daemon runs sweeps on an interval.
type Daemon struct {
	interval time.Duration
	addr     string
	metrics  http.Handler
	sweep    SweepFunc
	recorder *DaemonMetrics
	log      zerolog.Logger

	startTime  time.Time
	sweepCount atomic.Int64
	port       atomic.Int64

	mu      sync.RWMutex
	lastErr error
}

// NewDaemon creates a new daemon instance. A nil recorder disables daemon
// metrics.
func NewDaemon(cfg Config, fn SweepFunc, recorder *DaemonMetrics, log zerolog.Logger) (*Daemon, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("daemon interval must be positive (got %s)", cfg.Interval)
	}
	if fn == nil {
		return nil, errors.New("daemon needs a sweep function")
	}
	return &Daemon{
		interval:  cfg.Interval,
		addr:      cfg.Addr,
		metrics:   cfg.Metrics,
		sweep:     fn,
		recorder:  recorder,
		log:       log,
		startTime: time.Now(),
	}, nil
}

// Run sweeps immediately and then every interval, serves HTTP when an
// address is configured, and returns on SIGINT/SIGTERM or when ctx ends.
func (d *Daemon) Run(ctx context.Context) error {
	var g run.Group

	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return d.Start(ctx)
		}, func(error) {
			cancel()
		})
	}

	if d.addr != "" {
		ln, err := net.Listen("tcp", d.addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", d.addr, err)
		}
		if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
			d.port.Store(int64(tcp.Port))
		}
		srv := &http.Server{Handler: d.Handler(), ReadHeaderTimeout: 5 * time.Second}
		g.Add(func() error {
			d.log.Info().Str("addr", ln.Addr().String()).Msg("starting metrics server")
			return srv.Serve(ln)
		}, func(error) {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		})
	}

	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	err := g.Run()
	var sigErr run.SignalError
	switch {
	case err == nil,
		errors.As(err, &sigErr),
		errors.Is(err, context.Canceled),
		errors.Is(err, http.ErrServerClosed):
		d.log.Info().Msg("daemon stopped")
		return nil
	}
	return err
}

// Start runs the sweep loop until ctx is done.
func (d *Daemon) Start(ctx context.Context) error {
	d.runSweep(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.runSweep(ctx)
		}
	}
}

func (d *Daemon) runSweep(ctx context.Context) {
	start := time.Now()
	report, err := d.sweep(ctx)
	if ctx.Err() != nil {
		return
	}
	d.sweepCount.Add(1)

	d.mu.Lock()
	d.lastErr = err
	d.mu.Unlock()

	status := "success"
	if err != nil {
		status = "failure"
		d.log.Error().Err(err).Msg("sweep failed")
	}
	if d.recorder != nil {
		d.recorder.RecordSweep(ctx, status, time.Since(start).Seconds())
		if report != nil {
			d.recorder.RecordResourcesWritten(ctx, int64(report.Totals().Written))
		}
	}
}

// HealthStatus represents daemon health
type HealthStatus struct {
	Status    string `json:"status"`
	Uptime    int64  `json:"uptime_seconds"`
	Sweeps    int64  `json:"sweeps"`
	LastError string `json:"last_error,omitempty"`
}

// Health returns daemon health status. The daemon is degraded while its
// last sweep failed.
func (d *Daemon) Health() HealthStatus {
	h := HealthStatus{
		Status: "healthy",
		Uptime: int64(time.Since(d.startTime).Seconds()),
		Sweeps: d.sweepCount.Load(),
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.lastErr != nil {
		h.Status = "degraded"
		h.LastError = d.lastErr.Error()
	}
	return h
}

// SweepCount returns the number of completed sweeps.
func (d *Daemon) SweepCount() int64 {
	return d.sweepCount.Load()
}

// MetricsPort returns the port the HTTP server listens on, or 0.
func (d *Daemon) MetricsPort() int {
	return int(d.port.Load())
}

// Handler returns the daemon HTTP routes.
func (d *Daemon) Handler() http.Handler {
	mux := http.NewServeMux()
	if d.metrics != nil {
		mux.Handle("/metrics", d.metrics)
	}
	mux.HandleFunc("/health", d.handleHealth)
	mux.HandleFunc("/-/healthy", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/-/ready", func(w http.ResponseWriter, _ *http.Request) {
		if d.SweepCount() == 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (d *Daemon) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(d.Health())
}
