package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"timeledger/internal/app"
	"timeledger/internal/config"
)

func main() {
	// Flags
	once := flag.Bool("once", false, "Run a single consistency sweep and exit")
	interval := flag.Duration("interval", time.Hour, "Sweep interval when not running once")
	daily := flag.Bool("daily", false, "Sweep at local midnight each day (uses SWEEP_TZ, default UTC)")
	tenants := flag.String("tenants", "", "Comma separated tenant ids (overrides SWEEP_TENANTS)")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	flag.Parse()

	// Logger
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *tenants != "" {
		cfg.Sweep.Tenants = strings.Split(*tenants, ",")
	}

	// Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// App
	application, err := app.New(ctx, logger, cfg)
	if err != nil {
		logger.Error("failed to initialize app", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer application.Close()

	if *once {
		if err := sweep(ctx, application, logger); err != nil {
			application.Close()
			os.Exit(1)
		}
		return
	}

	if cfg.HTTP.Addr != "" {
		srv := application.HTTPServer(cfg.HTTP.Addr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server failed", slog.String("error", err.Error()))
				stop()
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// Daily-at-midnight mode
	if *daily {
		loc, err := time.LoadLocation(cfg.Sweep.Timezone)
		if err != nil {
			logger.Error("invalid SWEEP_TZ", slog.String("tz", cfg.Sweep.Timezone), slog.String("error", err.Error()))
			return
		}
		logger.Info("starting daily sweep at midnight", slog.String("tz", cfg.Sweep.Timezone))
		for {
			next := nextMidnight(time.Now().In(loc))
			dur := time.Until(next)
			logger.Info("sleeping until next midnight", slog.Time("next", next), slog.Duration("sleep", dur))
			select {
			case <-ctx.Done():
				logger.Info("shutting down")
				return
			case <-time.After(dur):
				_ = sweep(ctx, application, logger)
			}
		}
	}

	// Periodic mode
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	logger.Info("starting periodic sweep", slog.Duration("interval", *interval))
	// Kick off immediately
	_ = sweep(ctx, application, logger)
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case <-ticker.C:
			_ = sweep(ctx, application, logger)
		}
	}
}

func sweep(ctx context.Context, application *app.App, logger *slog.Logger) error {
	reports, err := application.RunOnce(ctx)
	if err != nil {
		logger.Error("sweep failed", slog.String("error", err.Error()))
		return err
	}
	drift := 0
	for _, r := range reports {
		if !r.Hierarchy.IsValid || len(r.OverBudget) > 0 {
			drift++
		}
	}
	logger.Info("sweep completed", slog.Int("tenants", len(reports)), slog.Int("withFindings", drift))
	return nil
}

// nextMidnight returns the next midnight after t in t's location.
func nextMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	if t.Before(midnight) {
		return midnight
	}
	return midnight.AddDate(0, 0, 1)
}
