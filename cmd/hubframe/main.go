// Command hubframe serves the embeddable widget, receives its out-of-band
// height reports and fronts the content repository with a cache.
//
// Usage:
//
//	hubframe -config hubframe.yaml
//	HUBFRAME_LISTEN=:9000 hubframe -log-level debug
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/hubframe/contentcache"
	"github.com/hazyhaar/hubframe/dbopen"
	"github.com/hazyhaar/hubframe/heightlog"
	"github.com/hazyhaar/hubframe/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to hubframe.yaml (defaults apply when empty)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("hubframe: fatal", "error", err)
		os.Exit(1)
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	origins, err := cfg.Origins()
	if err != nil {
		return err
	}

	db, err := dbopen.Open(cfg.DB, dbopen.WithMkdirAll())
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	reports, err := heightlog.New(heightlog.Config{
		DB:             db,
		ReportPath:     cfg.Reports.Path,
		AllowedOrigins: origins,
		RatePerSecond:  cfg.Reports.RatePerSecond,
		Burst:          cfg.Reports.Burst,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	defer reports.Close()

	var cache *contentcache.Cache
	if cfg.Content.Upstream != "" {
		cache, err = contentcache.New(contentcache.Config{
			DB:       db,
			Upstream: cfg.Content.Upstream,
			TTL:      cfg.Content.TTL,
			StaleTTL: cfg.Content.StaleTTL,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           newRouter(origins, reports, cache, cfg.StaticDir),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("hubframe: listening", "addr", cfg.Listen, "origins", cfg.AllowedOrigins, "cache", cache != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		reports.Close()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return reports.RunRetention(gctx, cfg.Reports.PurgeInterval, cfg.Reports.Retention)
	})
	if cache != nil {
		g.Go(func() error {
			return purgeCache(gctx, logger, cache, cfg.Content.PurgeInterval)
		})
	}

	err = g.Wait()
	logger.Info("hubframe: stopped")
	return err
}

func purgeCache(ctx context.Context, logger *slog.Logger, cache *contentcache.Cache, every time.Duration) error {
	tick := time.NewTicker(every)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			n, err := cache.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("hubframe: cache purge", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("hubframe: cache purged", "entries", n)
			}
		}
	}
}
