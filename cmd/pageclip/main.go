package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/use-agent/pageclip/adapter"
	"github.com/use-agent/pageclip/api"
	"github.com/use-agent/pageclip/cleaner"
	"github.com/use-agent/pageclip/config"
	"github.com/use-agent/pageclip/delivery"
	"github.com/use-agent/pageclip/metrics"
	"github.com/use-agent/pageclip/orchestrator"
	"github.com/use-agent/pageclip/snapshot"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("pageclip starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"browser", cfg.Browser.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 3. Metrics ──────────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// ── 4. Adapters ─────────────────────────────────────────────────
	registry, err := adapter.Default(adapter.Options{
		Settle:   cfg.Capture.SettleDelay,
		Markdown: cleaner.NewMarkdownConverter(),
	})
	if err != nil {
		slog.Error("failed to build adapter registry", "error", err)
		os.Exit(1)
	}
	overrides := orchestrator.DefaultOverrides(registry)

	// ── 5. Delivery + sessions ──────────────────────────────────────
	settings := config.NewSettingsStore(cfg.Settings)
	deliverer := delivery.NewService(cfg.Delivery, settings, delivery.WithMetrics(m))

	sessions := orchestrator.NewSessions(orchestrator.Config{
		Cooldown:         cfg.Capture.Cooldown,
		AckTimeout:       cfg.Capture.AckTimeout,
		MinContentLength: cfg.Capture.MinContentLength,
	}, orchestrator.Deps{
		Registry:  registry,
		Overrides: overrides,
		Deliverer: deliverer,
		Metrics:   m,
	}, cfg.Capture.SessionTTL, cfg.Capture.MaxSessions)
	go sessions.Run(ctx, time.Minute)

	// ── 6. Snapshot sources (browser is optional) ───────────────────
	sources := &snapshot.Sources{
		Fetcher:               snapshot.NewFetcher(cfg.Snapshot.FetchTimeout, cfg.Browser.Proxy),
		DefaultViewportHeight: cfg.Snapshot.DefaultViewportHeight,
	}
	if cfg.Browser.Enabled {
		browser, err := snapshot.NewBrowser(cfg.Browser, cfg.Snapshot)
		if err != nil {
			slog.Warn("browser unavailable, captures need posted html or render=http", "error", err)
		} else {
			sources.Browser = browser
			defer browser.Close()
		}
	}

	// ── 7. Setup router ─────────────────────────────────────────────
	router := api.NewRouter(ctx, api.Deps{
		Config:    cfg,
		Sessions:  sessions,
		Registry:  registry,
		Overrides: overrides,
		Settings:  settings,
		Snapshots: sources,
		BrowserUp: sources.BrowserUp(),
		Gatherer:  reg,
		StartTime: time.Now(),
	})

	// ── 8. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 9. Graceful shutdown ────────────────────────────────────────
	<-ctx.Done()
	slog.Info("shutdown signal received")

	// In-flight captures wait at most AckTimeout; give them that long.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Capture.AckTimeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// browser.Close() runs via defer and kills Chrome.
	slog.Info("pageclip stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
