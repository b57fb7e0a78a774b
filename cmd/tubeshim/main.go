package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/tubeshim/api"
	"github.com/use-agent/tubeshim/api/handler"
	"github.com/use-agent/tubeshim/api/middleware"
	"github.com/use-agent/tubeshim/browser"
	"github.com/use-agent/tubeshim/config"
	"github.com/use-agent/tubeshim/intercept"
	"github.com/use-agent/tubeshim/metrics"
	"github.com/use-agent/tubeshim/settings"
	"github.com/use-agent/tubeshim/upstream"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("tubeshim starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"upstream", cfg.Upstream.BaseURL,
		"browser", cfg.Browser.Enabled,
		"hideShorts", cfg.Intercept.HideShorts,
	)

	// ── 3. Settings, metrics and the interceptor ────────────────────
	store := settings.NewStore(cfg.Intercept.HideShorts)
	m := metrics.New()
	ic := intercept.New(store, intercept.WithRecorder(m))

	// ── 4. Upstream transport ───────────────────────────────────────
	base, err := upstream.NewTransport(cfg.Upstream)
	if err != nil {
		slog.Error("failed to build upstream transport", "error", err)
		os.Exit(1)
	}

	target, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil || target.Scheme == "" || target.Host == "" {
		slog.Error("invalid upstream URL", "url", cfg.Upstream.BaseURL, "error", err)
		os.Exit(1)
	}
	proxy := ic.ReverseProxy(target, base)

	// ── 5. Managed browser (optional) ───────────────────────────────
	// Interception is installed before the first navigation.
	var br handler.Browser
	if cfg.Browser.Enabled {
		sess, err := browser.NewSession(cfg.Browser, ic, ic.HijackClient(base))
		if err != nil {
			slog.Error("failed to start browser session", "error", err)
			os.Exit(1)
		}
		defer sess.Close()
		br = sess
	}

	// ── 6. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	rl := middleware.NewRateLimiter(cfg.RateLimit, m)
	defer rl.Close()
	router := api.NewRouter(cfg, store, m, rl, proxy, br, startTime)

	// ── 7. Start HTTP server ────────────────────────────────────────
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

	// ── 8. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// sess.Close() runs via defer: stops the hijack router and kills Chrome.
	slog.Info("tubeshim stopped")
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
