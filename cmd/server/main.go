package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/brunobiangulo/godex"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON or YAML)")
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	cfg := godex.DefaultConfig()
	if *configPath != "" {
		loaded, err := godex.LoadConfig(*configPath)
		if err != nil {
			slog.Error("loading config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	applyEnv(&cfg)

	// Structured JSON logging.
	slog.SetDefault(slog.New(godex.NewLogHandler(cfg, os.Stdout, slog.LevelInfo)))

	apiKey := os.Getenv("GODEX_API_KEY")
	corsOrigins := os.Getenv("GODEX_CORS_ORIGINS")

	engine, err := godex.New(cfg)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	// Middleware chain: recovery -> cors -> auth -> logging -> mux
	var handler http.Handler = routes(newHandler(engine))
	handler = logMiddleware(handler)
	handler = authMiddleware(apiKey, handler)
	handler = corsMiddleware(corsOrigins, handler)
	handler = recoveryMiddleware(handler)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // a full crawl holds the request open
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", *addr, "base_url", cfg.BaseURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}

// applyEnv overrides config fields from GODEX_* environment variables.
func applyEnv(cfg *godex.Config) {
	if v := os.Getenv("GODEX_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("GODEX_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("GODEX_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("GODEX_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("GODEX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Concurrency = n
		}
	}
	if v := os.Getenv("GODEX_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RequestsPerSecond = f
		}
	}
}
