// narrated: HTTP service that narrates records on request
// POST /api/narrate {"recordId": "..."} -> synthesize, store, write back
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-narrate/internal/app"
	"github.com/teslashibe/go-narrate/internal/config"
	"github.com/teslashibe/go-narrate/internal/log"
)

var (
	version    = "1.0.0"
	configPath = flag.String("config", os.Getenv("NARRATE_CONFIG"), "Path to YAML config file")
	port       = flag.Int("port", 0, "HTTP server port (overrides config and PORT)")
	debug      = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *debug {
		cfg.Log.Level = "debug"
	}

	logger := log.Init(log.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer log.Close()

	logger.Info("starting narrated",
		"version", version,
		"environment", cfg.Environment,
		"records", cfg.Records.Backend,
		"storage", cfg.Storage.Backend,
		"synthesis", cfg.Synthesis.Provider)

	ctx := context.Background()
	a, err := app.Build(ctx, cfg, version, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	srv := a.Server(version)
	go func() {
		if err := srv.Listen(cfg.Server.Addr()); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(ctx, config.Millis(cfg.Server.ShutdownTimeoutMS))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", "error", err)
	}
	if err := a.Close(shutdownCtx); err != nil {
		logger.Warn("resource shutdown error", "error", err)
	}
	logger.Info("stopped", "uptime", time.Since(startedAt).Round(time.Second))
}

var startedAt = time.Now()
