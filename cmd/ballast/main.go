// Command ballast loads the engine configuration, assembles the reliability
// engine, and serves Prometheus metrics until interrupted.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ballast-systems/ballast/internal/config"
	"github.com/ballast-systems/ballast/internal/engine"
)

func main() {
	configPath := flag.String("config", "ballast.yaml", "Path to configuration file")
	validateOnly := flag.Bool("validate", false, "Validate the configuration and exit")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *debug || cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	}))
	slog.SetDefault(logger)

	if *validateOnly {
		logger.Info("configuration valid", "path", *configPath)
		return
	}

	eng, err := engine.New(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize engine", "error", err)
		os.Exit(1)
	}
	defer eng.Close()

	port := cfg.Server.MetricsPort
	if port == 0 {
		port = 9090
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics endpoint listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig.String())
	_ = srv.Close()
}
