package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evercall/voicebridge/internal/config"
	"github.com/evercall/voicebridge/internal/observability"
	"github.com/evercall/voicebridge/internal/provision"
	"github.com/evercall/voicebridge/internal/relay"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not up yet.
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	if err := cfg.ValidateServer(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger.Info().
		Str("port", cfg.Port).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Voicebridge server starting")

	hub := relay.NewHub(logger)
	prov := provision.NewServer(cfg, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/relay", hub.Handler())
	mux.HandleFunc("GET /api/agent/session/{assistantID}", prov.HandleSession)
	mux.HandleFunc("GET /api/agent/calls/{modelID}", prov.HandleCalls)
	mux.HandleFunc("GET /api/recognition/token", prov.HandleRecognitionToken)
	mux.HandleFunc("GET /api/health", observability.HealthCheckHandler(
		cfg.AgentAPIKey != "",
		cfg.RecognitionAPIKey != "",
	))

	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("relay", fmt.Sprintf("ws://localhost:%s/ws/relay", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
