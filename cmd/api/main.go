package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	configapi "forecast_agent/pkg/api/config"
	forecastapi "forecast_agent/pkg/api/forecast"
	"forecast_agent/pkg/core/app"
	"forecast_agent/pkg/core/config"
	"forecast_agent/pkg/core/logger"
)

func main() {
	configPath := flag.String("config", "config/models.yaml", "path to the YAML config file")
	flag.Parse()

	settings, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(settings.LogLevel, settings.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] failed to initialise logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, settings)
	if err != nil {
		logger.Log.Fatalf("startup failed: %v", err)
	}
	defer a.Close()

	mux := http.NewServeMux()
	configapi.NewHandler(a.Manager).Register(mux)
	forecastapi.NewHandler(a.Orchestrator, a.Runs, a.Manager.GetActiveProvider, a.Database).Register(mux)

	srv := &http.Server{
		Addr:              settings.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Log.Errorf("shutdown: %v", err)
		}
	}()

	logger.Log.Infof("API server starting on %s", settings.Server.Addr)
	logger.Log.Info("  - POST /forecast")
	logger.Log.Info("  - GET  /logs?limit=N")
	logger.Log.Info("  - GET  /health")
	logger.Log.Info("  - GET  /api/config")
	logger.Log.Info("  - POST /api/config/switch")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log.Errorf("server failed: %v", err)
		a.Close()
		os.Exit(1)
	}
	logger.Log.Info("server stopped")
}
