// Command forecast runs a single forecast from the command line and prints
// the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"forecast_agent/pkg/core/app"
	"forecast_agent/pkg/core/config"
	"forecast_agent/pkg/core/logger"
	"forecast_agent/pkg/models"
)

const defaultTask = "Analyze the financial reports and transcripts for the last three quarters and provide a qualitative forecast for the upcoming quarter."

func main() {
	configPath := flag.String("config", "config/models.yaml", "path to the YAML config file")
	provider := flag.String("provider", "", "override the active LLM provider")
	full := flag.Bool("full", false, "print the whole run record instead of just the forecast")
	flag.Parse()

	task := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if task == "" {
		task = defaultTask
	}

	settings, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(settings.LogLevel, settings.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] failed to initialise logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	a, err := app.New(ctx, settings)
	if err != nil {
		logger.Log.Fatalf("startup failed: %v", err)
	}
	defer a.Close()

	if *provider != "" {
		if err := a.Manager.SetGlobalProvider(*provider); err != nil {
			logger.Log.Fatalf("%v (available: %v)", err, a.Manager.Available())
		}
	}

	run := a.Orchestrator.Generate(ctx, task)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	var out any = run.Forecast
	if *full {
		out = run
	}
	if err := enc.Encode(out); err != nil {
		logger.Log.Errorf("failed to write output: %v", err)
	}

	fmt.Fprintf(os.Stderr, "status=%s tools=%v time=%.2fs log_id=%d\n",
		run.Status, run.ToolsUsed, run.ExecutionTimeSeconds, run.ID)
	if run.ErrorMessage != "" {
		fmt.Fprintf(os.Stderr, "errors:\n%s\n", run.ErrorMessage)
	}
	if run.Status == models.StatusError {
		a.Close()
		os.Exit(1)
	}
}
