// Command check_models lists the models installed on the Ollama server and
// reports whether the configured one is available, optionally pulling it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"forecast_agent/pkg/core/agent"
	"forecast_agent/pkg/core/config"
	"forecast_agent/pkg/core/llm"
	"forecast_agent/pkg/core/logger"
)

func main() {
	configPath := flag.String("config", "config/models.yaml", "path to the YAML config file")
	pull := flag.Bool("pull", false, "pull the configured model if it is missing")
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

	p, ok := agent.NewManagerFromSettings(settings).GetProviderByName("ollama").(*llm.OllamaProvider)
	if !ok {
		fmt.Fprintln(os.Stderr, "[FATAL] ollama provider is not registered")
		os.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	models, err := p.ListModels(ctx)
	cancel()
	if err != nil {
		fmt.Printf("Cannot reach Ollama at %s: %v\n", settings.LLM.OllamaBaseURL, err)
		fmt.Println("Start it with: ollama serve")
		os.Exit(1)
	}

	fmt.Printf("Installed models (%d):\n", len(models))
	for _, m := range models {
		fmt.Printf("  - %-30s %6.1f GB\n", m.Name, float64(m.Size)/(1<<30))
	}

	wanted := []string{settings.LLM.OllamaModel}
	if settings.LLM.EmbeddingBackend == "ollama" && settings.LLM.OllamaEmbeddingModel != "" {
		wanted = append(wanted, settings.LLM.OllamaEmbeddingModel)
	}

	missing := 0
	for _, name := range wanted {
		if hasModel(models, name) {
			fmt.Printf("[OK] %s is available\n", name)
			continue
		}
		fmt.Printf("[MISSING] %s is not installed\n", name)
		if !*pull {
			fmt.Printf("  Install it with: ollama pull %s (or rerun with -pull)\n", name)
			missing++
			continue
		}
		fmt.Printf("Pulling %s...\n", name)
		err := p.PullModel(context.Background(), name, func(status string) {
			fmt.Printf("  %s\n", status)
		})
		if err != nil {
			fmt.Printf("[ERROR] pull failed: %v\n", err)
			missing++
		}
	}
	if missing > 0 {
		os.Exit(1)
	}
}

// hasModel matches "gemma2:9b" exactly, and "gemma2" against "gemma2:latest".
func hasModel(models []llm.OllamaModel, name string) bool {
	for _, m := range models {
		if m.Name == name {
			return true
		}
		if !strings.Contains(name, ":") && m.Name == name+":latest" {
			return true
		}
	}
	return false
}
