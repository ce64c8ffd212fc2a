// Package app wires the forecast pipeline from loaded settings. Both the API
// server and the one-shot CLI start here.
package app

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"forecast_agent/pkg/core/agent"
	"forecast_agent/pkg/core/config"
	"forecast_agent/pkg/core/document"
	"forecast_agent/pkg/core/forecast"
	"forecast_agent/pkg/core/llm"
	"forecast_agent/pkg/core/logger"
	"forecast_agent/pkg/core/market"
	"forecast_agent/pkg/core/prompt"
	"forecast_agent/pkg/core/retrieval"
	"forecast_agent/pkg/core/store"
	"forecast_agent/pkg/core/tools"
)

// Agent types that can carry their own provider override in the YAML config.
const (
	AgentSynthesis   = "forecast_synthesis"
	AgentFinancial   = tools.NameFinancial
	AgentQualitative = tools.NameQualitative
)

// App holds the long-lived collaborators of one process.
type App struct {
	Settings     *config.Settings
	Manager      *agent.Manager
	Orchestrator *forecast.Orchestrator
	Runs         store.RunStore
	Database     string // "postgres" or "memory"
	Retriever    *retrieval.Retriever

	closers []func()
}

// New builds the pipeline. Optional backends (Postgres, Redis, the prompt
// directory) degrade with a warning instead of failing startup.
func New(ctx context.Context, s *config.Settings) (*App, error) {
	a := &App{Settings: s}

	loadPrompts(s.Server.PromptsDir)

	a.Manager = agent.NewManagerFromSettings(s)
	logger.Log.Infof("LLM provider: %s (available: %v)", a.Manager.GetActiveProvider(), a.Manager.Available())

	a.Runs, a.Database = a.openStore(ctx)

	reportLoader := document.NewLoader(s.Documents.ReportChunkSize, s.Documents.ReportOverlap, s.Documents.MaxDocumentBytes)
	transcriptLoader := document.NewLoader(s.Documents.TranscriptChunk, s.Documents.TranscriptOverlap, s.Documents.MaxDocumentBytes)

	a.Retriever = retrieval.NewRetriever(
		a.embedder(),
		retrieval.DirectoryLoader(transcriptLoader, s.Documents.TranscriptsDir, ".txt", ".pdf"),
	)

	fin := tools.NewFinancialExtractor(a.Manager.For(AgentFinancial), reportLoader, s.Documents.FinancialChunks)
	qual := tools.NewQualitativeAnalyzer(a.Manager.For(AgentQualitative), a.Retriever, s.Documents.QualitativeTopK)
	mkt := tools.NewMarketData(a.marketClient(ctx))

	a.Orchestrator = forecast.New(a.Manager.For(AgentSynthesis), fin, qual, mkt, a.Runs, forecast.Options{
		Company:     s.Company,
		ReportsPath: s.Documents.ReportsDir,
		Symbol:      s.Market.Symbol,
	})
	return a, nil
}

// Close releases pools and connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func loadPrompts(dir string) {
	if dir == "" {
		return
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		exePath, _ := os.Executable()
		dir = filepath.Join(filepath.Dir(exePath), dir)
	}
	if err := prompt.LoadFromDirectory(dir); err != nil {
		logger.Log.Warnf("prompt library not loaded (%v), using built-in prompts", err)
		return
	}
	logger.Log.Infof("loaded %d prompts from %s", prompt.Get().Count(), dir)
}

func (a *App) openStore(ctx context.Context) (store.RunStore, string) {
	if a.Settings.DatabaseURL == "" {
		logger.Log.Info("no database configured, keeping run history in memory")
		return store.NewMemoryStore(), "memory"
	}
	if err := store.InitDB(ctx, a.Settings.DatabaseURL); err != nil {
		logger.Log.Warnf("database unavailable (%v), keeping run history in memory", err)
		return store.NewMemoryStore(), "memory"
	}
	a.closers = append(a.closers, store.Close)
	if err := store.Migrate(ctx); err != nil {
		logger.Log.Warnf("migration failed (%v), keeping run history in memory", err)
		return store.NewMemoryStore(), "memory"
	}
	logger.Log.Info("database connected")
	return store.NewForecastRepo(), "postgres"
}

func (a *App) embedder() retrieval.Embedder {
	l := a.Settings.LLM
	if l.EmbeddingBackend == "ollama" {
		if p, ok := a.Manager.GetProviderByName("ollama").(*llm.OllamaProvider); ok {
			logger.Log.Infof("embeddings via ollama model %s", l.OllamaEmbeddingModel)
			return p
		}
	}
	logger.Log.Info("embeddings via local feature hashing")
	return retrieval.NewHashEmbedder(512)
}

// marketClient returns nil when no quote endpoint is configured, which makes
// the market tool fail softly on every run.
func (a *App) marketClient(ctx context.Context) tools.Quoter {
	m := a.Settings.Market
	if m.BaseURL == "" {
		logger.Log.Info("no market data endpoint configured")
		return nil
	}

	opts := []market.ClientOption{market.WithRateLimit(m.RPS)}
	if m.Timeout > 0 {
		opts = append(opts, market.WithHTTPClient(&http.Client{Timeout: m.Timeout}))
	}
	if a.Settings.RedisURL != "" {
		cache, err := market.NewRedisCache(ctx, a.Settings.RedisURL)
		if err != nil {
			logger.Log.Warnf("redis unavailable (%v), market quotes are not cached", err)
		} else {
			a.closers = append(a.closers, func() { cache.Close() })
			opts = append(opts, market.WithCache(cache, m.CacheTTL))
		}
	}
	return market.NewClient(m.BaseURL, opts...)
}
