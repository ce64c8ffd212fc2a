package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	s := Default()
	s.LLM.ActiveProvider = s.DefaultProvider()
	require.NoError(t, s.Validate())
	assert.Equal(t, "ollama", s.LLM.ActiveProvider)
	assert.Equal(t, 2000, s.Documents.ReportChunkSize)
	assert.Equal(t, 200, s.Documents.ReportOverlap)
	assert.Equal(t, 5, s.Documents.FinancialChunks)
	assert.Equal(t, 4, s.Documents.QualitativeTopK)
	assert.Equal(t, "TCS.NS", s.Market.Symbol)
	assert.Equal(t, 10*time.Second, s.Market.Timeout)
}

func TestDefaultProvider(t *testing.T) {
	s := Default()
	assert.Equal(t, "ollama", s.DefaultProvider())

	s.applyEnv(lookupFrom(map[string]string{"OPENAI_API_KEY": "sk-test"}))
	assert.Equal(t, "openai", s.DefaultProvider())
}

func TestApplyEnv(t *testing.T) {
	s := Default()
	s.applyEnv(lookupFrom(map[string]string{
		"OLLAMA_BASE_URL": "http://gpu-box:11434",
		"OLLAMA_MODEL":    "llama3.1:latest",
		"LLM_PROVIDER":    " DeepSeek ",
		"MARKET_SYMBOL":   "INFY.NS",
		"REPORTS_DIR":     "/srv/reports",
		"LOG_LEVEL":       "DEBUG",
		"HTTP_ADDR":       "",
	}))

	assert.Equal(t, "http://gpu-box:11434", s.LLM.OllamaBaseURL)
	assert.Equal(t, "llama3.1:latest", s.LLM.OllamaModel)
	assert.Equal(t, "deepseek", s.LLM.ActiveProvider)
	assert.Equal(t, "INFY.NS", s.Market.Symbol)
	assert.Equal(t, "/srv/reports", s.Documents.ReportsDir)
	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, ":8000", s.Server.Addr, "blank env values keep the default")
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models.yaml")
	content := `
llm:
  active_provider: gemini
  agents:
    qualitative_analysis:
      provider: ollama
documents:
  financial_chunks: 3
market:
  symbol: WIPRO.NS
  timeout: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("MARKET_SYMBOL", "")
	t.Setenv("EMBEDDING_BACKEND", "")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gemini", s.LLM.ActiveProvider)
	assert.Equal(t, "ollama", s.LLM.Agents["qualitative_analysis"].Provider)
	assert.Equal(t, 3, s.Documents.FinancialChunks)
	assert.Equal(t, 2000, s.Documents.ReportChunkSize, "unset keys keep defaults")
	assert.Equal(t, "WIPRO.NS", s.Market.Symbol)
	assert.Equal(t, 5*time.Second, s.Market.Timeout)
	assert.Equal(t, "hash", s.LLM.EmbeddingBackend, "ollama embeddings only when ollama is active")
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "")
	s, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.NotEmpty(t, s.LLM.ActiveProvider)
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"unknown provider", func(s *Settings) { s.LLM.ActiveProvider = "kimi" }},
		{"overlap not below chunk", func(s *Settings) { s.Documents.ReportOverlap = 2000 }},
		{"zero top k", func(s *Settings) { s.Documents.QualitativeTopK = 0 }},
		{"bad log level", func(s *Settings) { s.LogLevel = "verbose" }},
		{"bad ollama url", func(s *Settings) { s.LLM.OllamaBaseURL = "not a url" }},
		{"unknown embedding backend", func(s *Settings) { s.LLM.EmbeddingBackend = "openai" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Default()
			tc.mutate(s)
			assert.Error(t, s.Validate())
		})
	}
}
