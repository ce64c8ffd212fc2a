// Package config assembles the process-wide settings once at startup.
//
// Precedence, lowest to highest: defaults in code, the YAML file, .env, the
// process environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Providers lists every gateway backend that can be selected.
var Providers = []string{"openai", "ollama", "gemini", "deepseek", "qwen", "claude"}

// AgentConfig overrides the provider for a single agent type.
type AgentConfig struct {
	Provider    string `yaml:"provider"`
	Description string `yaml:"description"`
}

type LLMSettings struct {
	ActiveProvider string                 `yaml:"active_provider" validate:"omitempty,oneof=openai ollama gemini deepseek qwen claude"`
	Agents         map[string]AgentConfig `yaml:"agents"`
	RequestsPerMin int                    `yaml:"requests_per_minute" validate:"gte=0"`

	OpenAIAPIKey  string `yaml:"openai_api_key"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	OpenAIModel   string `yaml:"openai_model"`

	OllamaBaseURL        string `yaml:"ollama_base_url" validate:"required,url"`
	OllamaModel          string `yaml:"ollama_model" validate:"required"`
	OllamaEmbeddingModel string `yaml:"ollama_embedding_model"`

	// EmbeddingBackend is "ollama" or "hash". Empty picks ollama only when
	// ollama is also the active provider.
	EmbeddingBackend string `yaml:"embedding_backend" validate:"omitempty,oneof=ollama hash"`

	GeminiAPIKey    string `yaml:"gemini_api_key"`
	GeminiModel     string `yaml:"gemini_model"`
	DeepSeekAPIKey  string `yaml:"deepseek_api_key"`
	QwenAPIKey      string `yaml:"qwen_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	AnthropicModel  string `yaml:"anthropic_model"`
}

type DocumentSettings struct {
	ReportsDir        string `yaml:"reports_dir" validate:"required"`
	TranscriptsDir    string `yaml:"transcripts_dir" validate:"required"`
	ReportChunkSize   int    `yaml:"report_chunk_size" validate:"gt=0"`
	ReportOverlap     int    `yaml:"report_overlap" validate:"gte=0,ltfield=ReportChunkSize"`
	TranscriptChunk   int    `yaml:"transcript_chunk_size" validate:"gt=0"`
	TranscriptOverlap int    `yaml:"transcript_overlap" validate:"gte=0,ltfield=TranscriptChunk"`
	FinancialChunks   int    `yaml:"financial_chunks" validate:"gt=0"`
	QualitativeTopK   int    `yaml:"qualitative_top_k" validate:"gt=0"`
	MaxDocumentBytes  int64  `yaml:"max_document_bytes" validate:"gt=0"`
}

type MarketSettings struct {
	BaseURL  string        `yaml:"base_url" validate:"omitempty,url"`
	Symbol   string        `yaml:"symbol" validate:"required"`
	Timeout  time.Duration `yaml:"timeout"`
	RPS      float64       `yaml:"requests_per_second" validate:"gte=0"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type ServerSettings struct {
	Addr       string `yaml:"addr" validate:"required"`
	PromptsDir string `yaml:"prompts_dir"`
}

// Settings is immutable after Load returns.
type Settings struct {
	LLM       LLMSettings      `yaml:"llm"`
	Documents DocumentSettings `yaml:"documents"`
	Market    MarketSettings   `yaml:"market"`
	Server    ServerSettings   `yaml:"server"`

	// Company is the subject of every forecast, e.g. "Tata Consultancy Services (TCS)".
	Company string `yaml:"company" validate:"required"`

	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`

	LogLevel string `yaml:"log_level" validate:"oneof=trace debug info warn warning error fatal panic"`
	LogFile  string `yaml:"log_file"`
}

// Default returns the settings used when nothing is configured.
func Default() *Settings {
	return &Settings{
		LLM: LLMSettings{
			RequestsPerMin:       60,
			OpenAIModel:          "gpt-4o-mini",
			OllamaBaseURL:        "http://localhost:11434",
			OllamaModel:          "gemma2:9b",
			OllamaEmbeddingModel: "nomic-embed-text",
			GeminiModel:          "gemini-2.0-flash",
		},
		Documents: DocumentSettings{
			ReportsDir:        "data/reports",
			TranscriptsDir:    "data/transcripts",
			ReportChunkSize:   2000,
			ReportOverlap:     200,
			TranscriptChunk:   1000,
			TranscriptOverlap: 150,
			FinancialChunks:   5,
			QualitativeTopK:   4,
			MaxDocumentBytes:  10 << 20,
		},
		Market: MarketSettings{
			Symbol:   "TCS.NS",
			Timeout:  10 * time.Second,
			RPS:      2,
			CacheTTL: 60 * time.Second,
		},
		Server: ServerSettings{
			Addr:       ":8000",
			PromptsDir: "resources",
		},
		Company:  "Tata Consultancy Services (TCS)",
		LogLevel: "info",
	}
}

// Load builds Settings from defaults, an optional YAML file at path, .env and
// the environment, then validates the result.
func Load(path string) (*Settings, error) {
	s := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, s); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	// a missing .env is normal outside development
	_ = godotenv.Load()

	s.applyEnv(os.LookupEnv)

	if s.LLM.ActiveProvider == "" {
		s.LLM.ActiveProvider = s.DefaultProvider()
	}
	if s.LLM.EmbeddingBackend == "" {
		s.LLM.EmbeddingBackend = "hash"
		if s.LLM.ActiveProvider == "ollama" && s.LLM.OllamaEmbeddingModel != "" {
			s.LLM.EmbeddingBackend = "ollama"
		}
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// DefaultProvider picks openai when an OpenAI key is configured, ollama otherwise.
func (s *Settings) DefaultProvider() string {
	if s.LLM.OpenAIAPIKey != "" {
		return "openai"
	}
	return "ollama"
}

var validate = validator.New()

// Validate checks the struct tags of every section.
func (s *Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (s *Settings) applyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}

	str("OPENAI_API_KEY", &s.LLM.OpenAIAPIKey)
	str("OPENAI_BASE_URL", &s.LLM.OpenAIBaseURL)
	str("OPENAI_MODEL", &s.LLM.OpenAIModel)
	str("OLLAMA_BASE_URL", &s.LLM.OllamaBaseURL)
	str("OLLAMA_MODEL", &s.LLM.OllamaModel)
	str("OLLAMA_EMBEDDING_MODEL", &s.LLM.OllamaEmbeddingModel)
	str("GEMINI_API_KEY", &s.LLM.GeminiAPIKey)
	str("DEEPSEEK_API_KEY", &s.LLM.DeepSeekAPIKey)
	str("QWEN_API_KEY", &s.LLM.QwenAPIKey)
	str("DASHSCOPE_API_KEY", &s.LLM.QwenAPIKey)
	str("ANTHROPIC_API_KEY", &s.LLM.AnthropicAPIKey)
	str("LLM_PROVIDER", &s.LLM.ActiveProvider)
	str("EMBEDDING_BACKEND", &s.LLM.EmbeddingBackend)
	num("LLM_REQUESTS_PER_MINUTE", &s.LLM.RequestsPerMin)

	str("COMPANY_NAME", &s.Company)
	str("DATABASE_URL", &s.DatabaseURL)
	str("REDIS_URL", &s.RedisURL)

	str("MARKET_BASE_URL", &s.Market.BaseURL)
	str("MARKET_SYMBOL", &s.Market.Symbol)

	str("REPORTS_DIR", &s.Documents.ReportsDir)
	str("TRANSCRIPTS_DIR", &s.Documents.TranscriptsDir)

	str("HTTP_ADDR", &s.Server.Addr)
	str("PROMPTS_DIR", &s.Server.PromptsDir)

	str("LOG_LEVEL", &s.LogLevel)
	str("LOG_FILE", &s.LogFile)
	s.LogLevel = strings.ToLower(s.LogLevel)
	s.LLM.ActiveProvider = strings.ToLower(s.LLM.ActiveProvider)
	s.LLM.EmbeddingBackend = strings.ToLower(s.LLM.EmbeddingBackend)
}
