package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"forecast_agent/pkg/core/config"
	"forecast_agent/pkg/core/llm"
	"forecast_agent/pkg/core/logger"

	"golang.org/x/time/rate"
)

// Config mirrors the llm section of config/models.yaml.
type Config struct {
	ActiveProvider string
	Agents         map[string]config.AgentConfig
	RequestsPerMin int
}

// Manager owns the provider registry and routes each call to the active
// provider, or to a per-agent override. It implements llm.Gateway.
type Manager struct {
	mu        sync.RWMutex
	config    Config
	providers map[string]llm.Provider
	limiter   *rate.Limiter
}

var _ llm.Gateway = (*Manager)(nil)

// NewManager builds a manager over an explicit provider set.
func NewManager(cfg Config, providers map[string]llm.Provider) *Manager {
	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerMin > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMin) / 60.0)
		burst = max(1, cfg.RequestsPerMin/60)
	}
	return &Manager{
		config:    cfg,
		providers: providers,
		limiter:   rate.NewLimiter(limit, burst),
	}
}

// NewManagerFromSettings registers every supported backend from the loaded settings.
func NewManagerFromSettings(s *config.Settings) *Manager {
	l := s.LLM
	return NewManager(Config{
		ActiveProvider: l.ActiveProvider,
		Agents:         l.Agents,
		RequestsPerMin: l.RequestsPerMin,
	}, map[string]llm.Provider{
		"openai":   &llm.OpenAIProvider{APIKey: l.OpenAIAPIKey, BaseURL: l.OpenAIBaseURL, Model: l.OpenAIModel},
		"ollama":   &llm.OllamaProvider{BaseURL: l.OllamaBaseURL, Model: l.OllamaModel, EmbeddingModel: l.OllamaEmbeddingModel},
		"gemini":   &llm.GeminiProvider{APIKey: l.GeminiAPIKey, Model: l.GeminiModel},
		"deepseek": &llm.DeepSeekProvider{APIKey: l.DeepSeekAPIKey},
		"qwen":     &llm.QwenProvider{APIKey: l.QwenAPIKey},
		"claude":   &llm.ClaudeProvider{APIKey: l.AnthropicAPIKey, Model: l.AnthropicModel},
	})
}

// resolve returns the provider name and instance for agentType.
func (m *Manager) resolve(agentType string) (string, llm.Provider) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// 1. agent-specific override
	if agentConfig, ok := m.config.Agents[agentType]; ok && agentConfig.Provider != "" {
		if p, ok := m.providers[agentConfig.Provider]; ok {
			return agentConfig.Provider, p
		}
	}

	// 2. global active provider
	if p, ok := m.providers[m.config.ActiveProvider]; ok {
		return m.config.ActiveProvider, p
	}

	// 3. fallback
	return "ollama", m.providers["ollama"]
}

// GetProviderByName retrieves a provider instance by its specific name (e.g. "deepseek", "ollama").
func (m *Manager) GetProviderByName(name string) llm.Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[name]
	if !ok {
		logger.Log.Debugf("provider %q not registered", name)
		return nil
	}
	return p
}

// ExecutePrompt handles instruction adaptation before sending to the model.
func (m *Manager) ExecutePrompt(ctx context.Context, agentType string, rawPrompt string, rawSystemPrompt string, options map[string]interface{}) (string, error) {
	name, provider := m.resolve(agentType)
	if provider == nil {
		return "", fmt.Errorf("no provider available for agent %q", agentType)
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	logger.Log.WithField("provider", name).WithField("agent", agentType).Debug("executing prompt")
	adaptedSystemPrompt := provider.AdaptInstructions(rawSystemPrompt)
	return provider.GenerateResponse(ctx, rawPrompt, adaptedSystemPrompt, options)
}

// Complete sends a single prompt through the active provider.
func (m *Manager) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	return m.ExecutePrompt(ctx, "", prompt, "", map[string]interface{}{llm.OptTemperature: temperature})
}

// ProviderName reports the globally active provider.
func (m *Manager) ProviderName() string {
	name, _ := m.resolve("")
	return name
}

// For returns a gateway bound to agentType, honouring its provider override.
func (m *Manager) For(agentType string) llm.Gateway {
	return &agentGateway{m: m, agentType: agentType}
}

func (m *Manager) SetGlobalProvider(newProvider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[newProvider]; !ok {
		return fmt.Errorf("provider %s not found", newProvider)
	}
	m.config.ActiveProvider = newProvider
	logger.Log.Infof("global provider set to: %s", newProvider)
	return nil
}

func (m *Manager) GetActiveProvider() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.ActiveProvider
}

// Available lists registered provider names in sorted order.
func (m *Manager) Available() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.providers))
	for k := range m.providers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

type agentGateway struct {
	m         *Manager
	agentType string
}

func (g *agentGateway) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	return g.m.ExecutePrompt(ctx, g.agentType, prompt, "", map[string]interface{}{llm.OptTemperature: temperature})
}

func (g *agentGateway) ProviderName() string {
	name, _ := g.m.resolve(g.agentType)
	return name
}
