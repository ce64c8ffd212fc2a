package config

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"forecast_agent/pkg/core/agent"
	"forecast_agent/pkg/core/llm"
	"forecast_agent/pkg/core/prompt"
)

type nopProvider struct{}

func (nopProvider) GenerateResponse(context.Context, string, string, map[string]interface{}) (string, error) {
	return "", nil
}

func (nopProvider) AdaptInstructions(s string) string { return s }

func newHandler() *Handler {
	mgr := agent.NewManager(agent.Config{ActiveProvider: "ollama"}, map[string]llm.Provider{
		"ollama": nopProvider{},
		"openai": nopProvider{},
	})
	return NewHandler(mgr)
}

func TestHandleConfig(t *testing.T) {
	rec := httptest.NewRecorder()
	newHandler().HandleConfig(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))

	var resp Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ActiveProvider != "ollama" {
		t.Errorf("expected ollama, got %s", resp.ActiveProvider)
	}
	if len(resp.Available) != 2 || resp.Available[0] != "ollama" || resp.Available[1] != "openai" {
		t.Errorf("unexpected providers %v", resp.Available)
	}

	want := []string{prompt.IDFinancialExtraction, prompt.IDSynthesis, prompt.IDQualitativeAnalysis}
	if strings.Join(resp.Prompts, ",") != strings.Join(want, ",") {
		t.Errorf("expected built-in prompts %v, got %v", want, resp.Prompts)
	}
}

func TestHandleSwitch(t *testing.T) {
	h := newHandler()

	rec := httptest.NewRecorder()
	h.HandleSwitch(rec, httptest.NewRequest(http.MethodPost, "/api/config/switch", strings.NewReader(`{"provider":"openai"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := h.AgentMgr.GetActiveProvider(); got != "openai" {
		t.Errorf("expected openai active, got %s", got)
	}

	tests := []struct {
		name   string
		method string
		body   string
		code   int
	}{
		{"unknown provider", http.MethodPost, `{"provider":"kimi"}`, http.StatusBadRequest},
		{"bad body", http.MethodPost, `{`, http.StatusBadRequest},
		{"wrong method", http.MethodGet, ``, http.StatusMethodNotAllowed},
		{"preflight", http.MethodOptions, ``, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.HandleSwitch(rec, httptest.NewRequest(tt.method, "/api/config/switch", strings.NewReader(tt.body)))
			if rec.Code != tt.code {
				t.Errorf("expected %d, got %d", tt.code, rec.Code)
			}
		})
	}
	if got := h.AgentMgr.GetActiveProvider(); got != "openai" {
		t.Errorf("failed switches must not change the provider, got %s", got)
	}
}
