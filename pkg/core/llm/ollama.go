package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OllamaProvider talks to a local or tunnelled Ollama server.
// Besides generation it exposes the model listing and embeddings endpoints.
type OllamaProvider struct {
	BaseURL        string // e.g. http://localhost:11434
	Model          string // e.g. gemma2:9b
	EmbeddingModel string // defaults to Model
	Client         *http.Client
}

var _ Provider = (*OllamaProvider)(nil)

type ollamaGenerateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	System  string                 `json:"system,omitempty"`
	Stream  bool                   `json:"stream"`
	Format  string                 `json:"format,omitempty"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// OllamaModel is one entry of /api/tags.
type OllamaModel struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	ModifiedAt string `json:"modified_at"`
}

func (p *OllamaProvider) baseURL() string {
	return strings.TrimRight(firstNonEmpty(p.BaseURL, "http://localhost:11434"), "/")
}

func (p *OllamaProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	model := modelOption(options, p.Model)
	if model == "" {
		return "", fmt.Errorf("model is required")
	}

	req := ollamaGenerateRequest{
		Model:  model,
		Prompt: prompt,
		System: systemPrompt,
		Stream: false,
		Options: map[string]interface{}{
			"temperature": temperatureOption(options, 0),
			"num_predict": maxTokensOption(options),
		},
	}

	var out ollamaGenerateResponse
	if err := p.post(ctx, "/api/generate", req, &out); err != nil {
		return "", err
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama error: %s", out.Error)
	}
	return out.Response, nil
}

func (p *OllamaProvider) AdaptInstructions(raw string) string {
	return raw
}

// Embed returns the embedding vector of text from /api/embeddings.
func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	model := firstNonEmpty(p.EmbeddingModel, p.Model)
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	var out struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := p.post(ctx, "/api/embeddings", map[string]string{"model": model, "prompt": text}, &out); err != nil {
		return nil, err
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned an empty embedding")
	}
	return out.Embedding, nil
}

// ListModels returns the models installed on the server.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]OllamaModel, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL()+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	resp, err := httpClient(p.Client).Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tags struct {
		Models []OllamaModel `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags response: %w", err)
	}
	return tags.Models, nil
}

// PullModel asks the server to download name, calling progress with each status line.
func (p *OllamaProvider) PullModel(ctx context.Context, name string, progress func(status string)) error {
	data, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return fmt.Errorf("failed to marshal pull request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL()+"/api/pull", bytes.NewBuffer(data))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := httpClient(p.Client).Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			var chunk struct {
				Status string `json:"status"`
				Error  string `json:"error"`
			}
			if json.Unmarshal(line, &chunk) == nil {
				if chunk.Error != "" {
					return fmt.Errorf("pull failed: %s", chunk.Error)
				}
				if progress != nil && chunk.Status != "" {
					progress(chunk.Status)
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("failed to read pull stream: %w", err)
		}
	}
}

func (p *OllamaProvider) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL()+path, bytes.NewBuffer(data))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := httpClient(p.Client).Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
