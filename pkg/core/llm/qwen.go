package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const dashScopeDefaultURL = "https://dashscope.aliyuncs.com"

// QwenProvider calls the native DashScope text-generation API.
type QwenProvider struct {
	APIKey  string
	BaseURL string
	Model   string
	Client  *http.Client
}

var _ Provider = (*QwenProvider)(nil)

func (p *QwenProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	if p.APIKey == "" {
		return "", fmt.Errorf("QWEN_API_KEY_MISSING: Please set DASHSCOPE_API_KEY or QWEN_API_KEY")
	}

	base := p.BaseURL
	if base == "" {
		base = dashScopeDefaultURL
	}

	// Native DashScope body; see https://help.aliyun.com/document_detail/2712532.html
	reqBody := map[string]interface{}{
		"model": modelOption(options, firstNonEmpty(p.Model, "qwen-max")),
		"input": map[string]interface{}{
			"messages": []map[string]string{
				{"role": "system", "content": systemPrompt},
				{"role": "user", "content": prompt},
			},
		},
		"parameters": map[string]interface{}{
			"result_format": "message",
			"temperature":   temperatureOption(options, 0.7),
			"max_tokens":    maxTokensOption(options),
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal qwen request: %w", err)
	}

	endpoint := strings.TrimRight(base, "/") + "/api/v1/services/aigc/text-generation/generation"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := httpClient(p.Client).Do(req)
	if err != nil {
		return "", fmt.Errorf("qwen api call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("qwen api returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result struct {
		Output struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
			// some endpoints return text directly in output
			Text string `json:"text"`
		} `json:"output"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode qwen response: %w", err)
	}

	if result.Code != "" {
		return "", fmt.Errorf("qwen api error: %s - %s", result.Code, result.Message)
	}

	if len(result.Output.Choices) > 0 {
		return result.Output.Choices[0].Message.Content, nil
	}
	if result.Output.Text != "" {
		return result.Output.Text, nil
	}

	return "", fmt.Errorf("empty response from qwen api")
}

func (p *QwenProvider) AdaptInstructions(raw string) string {
	return raw
}
