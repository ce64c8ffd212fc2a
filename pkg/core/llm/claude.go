package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ClaudeProvider calls the Anthropic Messages API.
type ClaudeProvider struct {
	APIKey string
	Model  string
}

var _ Provider = (*ClaudeProvider)(nil)

func (p *ClaudeProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	if p.APIKey == "" {
		return "", fmt.Errorf("ANTHROPIC_API_KEY not configured")
	}

	client := anthropic.NewClient(option.WithAPIKey(p.APIKey))

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(modelOption(options, firstNonEmpty(p.Model, "claude-sonnet-4-5"))),
		MaxTokens:   int64(maxTokensOption(options)),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(temperatureOption(options, 0.2)),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemPrompt},
		}
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude api call failed: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("no response generated from Claude API")
	}
	return out.String(), nil
}

func (p *ClaudeProvider) AdaptInstructions(raw string) string {
	return raw
}
