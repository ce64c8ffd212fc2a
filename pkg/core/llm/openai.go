package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// OpenAIProvider wraps an eino ChatModel against any OpenAI-compatible endpoint.
type OpenAIProvider struct {
	APIKey  string
	BaseURL string // empty means api.openai.com
	Model   string

	once sync.Once
	cm   *openai.ChatModel
	err  error
}

var _ Provider = (*OpenAIProvider)(nil)

func (p *OpenAIProvider) chatModel(ctx context.Context) (*openai.ChatModel, error) {
	p.once.Do(func() {
		if p.APIKey == "" {
			p.err = fmt.Errorf("OPENAI_API_KEY not configured")
			return
		}
		p.cm, p.err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: p.BaseURL,
			APIKey:  p.APIKey,
			Model:   firstNonEmpty(p.Model, "gpt-4o-mini"),
		})
		if p.err != nil {
			p.err = fmt.Errorf("LLM init failed: %w", p.err)
		}
	})
	return p.cm, p.err
}

func (p *OpenAIProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	cm, err := p.chatModel(ctx)
	if err != nil {
		return "", err
	}

	messages := []*schema.Message{
		{Role: schema.System, Content: systemPrompt},
		{Role: schema.User, Content: prompt},
	}
	opts := []model.Option{
		model.WithTemperature(float32(temperatureOption(options, 0.2))),
		model.WithMaxTokens(maxTokensOption(options)),
	}
	if m := modelOption(options, ""); m != "" {
		opts = append(opts, model.WithModel(m))
	}

	resp, err := cm.Generate(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("openai generation failed: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("openai returned no message")
	}
	return resp.Content, nil
}

func (p *OpenAIProvider) AdaptInstructions(raw string) string {
	return raw
}
