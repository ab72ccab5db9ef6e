package llm

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/markdave123-py/Digesta/internal/core"
)

type AnthropicBackend struct {
	client anthropic.Client
}

func NewAnthropicBackend(apiKey string) *AnthropicBackend {
	return &AnthropicBackend{client: anthropic.NewClient(option.WithAPIKey(apiKey))}
}

func (p *AnthropicBackend) Provider() string { return "anthropic" }

func (p *AnthropicBackend) GenerateWithModel(ctx context.Context, model, prompt string) (string, error) {
	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   8192,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(0.3),
	})
	if err != nil {
		be := &core.BackendError{Provider: p.Provider(), Model: model, Err: err}
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			be.StatusCode = apiErr.StatusCode
		}
		return "", be
	}

	content := ""
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	return content, nil
}

var _ core.ModelBackend = (*AnthropicBackend)(nil)
