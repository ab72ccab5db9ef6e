package llm

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"github.com/markdave123-py/Digesta/internal/core"
)

type OpenAIBackend struct {
	client *openai.Client
}

func NewOpenAIBackend(apiKey string) *OpenAIBackend {
	return &OpenAIBackend{client: openai.NewClient(apiKey)}
}

func (p *OpenAIBackend) Provider() string { return "openai" }

func (p *OpenAIBackend) GenerateWithModel(ctx context.Context, model, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		Temperature: 0.3,
		TopP:        0.95,
		MaxTokens:   8192,
	})
	if err != nil {
		return "", openAIError(model, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	if resp.Choices[0].FinishReason == openai.FinishReasonContentFilter {
		return "", &core.BackendError{Provider: p.Provider(), Model: model, Err: errBlocked}
	}
	return resp.Choices[0].Message.Content, nil
}

func openAIError(model string, err error) error {
	be := &core.BackendError{Provider: "openai", Model: model, Err: err}
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		be.StatusCode = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		be.StatusCode = reqErr.HTTPStatusCode
	}
	return be
}

var _ core.ModelBackend = (*OpenAIBackend)(nil)
