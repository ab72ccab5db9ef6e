package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/markdave123-py/Digesta/internal/core"
)

type GeminiBackend struct {
	client *genai.Client
}

func NewGeminiBackend(ctx context.Context, apiKey string) (*GeminiBackend, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GeminiBackend{client: cl}, nil
}

func (g *GeminiBackend) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiBackend) Provider() string { return "gemini" }

func (g *GeminiBackend) GenerateWithModel(ctx context.Context, model, prompt string) (string, error) {
	m := g.client.GenerativeModel(model)
	m.SetTemperature(0.3)
	m.SetTopK(40)
	m.SetTopP(0.95)
	m.SetMaxOutputTokens(8192)
	m.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockMediumAndAbove},
	}

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", geminiError(model, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

func geminiError(model string, err error) error {
	be := &core.BackendError{Provider: "gemini", Model: model, Err: err}

	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		be.Err = fmt.Errorf("%w: %v", errBlocked, err)
		return be
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		be.StatusCode = gerr.Code
		return be
	}
	if ae, ok := apierror.FromError(err); ok && ae.HTTPCode() > 0 {
		be.StatusCode = ae.HTTPCode()
		return be
	}
	if s, ok := status.FromError(err); ok {
		be.StatusCode = grpcHTTPStatus(s.Code())
	}
	return be
}

func grpcHTTPStatus(c codes.Code) int {
	switch c {
	case codes.NotFound:
		return http.StatusNotFound
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.InvalidArgument:
		return http.StatusBadRequest
	}
	return 0
}

var _ core.ModelBackend = (*GeminiBackend)(nil)
