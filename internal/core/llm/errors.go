package llm

import (
	"errors"
	"fmt"

	"github.com/markdave123-py/Digesta/internal/core"
)

// Summarization error kinds.
var (
	ErrModelUnavailable        = errors.New("ai model unavailable")
	ErrAllModelsUnavailable    = errors.New("all ai models unavailable")
	ErrQuotaExceeded           = errors.New("ai quota exceeded")
	ErrAuthConfig              = errors.New("ai authentication or configuration error")
	ErrContentBlocked          = errors.New("content blocked by safety filters")
	ErrTimeout                 = errors.New("ai request timed out")
	ErrServiceUnavailable      = errors.New("ai service unavailable")
	ErrSummaryGenerationFailed = errors.New("summary generation failed")
	ErrEmptyInput              = errors.New("no text content to summarize")

	errEmptyResponse = errors.New("empty summary returned")
	errBlocked       = errors.New("response blocked by safety settings")
)

type remediation struct {
	message string
	retry   bool
}

var remediations = map[error]remediation{
	ErrModelUnavailable:        {"The AI model is not available in your region or API version. Please try again later.", true},
	ErrAllModelsUnavailable:    {"All AI models are currently unavailable. This is usually temporary, please try again in 5-10 minutes.", true},
	ErrQuotaExceeded:           {"API quota exceeded. You may have reached your free tier limits. Please try again tomorrow or check your Google Cloud Console.", false},
	ErrAuthConfig:              {"Invalid API configuration. Please check the configured AI API key.", false},
	ErrContentBlocked:          {"Content was blocked for safety reasons. Please try a different document.", false},
	ErrTimeout:                 {"AI service is responding slowly. Please try again in a moment.", true},
	ErrServiceUnavailable:      {"AI service is temporarily overloaded or unavailable. Please wait 1-2 minutes and try again.", true},
	ErrSummaryGenerationFailed: {"Summary generation failed. Please try again.", true},
	ErrEmptyInput:              {"No text content to summarize.", false},
}

// SummarizationError is a typed summarization failure. It unwraps to both its
// kind and its cause.
type SummarizationError struct {
	Kind  error
	Model string
	Cause error
}

var _ core.Remediable = (*SummarizationError)(nil)

func (e *SummarizationError) Error() string {
	msg := e.Kind.Error()
	if e.Model != "" {
		msg = fmt.Sprintf("%s (last model %s)", msg, e.Model)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *SummarizationError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func (e *SummarizationError) Remediation() string {
	if r, ok := remediations[e.Kind]; ok {
		return r.message
	}
	return remediations[ErrSummaryGenerationFailed].message
}

func (e *SummarizationError) RetrySuggested() bool {
	if r, ok := remediations[e.Kind]; ok {
		return r.retry
	}
	return true
}

// FallbackEligible reports whether err means the AI backend as a whole is
// exhausted, so callers should serve an extractive summary instead.
func FallbackEligible(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrAllModelsUnavailable) ||
		errors.Is(err, ErrQuotaExceeded)
}
