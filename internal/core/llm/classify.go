package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/markdave123-py/Digesta/internal/core"
)

type failureClass int

const (
	classGeneric failureClass = iota
	classOverloaded
	classQuota
	classAuth
	classBlocked
	classTimeout
	classModelNotFound
)

var classKinds = map[failureClass]error{
	classGeneric:       ErrSummaryGenerationFailed,
	classOverloaded:    ErrServiceUnavailable,
	classQuota:         ErrQuotaExceeded,
	classAuth:          ErrAuthConfig,
	classBlocked:       ErrContentBlocked,
	classTimeout:       ErrTimeout,
	classModelNotFound: ErrModelUnavailable,
}

// Message fragments that mark a model level failure. Backends reword these
// between API versions, so status codes are consulted first.
var switchFragments = []string{"404", "not found", "model", "unavailable", "overload", "not supported", "invalid model"}

// classifyStructured maps provider status codes and typed errors. ok is false
// when err carries nothing structured.
func classifyStructured(err error) (failureClass, bool) {
	if errors.Is(err, context.DeadlineExceeded) {
		return classTimeout, true
	}
	var be *core.BackendError
	if !errors.As(err, &be) {
		return classGeneric, false
	}
	if errors.Is(be.Err, errBlocked) {
		return classBlocked, true
	}
	switch be.StatusCode {
	case http.StatusNotFound:
		return classModelNotFound, true
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return classOverloaded, true
	case http.StatusTooManyRequests:
		return classQuota, true
	case http.StatusUnauthorized, http.StatusForbidden:
		return classAuth, true
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return classTimeout, true
	}
	return classGeneric, false
}

// classifyMessage is the substring classifier kept for backends that only
// expose human readable messages.
func classifyMessage(err error) failureClass {
	msg := rootMessage(err)
	switch {
	case containsAny(msg, "503", "overload", "unavailable"):
		return classOverloaded
	case containsAny(msg, "quota", "exceeded"):
		return classQuota
	case containsAny(msg, "api key", "invalid", "auth"):
		return classAuth
	case containsAny(msg, "safety", "content"):
		return classBlocked
	case containsAny(msg, "timeout"):
		return classTimeout
	case containsAny(msg, "model", "not found"):
		return classModelNotFound
	}
	return classGeneric
}

func classify(err error) failureClass {
	if c, ok := classifyStructured(err); ok {
		return c
	}
	return classifyMessage(err)
}

// shouldSwitchModel reports whether err condemns the current model rather than
// the current attempt.
func shouldSwitchModel(err error) bool {
	if c, ok := classifyStructured(err); ok {
		return c == classModelNotFound || c == classOverloaded
	}
	return containsAny(rootMessage(err), switchFragments...)
}

// exhaustedError converts the last failure of a retry budget into its typed error.
func exhaustedError(err error, model string) *SummarizationError {
	return &SummarizationError{Kind: classKinds[classify(err)], Model: model, Cause: err}
}

// rootMessage is the lowercased provider message without our own wrapping.
func rootMessage(err error) string {
	if err == nil {
		return ""
	}
	var be *core.BackendError
	if errors.As(err, &be) && be.Err != nil {
		return strings.ToLower(be.Err.Error())
	}
	return strings.ToLower(err.Error())
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
