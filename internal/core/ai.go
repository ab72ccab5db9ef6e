package core

import (
	"context"
	"fmt"
)

// ModelBackend generates text with a named model of one AI provider.
type ModelBackend interface {
	Provider() string
	GenerateWithModel(ctx context.Context, model, prompt string) (string, error)
}

// BackendError is a generation failure annotated with whatever structured
// status the provider exposed. StatusCode is an HTTP style code, 0 when unknown.
type BackendError struct {
	Provider   string
	Model      string
	StatusCode int
	Err        error
}

func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s generate (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s generate: %v", e.Provider, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }
