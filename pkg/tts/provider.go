// Package tts defines the contract for narration synthesis providers.
package tts

import (
	"context"

	"sceneforge/pkg/model"
)

const (
	// MinAudioSize is the minimum size of a plausible synthesis result (1KB).
	// Smaller payloads are treated as failed attempts.
	MinAudioSize = 1024
)

// Request describes one narration synthesis call. PreviousText and NextText
// carry the neighboring scene scripts so the voice flows across scene
// boundaries.
type Request struct {
	Text         string
	PreviousText string
	NextText     string
}

// Result is synthesized audio plus the provider's character-level alignment.
// Alignment may be zero-valued when the provider cannot produce timestamps.
type Result struct {
	Audio     []byte
	MIMEType  string
	Alignment model.Alignment
}

// Provider defines the interface for narration synthesis engines.
type Provider interface {
	Synthesize(ctx context.Context, req Request) (*Result, error)
}

// FatalError represents a synthesis error that retrying will not fix.
// Examples: auth failures (401/403), invalid voice (404), quota exhausted.
type FatalError struct {
	StatusCode int
	Message    string
}

func (e *FatalError) Error() string {
	return e.Message
}

// NewFatalError creates a new FatalError with the given status code and message.
func NewFatalError(statusCode int, message string) *FatalError {
	return &FatalError{StatusCode: statusCode, Message: message}
}

// IsFatalError checks if an error is a synthesis error that should not be retried.
func IsFatalError(err error) bool {
	_, ok := err.(*FatalError)
	return ok
}
