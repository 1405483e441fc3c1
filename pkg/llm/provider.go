// Package llm defines the contract for script stream providers: services that
// turn a prompt into an ordered stream of text fragments.
package llm

import (
	"context"

	"sceneforge/pkg/model"
)

// Chunk is one fragment of a script stream. Exactly one terminal chunk is
// delivered per stream: either Done is set or Err is non-nil, after which the
// channel is closed.
type Chunk struct {
	Content string
	Usage   *model.TokenUsage
	Done    bool
	Err     error
}

// StreamRequest describes one script generation run.
type StreamRequest struct {
	System      string
	Prompt      string
	Temperature float32
}

// StreamProvider streams LLM output as it is generated.
type StreamProvider interface {
	// Stream starts generation and returns a channel of fragments. The
	// channel is closed after the terminal chunk. Cancelling the context
	// stops the stream.
	Stream(ctx context.Context, req StreamRequest) (<-chan Chunk, error)
}
