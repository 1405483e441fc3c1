// Package openai implements llm.StreamProvider for any OpenAI-compatible
// chat completions API.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"sceneforge/pkg/config"
	"sceneforge/pkg/llm"
	"sceneforge/pkg/model"
	"sceneforge/pkg/tracker"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client streams chat completions over SSE. The shared request queue is not
// used here: a stream holds its connection open for the whole generation, so
// serializing it behind other calls would stall them.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	label      string
	httpClient *http.Client
	tracker    *tracker.Tracker
}

// NewClient creates a new OpenAI-compatible streaming client.
func NewClient(cfg config.LLMConfig, baseURL, label string, t *tracker.Tracker) (*Client, error) {
	if baseURL == "" {
		baseURL = cfg.BaseURL
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	return &Client{
		apiKey:  cfg.Key,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   cfg.Model,
		label:   label,
		// No overall timeout: a stream stays open for the full generation.
		httpClient: &http.Client{Timeout: 0},
		tracker:    t,
	}, nil
}

type chatRequest struct {
	Model         string         `json:"model"`
	Messages      []chatMessage  `json:"messages"`
	Temperature   float32        `json:"temperature,omitempty"`
	Stream        bool           `json:"stream"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type streamEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Stream implements llm.StreamProvider.
func (c *Client) Stream(ctx context.Context, sr llm.StreamRequest) (<-chan llm.Chunk, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("api key is missing")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: sr.System},
			{Role: "user", Content: sr.Prompt},
		},
		Temperature:   sr.Temperature,
		Stream:        true,
		StreamOptions: &streamOptions{IncludeUsage: true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.trackFailure()
		return nil, fmt.Errorf("stream request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		c.trackFailure()
		return nil, fmt.Errorf("%s api error (status %d): %s", c.label, resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	out := make(chan llm.Chunk)
	go c.consume(ctx, resp.Body, out)
	return out, nil
}

// consume reads SSE lines until [DONE] or failure and forwards fragments.
// Every send races the context so a consumer that stops reading after a
// cancel never strands this goroutine on the channel.
func (c *Client) consume(ctx context.Context, body io.ReadCloser, out chan<- llm.Chunk) {
	defer body.Close()
	defer close(out)

	send := func(ch llm.Chunk) bool {
		select {
		case out <- ch:
			return true
		case <-ctx.Done():
			return false
		}
	}

	var usage *model.TokenUsage
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

		if payload == "[DONE]" {
			c.trackSuccess()
			send(llm.Chunk{Usage: usage, Done: true})
			return
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			// A malformed event is not fatal; the stream may recover.
			continue
		}

		if ev.Error != nil {
			c.trackFailure()
			send(llm.Chunk{Err: fmt.Errorf("%s stream error: %s", c.label, ev.Error.Message)})
			return
		}

		if ev.Usage != nil {
			usage = &model.TokenUsage{Prompt: ev.Usage.PromptTokens, Completion: ev.Usage.CompletionTokens}
		}
		if len(ev.Choices) > 0 && ev.Choices[0].Delta.Content != "" {
			if !send(llm.Chunk{Content: ev.Choices[0].Delta.Content}) {
				return
			}
		}
	}

	if err := scanner.Err(); err != nil {
		c.trackFailure()
		send(llm.Chunk{Err: fmt.Errorf("%s stream read failed: %w", c.label, err)})
		return
	}

	// Stream ended without [DONE]; treat as done if we got anything.
	c.trackSuccess()
	send(llm.Chunk{Usage: usage, Done: true})
}

func (c *Client) trackSuccess() {
	if c.tracker != nil {
		c.tracker.TrackSuccess(c.label)
	}
}

func (c *Client) trackFailure() {
	if c.tracker != nil {
		c.tracker.TrackFailure(c.label)
	}
}
