// Package gemini implements llm.StreamProvider for Google Gemini.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"google.golang.org/api/iterator"
	"google.golang.org/genai"

	"sceneforge/pkg/config"
	"sceneforge/pkg/llm"
	"sceneforge/pkg/model"
	"sceneforge/pkg/tracker"
)

// Client streams generations from the Gemini API.
type Client struct {
	genaiClient *genai.Client
	modelName   string
	tracker     *tracker.Tracker

	mu sync.RWMutex
}

// NewClient creates a new Gemini streaming client.
func NewClient(cfg config.LLMConfig, t *tracker.Tracker) (*Client, error) {
	c := &Client{tracker: t}
	if err := c.Configure(cfg); err != nil {
		return nil, err
	}
	return c, nil
}

// Configure updates the client with new settings.
func (c *Client) Configure(cfg config.LLMConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.modelName = cfg.Model
	if c.modelName == "" {
		c.modelName = "gemini-2.0-flash"
	}

	if cfg.Key == "" {
		c.genaiClient = nil
		return nil
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.Key,
	})
	if err != nil {
		return fmt.Errorf("failed to create genai client: %w", err)
	}
	c.genaiClient = client

	if err := c.validateModel(context.Background()); err != nil {
		slog.Warn("Gemini model validation failed (proceeding anyway)", "error", err)
		// Generation calls surface the real error if the key or model is bad.
	}

	return nil
}

// Close cleans up resources.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.genaiClient = nil
}

// Stream implements llm.StreamProvider.
func (c *Client) Stream(ctx context.Context, sr llm.StreamRequest) (<-chan llm.Chunk, error) {
	c.mu.RLock()
	client := c.genaiClient
	modelName := c.modelName
	c.mu.RUnlock()

	if client == nil {
		return nil, fmt.Errorf("gemini client not configured")
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(sr.Temperature),
	}
	if sr.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(sr.System, genai.RoleUser)
	}

	out := make(chan llm.Chunk)
	go func() {
		defer close(out)

		// Sends race the context so an abandoned consumer cannot strand
		// this goroutine.
		send := func(ch llm.Chunk) bool {
			select {
			case out <- ch:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var usage *model.TokenUsage
		for resp, err := range client.Models.GenerateContentStream(ctx, modelName, genai.Text(sr.Prompt), cfg) {
			if err != nil {
				c.trackFailure()
				send(llm.Chunk{Err: fmt.Errorf("gemini stream error: %w", err)})
				return
			}
			if resp.UsageMetadata != nil {
				usage = &model.TokenUsage{
					Prompt:     int(resp.UsageMetadata.PromptTokenCount),
					Completion: int(resp.UsageMetadata.CandidatesTokenCount),
				}
			}
			if text := responseText(resp); text != "" {
				if !send(llm.Chunk{Content: text}) {
					return
				}
			}
		}

		c.trackSuccess()
		send(llm.Chunk{Usage: usage, Done: true})
	}()

	return out, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// validateModel checks if the configured model is available for the API key.
func (c *Client) validateModel(ctx context.Context) error {
	name := c.modelName
	if !strings.HasPrefix(name, "models/") {
		name = "models/" + name
	}

	_, err := c.genaiClient.Models.Get(ctx, name, nil)
	if err == nil {
		slog.Debug("Gemini model validation success", "model", c.modelName)
		return nil
	}

	slog.Warn("Gemini model validation failed, fetching available models...", "model", c.modelName, "error", err)

	iter2, listErr := c.genaiClient.Models.List(ctx, nil)
	if listErr != nil {
		slog.Warn("Failed to list models for recovery", "error", listErr)
		return nil
	}

	var available []string
	for {
		m, nextErr := iter2.Next(ctx)
		if nextErr == iterator.Done {
			break
		}
		if nextErr != nil {
			break
		}
		if strings.Contains(strings.ToLower(m.Name), "gemini") {
			available = append(available, m.Name)
		}
	}

	slog.Error("Configured model not found", "configured", c.modelName)
	for _, m := range available {
		slog.Error("- " + m)
	}

	return nil
}

func (c *Client) trackSuccess() {
	if c.tracker != nil {
		c.tracker.TrackSuccess("gemini")
	}
}

func (c *Client) trackFailure() {
	if c.tracker != nil {
		c.tracker.TrackFailure("gemini")
	}
}
