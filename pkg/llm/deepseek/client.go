// Package deepseek provides script streaming via the DeepSeek API, which
// speaks the OpenAI chat completions dialect.
package deepseek

import (
	"sceneforge/pkg/config"
	"sceneforge/pkg/llm/openai"
	"sceneforge/pkg/tracker"
)

const baseURL = "https://api.deepseek.com/v1"

// NewClient creates a DeepSeek streaming client.
func NewClient(cfg config.LLMConfig, t *tracker.Tracker) (*openai.Client, error) {
	url := cfg.BaseURL
	if url == "" {
		url = baseURL
	}
	return openai.NewClient(cfg, url, "deepseek", t)
}
