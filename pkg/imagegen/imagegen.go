// Package imagegen generates scene images through the OpenAI Images API.
package imagegen

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"sceneforge/pkg/config"
	"sceneforge/pkg/request"
)

const defaultEndpoint = "https://api.openai.com/v1/images/generations"

// Generator produces raw image bytes for a scene description.
type Generator struct {
	rc       *request.Client
	endpoint string
	key      string
	model    string
	quality  string
	size     string
}

// New creates an image generator from config. The request client provides
// queuing and retry behavior shared with the other providers.
func New(cfg config.ImageConfig, rc *request.Client) *Generator {
	return &Generator{
		rc:       rc,
		endpoint: defaultEndpoint,
		key:      cfg.Key,
		model:    cfg.Model,
		quality:  cfg.Quality,
		size:     cfg.Size,
	}
}

type generateRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	Quality        string `json:"quality,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type generateResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// Generate renders one image for the given description and returns the raw
// (typically PNG) bytes.
func (g *Generator) Generate(ctx context.Context, description string) ([]byte, error) {
	if g.key == "" {
		return nil, fmt.Errorf("image api key is missing")
	}

	req := generateRequest{
		Model:   g.model,
		Prompt:  description,
		N:       1,
		Size:    g.size,
		Quality: g.quality,
	}
	// dall-e models need an explicit response format and use hd/standard
	// quality names; gpt-image-1 always returns b64_json.
	if strings.HasPrefix(g.model, "dall-e") {
		req.ResponseFormat = "b64_json"
		if g.quality == "high" {
			req.Quality = "hd"
		} else {
			req.Quality = "standard"
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	respBody, err := g.rc.Post(ctx, g.endpoint, body, map[string]string{
		"Authorization": "Bearer " + g.key,
		"Content-Type":  "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}

	var resp generateResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse image response: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("image response contains no data")
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image payload: %w", err)
	}
	return data, nil
}
