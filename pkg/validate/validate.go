// Package validate checks provider API keys with a cheap authenticated call.
package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Result is the outcome of a key check.
type Result struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

type endpoint struct {
	url       string
	keyHeader string
	bearer    bool
	label     string
}

var endpoints = map[string]endpoint{
	"openai":     {url: "https://api.openai.com/v1/models", bearer: true, label: "OpenAI"},
	"deepseek":   {url: "https://api.deepseek.com/v1/models", bearer: true, label: "DeepSeek"},
	"elevenlabs": {url: "https://api.elevenlabs.io/v1/user", keyHeader: "xi-api-key", label: "ElevenLabs"},
}

// Validator performs key checks against provider list/user endpoints.
type Validator struct {
	client    *http.Client
	overrides map[string]string // provider -> URL, for tests
}

// New creates a Validator.
func New() *Validator {
	return &Validator{client: &http.Client{Timeout: 15 * time.Second}}
}

// Providers returns the provider names Key understands.
func Providers() []string {
	return []string{"openai", "deepseek", "elevenlabs"}
}

// Key checks an API key for the named provider. A network failure is reported
// in the Result, not as an error; only an unknown provider is an error.
func (v *Validator) Key(ctx context.Context, provider, key string) (Result, error) {
	ep, ok := endpoints[provider]
	if !ok {
		return Result{}, fmt.Errorf("unknown provider %q", provider)
	}

	if strings.TrimSpace(key) == "" {
		return Result{Valid: false, Error: ep.label + " API key is required"}, nil
	}

	url := ep.url
	if o, ok := v.overrides[provider]; ok {
		url = o
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, err
	}
	if ep.bearer {
		req.Header.Set("Authorization", "Bearer "+key)
	} else {
		req.Header.Set(ep.keyHeader, key)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return Result{Valid: false, Error: "Network error validating API key"}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return Result{Valid: true}, nil
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return Result{Valid: false, Error: "Invalid " + ep.label + " API key"}, nil
	}

	return Result{Valid: false, Error: apiErrorMessage(resp)}, nil
}

// apiErrorMessage digs a human-readable message out of the provider's error
// body, falling back to the status code.
func apiErrorMessage(resp *http.Response) string {
	var body struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Detail *struct {
			Message string `json:"message"`
		} `json:"detail"`
		Message string `json:"message"`
	}
	if json.NewDecoder(resp.Body).Decode(&body) == nil {
		switch {
		case body.Error != nil && body.Error.Message != "":
			return body.Error.Message
		case body.Detail != nil && body.Detail.Message != "":
			return body.Detail.Message
		case body.Message != "":
			return body.Message
		}
	}
	return fmt.Sprintf("API error: %d", resp.StatusCode)
}
