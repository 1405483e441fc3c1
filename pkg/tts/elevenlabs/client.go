// Package elevenlabs implements tts.Provider for the ElevenLabs API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"sceneforge/pkg/config"
	"sceneforge/pkg/model"
	"sceneforge/pkg/tracker"
	"sceneforge/pkg/tts"
)

const apiURL = "https://api.elevenlabs.io/v1/text-to-speech"

// Provider synthesizes narration with character-level timestamps.
type Provider struct {
	apiKey  string
	voiceID string
	modelID string
	speed   float64
	baseURL string
	client  *http.Client
	tracker *tracker.Tracker
}

// NewProvider creates a new ElevenLabs provider.
func NewProvider(cfg config.TTSConfig, t *tracker.Tracker) *Provider {
	return &Provider{
		apiKey:  cfg.Key,
		voiceID: cfg.VoiceID,
		modelID: cfg.Model,
		speed:   cfg.Speed,
		baseURL: apiURL,
		client:  &http.Client{Timeout: 120 * time.Second},
		tracker: t,
	}
}

type requestBody struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
	PreviousText  string        `json:"previous_text,omitempty"`
	NextText      string        `json:"next_text,omitempty"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

type responseBody struct {
	AudioBase64 string          `json:"audio_base64"`
	Alignment   model.Alignment `json:"alignment"`
}

type errorBody struct {
	Detail struct {
		Message string `json:"message"`
	} `json:"detail"`
}

// Synthesize implements tts.Provider using the with-timestamps endpoint.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (*tts.Result, error) {
	if p.apiKey == "" {
		return nil, tts.NewFatalError(http.StatusUnauthorized, "elevenlabs api key is missing")
	}

	payload, err := json.Marshal(requestBody{
		Text:    req.Text,
		ModelID: p.modelID,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Speed:           p.speed,
		},
		PreviousText: req.PreviousText,
		NextText:     req.NextText,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/with-timestamps", p.baseURL, p.voiceID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		p.trackFailure()
		return nil, fmt.Errorf("tts request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.trackFailure()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))

		msg := fmt.Sprintf("tts generation failed: status %d", resp.StatusCode)
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil && eb.Detail.Message != "" {
			msg = eb.Detail.Message
		}

		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity:
			return nil, tts.NewFatalError(resp.StatusCode, msg)
		}
		return nil, fmt.Errorf("%s", msg)
	}

	var body responseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		p.trackFailure()
		return nil, fmt.Errorf("failed to parse tts response: %w", err)
	}

	audio, err := base64.StdEncoding.DecodeString(body.AudioBase64)
	if err != nil {
		p.trackFailure()
		return nil, fmt.Errorf("failed to decode audio payload: %w", err)
	}
	if len(audio) < tts.MinAudioSize {
		p.trackFailure()
		return nil, fmt.Errorf("audio payload suspiciously small (%d bytes)", len(audio))
	}

	p.trackSuccess()
	return &tts.Result{
		Audio:     audio,
		MIMEType:  "audio/mpeg",
		Alignment: body.Alignment,
	}, nil
}

func (p *Provider) trackSuccess() {
	if p.tracker != nil {
		p.tracker.TrackSuccess("elevenlabs")
	}
}

func (p *Provider) trackFailure() {
	if p.tracker != nil {
		p.tracker.TrackFailure("elevenlabs")
	}
}
