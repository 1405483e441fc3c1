package elevenlabs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sceneforge/pkg/config"
	"sceneforge/pkg/tracker"
	"sceneforge/pkg/tts"
)

func testAudio() []byte {
	return bytes.Repeat([]byte{0xff, 0xf3}, 1024)
}

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewProvider(config.TTSConfig{
		Key:     "xi-key",
		VoiceID: "21m00Tcm4TlvDq8ikWAM",
		Model:   "eleven_multilingual_v2",
		Speed:   1.0,
	}, tracker.New())
	p.baseURL = srv.URL
	return p
}

func TestSynthesize_ReturnsAudioAndAlignment(t *testing.T) {
	audio := testAudio()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "xi-key", r.Header.Get("xi-api-key"))
		assert.Equal(t, "/21m00Tcm4TlvDq8ikWAM/with-timestamps", r.URL.Path)

		var body requestBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Hello there", body.Text)
		assert.Equal(t, "eleven_multilingual_v2", body.ModelID)
		assert.InDelta(t, 0.5, body.VoiceSettings.Stability, 1e-9)
		assert.InDelta(t, 0.75, body.VoiceSettings.SimilarityBoost, 1e-9)
		assert.Equal(t, "Previous scene.", body.PreviousText)
		assert.Equal(t, "Next scene.", body.NextText)

		json.NewEncoder(w).Encode(map[string]any{
			"audio_base64": base64.StdEncoding.EncodeToString(audio),
			"alignment": map[string]any{
				"characters":                    []string{"H", "i"},
				"character_start_times_seconds": []float64{0.0, 0.1},
				"character_end_times_seconds":   []float64{0.1, 0.2},
			},
		})
	})

	res, err := p.Synthesize(context.Background(), tts.Request{
		Text:         "Hello there",
		PreviousText: "Previous scene.",
		NextText:     "Next scene.",
	})
	require.NoError(t, err)
	assert.Equal(t, audio, res.Audio)
	assert.Equal(t, "audio/mpeg", res.MIMEType)
	assert.Equal(t, []string{"H", "i"}, res.Alignment.Characters)
	assert.Equal(t, []float64{0.1, 0.2}, res.Alignment.EndTimes)
}

func TestSynthesize_FatalOnAuthFailure(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"detail": map[string]string{"message": "invalid api key"},
		})
	})

	_, err := p.Synthesize(context.Background(), tts.Request{Text: "hi"})
	require.Error(t, err)
	assert.True(t, tts.IsFatalError(err))
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestSynthesize_TransientServerError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	_, err := p.Synthesize(context.Background(), tts.Request{Text: "hi"})
	require.Error(t, err)
	assert.False(t, tts.IsFatalError(err))
}

func TestSynthesize_RejectsTinyAudio(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"audio_base64": base64.StdEncoding.EncodeToString([]byte("tiny")),
		})
	})

	_, err := p.Synthesize(context.Background(), tts.Request{Text: "hi"})
	assert.ErrorContains(t, err, "suspiciously small")
}

func TestSynthesize_MissingKeyIsFatal(t *testing.T) {
	p := NewProvider(config.TTSConfig{VoiceID: "v"}, nil)
	_, err := p.Synthesize(context.Background(), tts.Request{Text: "hi"})
	assert.True(t, tts.IsFatalError(err))
}
