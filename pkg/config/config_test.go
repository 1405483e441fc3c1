package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_CreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected config file to be created: %v", err)
	}
	if cfg.Pipeline.ImageConcurrency != 12 {
		t.Errorf("expected default image concurrency 12, got %d", cfg.Pipeline.ImageConcurrency)
	}
	if cfg.Pipeline.NarrationConcurrency != 4 {
		t.Errorf("expected default narration concurrency 4, got %d", cfg.Pipeline.NarrationConcurrency)
	}
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
llm:
  provider: deepseek
  model: deepseek-chat
pipeline:
  narration_concurrency: 2
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LLM.Provider != "deepseek" {
		t.Errorf("expected provider deepseek, got %s", cfg.LLM.Provider)
	}
	if cfg.Pipeline.NarrationConcurrency != 2 {
		t.Errorf("expected narration concurrency 2, got %d", cfg.Pipeline.NarrationConcurrency)
	}
	// Untouched values keep their defaults.
	if cfg.Pipeline.ImageConcurrency != 12 {
		t.Errorf("expected default image concurrency 12, got %d", cfg.Pipeline.ImageConcurrency)
	}
	if cfg.Video.NumScenes != 6 {
		t.Errorf("expected default num_scenes 6, got %d", cfg.Video.NumScenes)
	}
}

func TestLoad_EnvKeyFallback(t *testing.T) {
	t.Setenv("ELEVENLABS_API_KEY", "el-test-key")
	t.Setenv("OPENAI_API_KEY", "oa-test-key")

	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.TTS.Key != "el-test-key" {
		t.Errorf("expected TTS key from env, got %q", cfg.TTS.Key)
	}
	if cfg.LLM.Key != "oa-test-key" {
		t.Errorf("expected LLM key from env, got %q", cfg.LLM.Key)
	}
}

func TestParseDuration_ExtendedUnits(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"500ms", 500 * time.Millisecond},
		{"30s", 30 * time.Second},
		{"1d", 24 * time.Hour},
		{"1w", 7 * 24 * time.Hour},
		{"1d2h", 26 * time.Hour},
	}

	for _, tc := range cases {
		got, err := ParseDuration(tc.in)
		if err != nil {
			t.Errorf("ParseDuration(%q) failed: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseDuration(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseDuration_Invalid(t *testing.T) {
	if _, err := ParseDuration("wat"); err == nil {
		t.Error("expected error for invalid duration")
	}
}
