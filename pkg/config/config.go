package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Request  RequestConfig  `yaml:"request"`
	LLM      LLMConfig      `yaml:"llm"`
	Image    ImageConfig    `yaml:"image"`
	TTS      TTSConfig      `yaml:"tts"`
	Video    VideoConfig    `yaml:"video"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
}

// RequestConfig holds HTTP request settings.
type RequestConfig struct {
	Retries int           `yaml:"retries"`
	Timeout Duration      `yaml:"timeout"`
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// LLMConfig holds settings for the script-generating LLM provider.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // "openai", "deepseek", "gemini"
	Model       string  `yaml:"model"`
	Key         string  `yaml:"key"`
	BaseURL     string  `yaml:"base_url"` // override for OpenAI-compatible providers
	Temperature float32 `yaml:"temperature"`
}

// ImageConfig holds settings for the image generation provider.
type ImageConfig struct {
	Key     string `yaml:"key"`
	Model   string `yaml:"model"`
	Quality string `yaml:"quality"` // "low", "medium", "high"
	Size    string `yaml:"size"`    // e.g. "1024x1536"
}

// TTSConfig holds settings for the narration provider.
type TTSConfig struct {
	Key     string  `yaml:"key"`
	VoiceID string  `yaml:"voice"`
	Model   string  `yaml:"model"`
	Speed   float64 `yaml:"speed"`
}

// VideoConfig holds the target shape of the generated video.
type VideoConfig struct {
	NumScenes      int     `yaml:"num_scenes"`
	TargetDuration float64 `yaml:"target_duration_seconds"`
}

// PipelineConfig holds concurrency ceilings for asset generation.
// The narration provider is stricter about rate limits, so its ceiling
// defaults lower than the image one.
type PipelineConfig struct {
	ImageConcurrency     int `yaml:"image_concurrency"`
	NarrationConcurrency int `yaml:"narration_concurrency"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Request: RequestConfig{
			Retries: 3,
			Timeout: Duration(300 * time.Second),
			Backoff: BackoffConfig{
				BaseDelay: Duration(500 * time.Millisecond),
				MaxDelay:  Duration(30 * time.Second),
			},
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Temperature: 0.8,
		},
		Image: ImageConfig{
			Model:   "gpt-image-1",
			Quality: "medium",
			Size:    "1024x1536",
		},
		TTS: TTSConfig{
			VoiceID: "21m00Tcm4TlvDq8ikWAM",
			Model:   "eleven_multilingual_v2",
			Speed:   1.0,
		},
		Video: VideoConfig{
			NumScenes:      6,
			TargetDuration: 60,
		},
		Pipeline: PipelineConfig{
			ImageConcurrency:     12,
			NarrationConcurrency: 4,
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
		},
		Server: ServerConfig{
			Address: "localhost:1930",
		},
	}
}

// Load loads the configuration from the given path. If the file does not
// exist, it is created with default values. Existing values are merged over
// the defaults; the file is not written back, to preserve user formatting.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		cfg.applyEnvFallbacks()
		return cfg, nil
	}

	if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	cfg.applyEnvFallbacks()
	return cfg, nil
}

// applyEnvFallbacks fills empty API keys from the environment. Keys are never
// written back to disk.
func (c *Config) applyEnvFallbacks() {
	if c.LLM.Key == "" {
		switch c.LLM.Provider {
		case "deepseek":
			c.LLM.Key = os.Getenv("DEEPSEEK_API_KEY")
		case "gemini":
			c.LLM.Key = os.Getenv("GEMINI_API_KEY")
		default:
			c.LLM.Key = os.Getenv("OPENAI_API_KEY")
		}
	}
	if c.Image.Key == "" {
		c.Image.Key = os.Getenv("OPENAI_API_KEY")
	}
	if c.TTS.Key == "" {
		c.TTS.Key = os.Getenv("ELEVENLABS_API_KEY")
	}
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Sceneforge Configuration
# -----------------------
# API keys may be left empty and provided via environment instead:
#   OPENAI_API_KEY, DEEPSEEK_API_KEY, GEMINI_API_KEY, ELEVENLABS_API_KEY

`)
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
