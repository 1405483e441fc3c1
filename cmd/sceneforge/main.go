package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"sceneforge/internal/api"
	"sceneforge/pkg/config"
	"sceneforge/pkg/imagegen"
	"sceneforge/pkg/llm"
	"sceneforge/pkg/llm/deepseek"
	"sceneforge/pkg/llm/gemini"
	"sceneforge/pkg/llm/openai"
	"sceneforge/pkg/logging"
	"sceneforge/pkg/pipeline"
	"sceneforge/pkg/probe"
	"sceneforge/pkg/registry"
	"sceneforge/pkg/request"
	"sceneforge/pkg/tracker"
	"sceneforge/pkg/tts/elevenlabs"
	"sceneforge/pkg/validate"
	"sceneforge/pkg/version"
)

var initConfig = flag.Bool("init-config", false, "Generate default config file and exit")

const configPath = "configs/sceneforge.yaml"

func main() {
	flag.Parse()

	if *initConfig {
		if err := config.Save(configPath, config.DefaultConfig()); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated:", configPath)
		return
	}

	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// API keys may live in a local .env instead of the config file.
	if err := godotenv.Load(); err == nil {
		slog.Debug("Loaded environment from .env")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("SceneForge started", "version", version.Version)

	tr := tracker.New()
	reqClient := request.New(cfg.Request, tr)

	stream, err := newStreamProvider(cfg, tr)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM provider: %w", err)
	}

	if err := runStartupProbes(ctx, cfg); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	reg := registry.New()
	pipe := pipeline.New(cfg, reg,
		stream,
		imagegen.New(cfg.Image, reqClient),
		elevenlabs.NewProvider(cfg.TTS, tr),
	)

	return runServer(ctx, cfg, reg, pipe, tr)
}

// newStreamProvider picks the script provider from config.
func newStreamProvider(cfg *config.Config, tr *tracker.Tracker) (llm.StreamProvider, error) {
	switch cfg.LLM.Provider {
	case "openai", "":
		return openai.NewClient(cfg.LLM, cfg.LLM.BaseURL, "openai", tr)
	case "deepseek":
		return deepseek.NewClient(cfg.LLM, tr)
	case "gemini":
		return gemini.NewClient(cfg.LLM, tr)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLM.Provider)
	}
}

// runStartupProbes verifies the configured API keys. The script provider key
// is critical; image and narration keys only warn so a text-only session can
// still start.
func runStartupProbes(ctx context.Context, cfg *config.Config) error {
	validator := validate.New()
	keyCheck := func(provider, key string) probe.CheckFunc {
		return func(ctx context.Context) error {
			res, err := validator.Key(ctx, provider, key)
			if err != nil {
				return err
			}
			if !res.Valid {
				return fmt.Errorf("%s", res.Error)
			}
			return nil
		}
	}

	probes := []probe.Probe{
		{Name: "ElevenLabs Key", Check: keyCheck("elevenlabs", cfg.TTS.Key)},
		{Name: "Image Key", Check: keyCheck("openai", cfg.Image.Key)},
	}
	switch cfg.LLM.Provider {
	case "openai", "", "deepseek":
		provider := cfg.LLM.Provider
		if provider == "" {
			provider = "openai"
		}
		probes = append(probes, probe.Probe{Name: "LLM Key", Check: keyCheck(provider, cfg.LLM.Key), Critical: true})
	default:
		// Gemini key validation happens inside its client on construction.
	}

	return probe.AnalyzeResults(probe.Run(ctx, probes))
}

func runServer(ctx context.Context, cfg *config.Config, reg *registry.Registry, pipe *pipeline.Pipeline, tr *tracker.Tracker) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	srv := api.NewServer(cfg.Server.Address,
		api.NewGenerateHandler(pipe, ctx),
		api.NewSceneHandler(reg),
		api.NewEventsHandler(reg),
		api.NewStatsHandler(tr, pipe, reg),
		api.NewKeysHandler(validate.New()),
		shutdownFunc,
	)

	srv.Handler = loggingMiddleware(srv.Handler)

	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.RequestLogger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
