// Package pipeline composes the generation flow: script stream in, finished
// scene assets out. Scenes are admitted as the extractor emits them; each
// scene fans out into an image job and a narration job on separate schedulers
// so one slow provider cannot starve the other.
package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"sceneforge/pkg/config"
	"sceneforge/pkg/imageproc"
	"sceneforge/pkg/llm"
	"sceneforge/pkg/model"
	"sceneforge/pkg/registry"
	"sceneforge/pkg/sched"
	"sceneforge/pkg/script"
	"sceneforge/pkg/timing"
	"sceneforge/pkg/tts"
)

// ErrBusy is returned when a generation run is already active; the pipeline
// drives one session at a time.
var ErrBusy = errors.New("generation already in progress")

// ImageGenerator renders one image for a scene description.
type ImageGenerator interface {
	Generate(ctx context.Context, description string) ([]byte, error)
}

// Pipeline drives one generation session against the registry.
type Pipeline struct {
	cfg    *config.Config
	reg    *registry.Registry
	stream llm.StreamProvider
	images ImageGenerator
	voice  tts.Provider

	imageSched *sched.Scheduler[struct{}]
	audioSched *sched.Scheduler[struct{}]

	mu      sync.Mutex
	running bool
}

// New creates a pipeline. Scheduler ceilings come from config; non-positive
// values are clamped to 1 by the scheduler.
func New(cfg *config.Config, reg *registry.Registry, stream llm.StreamProvider, images ImageGenerator, voice tts.Provider) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		reg:        reg,
		stream:     stream,
		images:     images,
		voice:      voice,
		imageSched: sched.New[struct{}](cfg.Pipeline.ImageConcurrency),
		audioSched: sched.New[struct{}](cfg.Pipeline.NarrationConcurrency),
	}
}

// Generate runs one script generation session. It blocks until the script
// stream is fully consumed; asset jobs keep running in the background after
// it returns. Scenes admitted before a stream failure keep their jobs.
// Returns ErrBusy if a session is already active.
func (p *Pipeline) Generate(ctx context.Context, prompt string) error {
	if !p.acquire() {
		return ErrBusy
	}
	defer p.release()
	return p.generate(ctx, prompt)
}

// Start begins a generation session in the background. The session reports
// through the registry's event stream; a stream failure only lands in the
// log. Returns ErrBusy if a session is already active.
func (p *Pipeline) Start(ctx context.Context, prompt string) error {
	if !p.acquire() {
		return ErrBusy
	}
	go func() {
		defer p.release()
		if err := p.generate(ctx, prompt); err != nil {
			slog.Error("Generation run failed", "error", err)
		}
	}()
	return nil
}

func (p *Pipeline) acquire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return false
	}
	p.running = true
	return true
}

func (p *Pipeline) release() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

func (p *Pipeline) generate(ctx context.Context, prompt string) error {
	p.reg.Clear()

	req := llm.StreamRequest{
		System:      script.SystemPrompt(p.cfg.Video.NumScenes, p.cfg.Video.TargetDuration),
		Prompt:      prompt,
		Temperature: p.cfg.LLM.Temperature,
	}
	ch, err := p.stream.Stream(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to start script stream: %w", err)
	}

	slog.Info("Script generation started", "provider", p.cfg.LLM.Provider, "model", p.cfg.LLM.Model)

	ex := script.NewExtractor()
	var streamErr error
	for chunk := range ch {
		if chunk.Err != nil {
			streamErr = chunk.Err
			break
		}
		if chunk.Content != "" {
			for _, s := range ex.Append(chunk.Content) {
				p.admitScene(ctx, s)
			}
		}
		if chunk.Done && chunk.Usage != nil {
			slog.Info("Script stream complete",
				"prompt_tokens", chunk.Usage.Prompt,
				"completion_tokens", chunk.Usage.Completion,
				"est_cost_usd", llm.EstimateCost(p.cfg.LLM.Model, *chunk.Usage))
		}
		// Abort takes effect between chunks.
		if ctx.Err() != nil {
			streamErr = ctx.Err()
			break
		}
	}

	if streamErr != nil {
		return fmt.Errorf("script stream failed: %w", streamErr)
	}

	scenes, err := ex.Finish()
	for _, s := range scenes {
		p.admitScene(ctx, s)
	}
	if err != nil {
		return fmt.Errorf("script stream produced no scenes: %w", err)
	}

	slog.Info("All scenes admitted", "count", ex.Emitted())
	return nil
}

// RetryAsset re-submits a failed asset. The passed context should outlive the
// triggering request.
func (p *Pipeline) RetryAsset(ctx context.Context, id string) error {
	if err := p.reg.Retry(id); err != nil {
		return err
	}
	a, err := p.reg.Asset(id)
	if err != nil {
		return err
	}

	p.reg.Enqueue(id)
	switch a.Type {
	case model.AssetImage:
		p.imageSched.Submit(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, p.runImage(ctx, id)
		})
	case model.AssetAudio:
		p.audioSched.Submit(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, p.runAudio(ctx, id)
		})
	default:
		p.reg.Dequeue(id)
		return fmt.Errorf("asset %s has unknown type %q", id, a.Type)
	}
	return nil
}

// Stats reports scheduler load for the stats endpoint.
func (p *Pipeline) Stats() map[string]int {
	return map[string]int{
		"image_running":     p.imageSched.Running(),
		"image_queued":      p.imageSched.Queued(),
		"narration_running": p.audioSched.Running(),
		"narration_queued":  p.audioSched.Queued(),
	}
}

// admitScene registers a scene and fans out its two asset jobs.
func (p *Pipeline) admitScene(ctx context.Context, s model.Scene) {
	scene := p.reg.AddScene(s)
	imgID := p.reg.CreateAsset(scene.ID, model.AssetImage)
	audID := p.reg.CreateAsset(scene.ID, model.AssetAudio)
	p.reg.Enqueue(imgID, audID)

	slog.Debug("Scene admitted", "scene", scene.ID, "index", scene.Index)

	p.imageSched.Submit(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.runImage(ctx, imgID)
	})
	p.audioSched.Submit(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.runAudio(ctx, audID)
	})
}

// runImage generates and post-processes one scene image.
func (p *Pipeline) runImage(ctx context.Context, id string) error {
	defer p.reg.Dequeue(id)

	scene, err := p.sceneForAsset(id)
	if err != nil {
		return err
	}
	if err := p.reg.UpdateStatus(id, model.StatusGenerating, ""); err != nil {
		return err
	}

	data, err := p.images.Generate(ctx, scene.ImageDescription)
	if err != nil {
		return p.fail(id, fmt.Errorf("image generation: %w", err))
	}

	res, err := imageproc.Process(data)
	if err != nil {
		return p.fail(id, fmt.Errorf("image post-processing: %w", err))
	}
	if res.Flattened || res.Brightened {
		slog.Info("Image corrected", "asset", id, "flattened", res.Flattened, "brightened", res.Brightened)
	}

	if err := p.reg.SetResult(id, res.Data, res.DisplayRef, 0); err != nil {
		return err
	}
	return nil
}

// runAudio synthesizes narration for one scene and derives its word timing.
// Neighboring scene scripts are resolved at run time so late-arriving scenes
// still land in previous_text/next_text.
func (p *Pipeline) runAudio(ctx context.Context, id string) error {
	defer p.reg.Dequeue(id)

	scene, err := p.sceneForAsset(id)
	if err != nil {
		return err
	}
	if err := p.reg.UpdateStatus(id, model.StatusGenerating, ""); err != nil {
		return err
	}

	prev, next := p.neighborScripts(scene)
	res, err := p.voice.Synthesize(ctx, tts.Request{
		Text:         scene.Script,
		PreviousText: prev,
		NextText:     next,
	})
	if err != nil {
		if tts.IsFatalError(err) {
			slog.Error("Narration failed permanently", "asset", id, "error", err)
		}
		return p.fail(id, fmt.Errorf("narration synthesis: %w", err))
	}

	var (
		audioTiming model.AudioTiming
		haveTiming  bool
	)
	if len(res.Alignment.Characters) > 0 {
		audioTiming, err = timing.Convert(id, res.Alignment)
		if err != nil {
			return p.fail(id, fmt.Errorf("timing conversion: %w", err))
		}
		haveTiming = true
	}

	// Complete the asset before publishing its timing so subscribers never
	// see word timings for an asset that is still generating.
	ref := dataURL(res.MIMEType, res.Audio)
	if err := p.reg.SetResult(id, res.Audio, ref, audioTiming.TotalDuration); err != nil {
		return err
	}
	if haveTiming {
		if err := p.reg.SetTiming(id, audioTiming); err != nil {
			return err
		}
	}
	return nil
}

// fail marks the asset failed and passes the error through.
func (p *Pipeline) fail(id string, err error) error {
	if uerr := p.reg.UpdateStatus(id, model.StatusFailed, err.Error()); uerr != nil {
		slog.Warn("Failed to record asset failure", "asset", id, "error", uerr)
	}
	slog.Warn("Asset generation failed", "asset", id, "error", err)
	return err
}

func (p *Pipeline) sceneForAsset(id string) (model.Scene, error) {
	a, err := p.reg.Asset(id)
	if err != nil {
		return model.Scene{}, err
	}
	for _, s := range p.reg.Scenes() {
		if s.ID == a.SceneID {
			return s, nil
		}
	}
	return model.Scene{}, fmt.Errorf("asset %s: %w", id, registry.ErrSceneNotFound)
}

// neighborScripts returns the scripts of the scenes adjacent to s, by index.
func (p *Pipeline) neighborScripts(s model.Scene) (prev, next string) {
	for _, o := range p.reg.Scenes() {
		switch o.Index {
		case s.Index - 1:
			prev = o.Script
		case s.Index + 1:
			next = o.Script
		}
	}
	return prev, next
}

func dataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
