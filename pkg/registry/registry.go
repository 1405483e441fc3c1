// Package registry is the single source of truth for scenes, assets, derived
// audio timings, and the pending-work queue. It only tracks state: it never
// calls into schedulers, providers, or the API layer.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"sceneforge/pkg/model"
)

var (
	// ErrAssetNotFound is returned for operations on unknown asset ids.
	// The reference behavior was a silent no-op; failing loudly was chosen
	// instead so programming mistakes surface immediately.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrSceneNotFound is returned for operations on unknown scene ids.
	ErrSceneNotFound = errors.New("scene not found")
)

// SceneAssets is the per-scene asset pair lookup result.
type SceneAssets struct {
	Image *model.Asset
	Audio *model.Asset
}

// Registry holds all per-session generation state. All mutations go through
// its methods; per-asset transitions are serialized by the registry lock.
type Registry struct {
	mu      sync.RWMutex
	scenes  []model.Scene
	assets  map[string]*model.Asset
	timings map[string]model.AudioTiming
	queue   []string

	subs   map[int]chan Event
	nextID int
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		assets:  make(map[string]*model.Asset),
		timings: make(map[string]model.AudioTiming),
		subs:    make(map[int]chan Event),
	}
}

// --- Scenes ---

// AddScene appends a scene. The stored index is always the scene's position
// in the collection, regardless of what the caller set.
func (r *Registry) AddScene(s model.Scene) model.Scene {
	r.mu.Lock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.Index = len(r.scenes)
	r.scenes = append(r.scenes, s)
	r.mu.Unlock()

	r.publish(Event{Type: EventSceneAdded, SceneID: s.ID, Scene: &s})
	return s
}

// UpdateScene replaces a scene's script and image description and marks it
// as user-edited.
func (r *Registry) UpdateScene(id, script, imageDescription string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.scenes {
		if r.scenes[i].ID == id {
			r.scenes[i].Script = script
			r.scenes[i].ImageDescription = imageDescription
			r.scenes[i].IsEdited = true
			return nil
		}
	}
	return fmt.Errorf("update scene %s: %w", id, ErrSceneNotFound)
}

// RemoveScene deletes a scene and reindexes the remainder.
func (r *Registry) RemoveScene(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.scenes {
		if r.scenes[i].ID == id {
			r.scenes = append(r.scenes[:i], r.scenes[i+1:]...)
			r.reindexLocked()
			return nil
		}
	}
	return fmt.Errorf("remove scene %s: %w", id, ErrSceneNotFound)
}

// Reorder moves the scene at from to position to and reindexes.
func (r *Registry) Reorder(from, to int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if from < 0 || from >= len(r.scenes) || to < 0 || to >= len(r.scenes) {
		return fmt.Errorf("reorder %d -> %d: index out of range (%d scenes)", from, to, len(r.scenes))
	}

	s := r.scenes[from]
	r.scenes = append(r.scenes[:from], r.scenes[from+1:]...)
	r.scenes = append(r.scenes[:to], append([]model.Scene{s}, r.scenes[to:]...)...)
	r.reindexLocked()
	return nil
}

// reindexLocked restores the contiguous 0-based index invariant.
func (r *Registry) reindexLocked() {
	for i := range r.scenes {
		r.scenes[i].Index = i
	}
}

// Scenes returns a snapshot of the ordered scene collection.
func (r *Registry) Scenes() []model.Scene {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Scene, len(r.scenes))
	copy(out, r.scenes)
	return out
}

// --- Assets ---

// CreateAsset allocates a pending asset for a scene. Scene existence is not
// validated: the extractor may still be emitting the scene's successors when
// generation starts.
func (r *Registry) CreateAsset(sceneID string, typ model.AssetType) string {
	id := uuid.NewString()
	a := &model.Asset{
		ID:      id,
		SceneID: sceneID,
		Type:    typ,
		Status:  model.StatusPending,
	}

	r.mu.Lock()
	r.assets[id] = a
	r.mu.Unlock()

	r.publish(Event{Type: EventAssetStatus, SceneID: sceneID, AssetID: id, Status: model.StatusPending})
	return id
}

// legalTransition reports whether from -> to is an allowed status move.
// failed -> generating is the retry path.
func legalTransition(from, to model.AssetStatus) bool {
	switch from {
	case model.StatusPending:
		return to == model.StatusGenerating
	case model.StatusGenerating:
		return to == model.StatusComplete || to == model.StatusFailed
	case model.StatusFailed:
		return to == model.StatusGenerating
	default:
		return false
	}
}

// UpdateStatus transitions an asset's status. An errMsg is recorded only when
// the new status is failed; moving to generating clears any previous error.
func (r *Registry) UpdateStatus(id string, status model.AssetStatus, errMsg string) error {
	r.mu.Lock()
	a, ok := r.assets[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("update status of %s: %w", id, ErrAssetNotFound)
	}
	if !legalTransition(a.Status, status) {
		from := a.Status
		r.mu.Unlock()
		return fmt.Errorf("asset %s: illegal transition %s -> %s", id, from, status)
	}

	a.Status = status
	switch status {
	case model.StatusFailed:
		a.Error = errMsg
	case model.StatusGenerating:
		a.Error = ""
	}
	sceneID := a.SceneID
	r.mu.Unlock()

	r.publish(Event{Type: EventAssetStatus, SceneID: sceneID, AssetID: id, Status: status, Error: errMsg})
	return nil
}

// SetResult attaches the finished artifact and completes the asset.
func (r *Registry) SetResult(id string, payload []byte, displayRef string, duration float64) error {
	r.mu.Lock()
	a, ok := r.assets[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("set result of %s: %w", id, ErrAssetNotFound)
	}
	if !legalTransition(a.Status, model.StatusComplete) {
		from := a.Status
		r.mu.Unlock()
		return fmt.Errorf("asset %s: illegal transition %s -> %s", id, from, model.StatusComplete)
	}

	a.Payload = payload
	a.DisplayRef = displayRef
	a.Duration = duration
	a.Status = model.StatusComplete
	a.Error = ""
	sceneID := a.SceneID
	r.mu.Unlock()

	r.publish(Event{Type: EventAssetStatus, SceneID: sceneID, AssetID: id, Status: model.StatusComplete})
	return nil
}

// SetTiming records derived word timing for an audio asset. It does not
// change the asset's status.
func (r *Registry) SetTiming(id string, t model.AudioTiming) error {
	r.mu.Lock()
	a, ok := r.assets[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("set timing of %s: %w", id, ErrAssetNotFound)
	}
	if a.Type != model.AssetAudio {
		r.mu.Unlock()
		return fmt.Errorf("set timing of %s: asset is %s, not audio", id, a.Type)
	}

	t.AssetID = id
	r.timings[id] = t
	sceneID := a.SceneID
	r.mu.Unlock()

	r.publish(Event{Type: EventTimingReady, SceneID: sceneID, AssetID: id})
	return nil
}

// Retry prepares a failed asset for another attempt: bumps the retry count
// and clears the recorded error. The caller re-submits the work and moves the
// asset to generating itself.
func (r *Registry) Retry(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assets[id]
	if !ok {
		return fmt.Errorf("retry %s: %w", id, ErrAssetNotFound)
	}
	if a.Status != model.StatusFailed {
		return fmt.Errorf("retry %s: asset is %s, not failed", id, a.Status)
	}

	a.RetryCount++
	a.Error = ""
	return nil
}

// Asset returns a copy of the asset, or ErrAssetNotFound.
func (r *Registry) Asset(id string) (model.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.assets[id]
	if !ok {
		return model.Asset{}, fmt.Errorf("asset %s: %w", id, ErrAssetNotFound)
	}
	return *a, nil
}

// Timing returns the derived timing for an audio asset, if computed.
func (r *Registry) Timing(id string) (model.AudioTiming, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.timings[id]
	return t, ok
}

// AssetsForScene finds a scene's image and audio assets by linear scan.
// Asset counts are in the tens to low hundreds, so this is fine.
func (r *Registry) AssetsForScene(sceneID string) SceneAssets {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out SceneAssets
	for _, a := range r.assets {
		if a.SceneID != sceneID {
			continue
		}
		c := *a
		switch a.Type {
		case model.AssetImage:
			out.Image = &c
		case model.AssetAudio:
			out.Audio = &c
		}
	}
	return out
}

// --- Generation queue ---

// Enqueue appends asset ids to the pending-work queue. Membership is
// bookkeeping for admission, not asset state.
func (r *Registry) Enqueue(ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = append(r.queue, ids...)
}

// Dequeue removes an asset id from the queue.
func (r *Registry) Dequeue(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, q := range r.queue {
		if q == id {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			return
		}
	}
}

// Queue returns a snapshot of the pending-work queue.
func (r *Registry) Queue() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.queue))
	copy(out, r.queue)
	return out
}

// Clear drops all state for a fresh session.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scenes = nil
	r.assets = make(map[string]*model.Asset)
	r.timings = make(map[string]model.AudioTiming)
	r.queue = nil
}
