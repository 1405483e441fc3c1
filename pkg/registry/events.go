package registry

import (
	"log/slog"

	"sceneforge/pkg/model"
)

// EventType identifies a registry change notification.
type EventType string

const (
	EventSceneAdded  EventType = "scene_added"
	EventAssetStatus EventType = "asset_status"
	EventTimingReady EventType = "timing_ready"
)

// Event is one incremental registry change, delivered to subscribers in the
// order the registry applied it.
type Event struct {
	Type    EventType         `json:"type"`
	SceneID string            `json:"scene_id,omitempty"`
	AssetID string            `json:"asset_id,omitempty"`
	Status  model.AssetStatus `json:"status,omitempty"`
	Error   string            `json:"error,omitempty"`
	Scene   *model.Scene      `json:"scene,omitempty"`
}

const subscriberBuffer = 64

// Subscribe returns a channel of registry events and a cancel function.
// Events are dropped for subscribers that fall too far behind; the registry
// never blocks on a slow consumer.
func (r *Registry) Subscribe() (<-chan Event, func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	ch := make(chan Event, subscriberBuffer)
	r.subs[id] = ch
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if c, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(c)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

func (r *Registry) publish(e Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, ch := range r.subs {
		select {
		case ch <- e:
		default:
			slog.Warn("Registry: subscriber lagging, event dropped", "type", e.Type, "asset", e.AssetID)
		}
	}
}
