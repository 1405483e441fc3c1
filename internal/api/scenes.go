package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"sceneforge/pkg/model"
	"sceneforge/pkg/registry"
)

// SceneHandler serves scene state and accepts manual scene edits.
type SceneHandler struct {
	reg *registry.Registry
}

// NewSceneHandler creates a SceneHandler.
func NewSceneHandler(reg *registry.Registry) *SceneHandler {
	return &SceneHandler{reg: reg}
}

// AssetDTO is an asset without its payload; the payload is fetched separately.
type AssetDTO struct {
	ID         string             `json:"id"`
	Type       model.AssetType    `json:"type"`
	Status     model.AssetStatus  `json:"status"`
	DisplayRef string             `json:"display_ref,omitempty"`
	Duration   float64            `json:"duration,omitempty"`
	Error      string             `json:"error,omitempty"`
	RetryCount int                `json:"retry_count,omitempty"`
	Timing     *model.AudioTiming `json:"timing,omitempty"`
}

// SceneDTO is one scene with its asset pair.
type SceneDTO struct {
	model.Scene
	Image *AssetDTO `json:"image,omitempty"`
	Audio *AssetDTO `json:"audio,omitempty"`
}

// HandleList returns all scenes in index order with their asset states.
func (h *SceneHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	scenes := h.reg.Scenes()
	out := make([]SceneDTO, 0, len(scenes))
	for _, s := range scenes {
		dto := SceneDTO{Scene: s}
		pair := h.reg.AssetsForScene(s.ID)
		dto.Image = h.assetDTO(pair.Image)
		dto.Audio = h.assetDTO(pair.Audio)
		out = append(out, dto)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *SceneHandler) assetDTO(a *model.Asset) *AssetDTO {
	if a == nil {
		return nil
	}
	dto := &AssetDTO{
		ID:         a.ID,
		Type:       a.Type,
		Status:     a.Status,
		DisplayRef: a.DisplayRef,
		Duration:   a.Duration,
		Error:      a.Error,
		RetryCount: a.RetryCount,
	}
	if t, ok := h.reg.Timing(a.ID); ok {
		dto.Timing = &t
	}
	return dto
}

type sceneUpdateRequest struct {
	Script           string `json:"script"`
	ImageDescription string `json:"image_description"`
}

// HandleUpdate applies a manual edit to a scene's text fields.
func (h *SceneHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req sceneUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.reg.UpdateScene(id, req.Script, req.ImageDescription); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// HandleDelete removes a scene; remaining scenes are reindexed.
func (h *SceneHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.reg.RemoveScene(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

type reorderRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// HandleReorder moves a scene from one index to another.
func (h *SceneHandler) HandleReorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.reg.Reorder(req.From, req.To); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reordered"})
}

// HandlePayload streams an asset's raw artifact bytes.
func (h *SceneHandler) HandlePayload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	a, err := h.reg.Asset(id)
	if err != nil {
		if errors.Is(err, registry.ErrAssetNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if a.Status != model.StatusComplete || len(a.Payload) == 0 {
		writeError(w, http.StatusConflict, "asset has no payload yet")
		return
	}

	if a.Type == model.AssetAudio {
		w.Header().Set("Content-Type", "audio/mpeg")
	} else {
		w.Header().Set("Content-Type", http.DetectContentType(a.Payload))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(a.Payload)
}
