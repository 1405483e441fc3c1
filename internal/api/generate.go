package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"sceneforge/pkg/pipeline"
	"sceneforge/pkg/registry"
)

// GenerateHandler starts generation runs and asset retries. Work is bound to
// the server's run context, not the triggering request, so it survives the
// HTTP response.
type GenerateHandler struct {
	pipe   *pipeline.Pipeline
	runCtx context.Context
}

// NewGenerateHandler creates a GenerateHandler.
func NewGenerateHandler(p *pipeline.Pipeline, runCtx context.Context) *GenerateHandler {
	return &GenerateHandler{pipe: p, runCtx: runCtx}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

// HandleGenerate kicks off a generation session for a prompt. Responds 202
// and delivers progress through /api/events; a session already in flight
// answers 409.
func (h *GenerateHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	if err := h.pipe.Start(h.runCtx, req.Prompt); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// HandleRetry re-submits a failed asset.
func (h *GenerateHandler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.pipe.RetryAsset(h.runCtx, id); err != nil {
		if errors.Is(err, registry.ErrAssetNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "retrying"})
}
