package api

import (
	"encoding/json"
	"net/http"

	"sceneforge/pkg/validate"
)

// KeysHandler validates provider API keys on behalf of the frontend, which
// cannot call the providers directly without exposing CORS-restricted
// endpoints.
type KeysHandler struct {
	validator *validate.Validator
}

// NewKeysHandler creates a KeysHandler.
func NewKeysHandler(v *validate.Validator) *KeysHandler {
	return &KeysHandler{validator: v}
}

type validateRequest struct {
	Provider string `json:"provider"`
	Key      string `json:"key"`
}

// HandleValidate checks a key against its provider.
func (h *KeysHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := h.validator.Key(r.Context(), req.Provider, req.Key)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}
