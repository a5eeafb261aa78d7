// Package api provides the HTTP/WebSocket server for the Rikugan
// visualization backend.
package api

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/rikugan-dev/rikugan/pkg/adapter"
	"github.com/rikugan-dev/rikugan/pkg/config"
	"github.com/rikugan-dev/rikugan/pkg/session"
)

// ModelsHandler handles model-related API requests. It resolves names
// through the adapter registry and swaps loaded models into the
// single-slot session.
type ModelsHandler struct {
	registry *adapter.Registry
	state    *session.State
	model    config.ModelConfig
	log      zerolog.Logger
}

// NewModelsHandler creates a ModelsHandler.
func NewModelsHandler(registry *adapter.Registry, state *session.State, model config.ModelConfig, log zerolog.Logger) *ModelsHandler {
	return &ModelsHandler{
		registry: registry,
		state:    state,
		model:    model,
		log:      log.With().Str("component", "models").Logger(),
	}
}

// RegisterRoutes registers the model API routes on the router.
func (h *ModelsHandler) RegisterRoutes(router *Router) {
	router.GET("/api/models", h.ListModels)
	router.GET("/api/models/:name", h.GetModel)
	router.POST("/api/models/:name/load", h.LoadModel)
	router.POST("/api/models/:name/unload", h.UnloadModel)
}

// -----------------------------------------------------------------------------
// API Response Types
// -----------------------------------------------------------------------------

// ModelInfo is a registry descriptor plus its session state.
type ModelInfo struct {
	adapter.Descriptor
	Loaded bool `json:"loaded"`
}

// ModelListResponse is the JSON response for GET /api/models.
type ModelListResponse struct {
	Models []ModelInfo `json:"models"`
}

// ModelActionResponse is the JSON response for model load/unload.
type ModelActionResponse struct {
	Status    string `json:"status"`
	AdapterID string `json:"adapter_id"`
	Message   string `json:"message"`
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// ListModels handles GET /api/models.
// It returns every registered model with its loaded flag.
func (h *ModelsHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	_, activeID, _ := h.state.Active()

	descriptors := h.registry.List()
	models := make([]ModelInfo, 0, len(descriptors))
	for _, desc := range descriptors {
		models = append(models, ModelInfo{
			Descriptor: desc,
			Loaded:     desc.ID == activeID && h.state.Ready(desc.ID),
		})
	}

	WriteJSON(w, http.StatusOK, ModelListResponse{Models: models})
}

// GetModel handles GET /api/models/:name.
// It returns the descriptor for one registered model.
func (h *ModelsHandler) GetModel(w http.ResponseWriter, r *http.Request) {
	name := PathParam(r, "name")

	_, desc, ok := h.registry.Resolve(name)
	if !ok {
		WriteError(w, http.StatusNotFound, "model_not_found",
			fmt.Sprintf("Unknown model: %s", name))
		return
	}

	WriteJSON(w, http.StatusOK, ModelInfo{
		Descriptor: desc,
		Loaded:     h.state.Ready(desc.ID),
	})
}

// LoadModel handles POST /api/models/:name/load.
// Loading an already ready model is a no-op; loading a different model
// tears the previous one down after the new one is installed.
func (h *ModelsHandler) LoadModel(w http.ResponseWriter, r *http.Request) {
	name := PathParam(r, "name")

	factory, desc, ok := h.registry.Resolve(name)
	if !ok {
		WriteError(w, http.StatusNotFound, "model_not_found",
			fmt.Sprintf("Unknown model: %s", name))
		return
	}

	if h.state.Ready(desc.ID) {
		WriteJSON(w, http.StatusOK, ModelActionResponse{
			Status:    "ok",
			AdapterID: desc.ID,
			Message:   fmt.Sprintf("%s already loaded on %s.", desc.DisplayName, h.model.Device),
		})
		return
	}

	instance := factory()
	opts := adapter.LoadOptions{
		Device: h.model.Device,
		DType:  h.model.DType,
	}
	if err := instance.Load(r.Context(), opts); err != nil {
		h.log.Error().Err(err).Str("model_id", desc.ID).Msg("load failed")
		WriteError(w, http.StatusInternalServerError, "load_failed",
			fmt.Sprintf("Failed to load %s: %v", desc.DisplayName, err))
		return
	}

	h.state.Set(instance, desc.ID)
	h.log.Info().Str("model_id", desc.ID).Str("device", h.model.Device).Msg("model loaded")

	WriteJSON(w, http.StatusOK, ModelActionResponse{
		Status:    "ok",
		AdapterID: desc.ID,
		Message:   fmt.Sprintf("%s loaded on %s.", desc.DisplayName, h.model.Device),
	})
}

// UnloadModel handles POST /api/models/:name/unload.
// Unloading a model that is not active is a no-op.
func (h *ModelsHandler) UnloadModel(w http.ResponseWriter, r *http.Request) {
	name := PathParam(r, "name")

	_, desc, ok := h.registry.Resolve(name)
	if !ok {
		WriteError(w, http.StatusNotFound, "model_not_found",
			fmt.Sprintf("Unknown model: %s", name))
		return
	}

	_, activeID, active := h.state.Active()
	if active && activeID == desc.ID {
		h.state.Clear()
		h.log.Info().Str("model_id", desc.ID).Msg("model unloaded")
	}

	WriteJSON(w, http.StatusOK, ModelActionResponse{
		Status:    "ok",
		AdapterID: desc.ID,
		Message:   fmt.Sprintf("%s unloaded.", desc.DisplayName),
	})
}
