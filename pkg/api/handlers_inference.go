package api

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/rikugan-dev/rikugan/pkg/protocol"
	"github.com/rikugan-dev/rikugan/pkg/session"
)

// InferenceHandler handles plain generation requests without
// activation capture. Clients that want activations use the
// WebSocket stream instead.
type InferenceHandler struct {
	state *session.State
	log   zerolog.Logger
}

// NewInferenceHandler creates an InferenceHandler.
func NewInferenceHandler(state *session.State, log zerolog.Logger) *InferenceHandler {
	return &InferenceHandler{
		state: state,
		log:   log.With().Str("component", "inference").Logger(),
	}
}

// RegisterRoutes registers the inference API routes on the router.
func (h *InferenceHandler) RegisterRoutes(router *Router) {
	router.POST("/api/inference/run", h.Run)
}

// InferenceRunRequest is the JSON request body for POST /api/inference/run.
type InferenceRunRequest struct {
	Prompt       string `json:"prompt"`
	MaxNewTokens int    `json:"max_new_tokens"`
}

// InferenceRunResponse is the JSON response for POST /api/inference/run.
type InferenceRunResponse struct {
	Prompt        string `json:"prompt"`
	GeneratedText string `json:"generated_text"`
	ModelID       string `json:"model_id"`
}

// Run handles POST /api/inference/run.
func (h *InferenceHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req InferenceRunRequest
	if err := ReadJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return
	}
	if req.MaxNewTokens <= 0 {
		req.MaxNewTokens = protocol.DefaultMaxNewTokens
	}

	active, modelID, ok := h.state.Active()
	if !ok || !active.Loaded() {
		WriteError(w, http.StatusBadRequest, "no_active_model",
			"No model loaded. Use /api/models/:name/load first.")
		return
	}

	text, err := active.Generate(r.Context(), req.Prompt, req.MaxNewTokens)
	if err != nil {
		h.log.Error().Err(err).Str("model_id", modelID).Msg("generation failed")
		WriteError(w, http.StatusInternalServerError, "generation_failed",
			"Generation failed: "+err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, InferenceRunResponse{
		Prompt:        req.Prompt,
		GeneratedText: text,
		ModelID:       modelID,
	})
}
