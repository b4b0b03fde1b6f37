package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/estampa/internal/controller"
	"github.com/snappy-loop/estampa/internal/messages"
	"github.com/snappy-loop/estampa/internal/models"
)

// Handler contains all HTTP handlers
type Handler struct {
	generator   controller.Generator
	messages    *messages.Catalog
	options     []controller.Option
	wsReadLimit int64
}

// NewHandler creates a new handler. opts are applied to every controller the
// handler creates (model, publisher, timeout).
func NewHandler(generator controller.Generator, msgs *messages.Catalog, wsReadLimit int64, opts ...controller.Option) *Handler {
	if msgs == nil {
		msgs = messages.Default()
	}
	if wsReadLimit <= 0 {
		wsReadLimit = 64 << 10
	}
	return &Handler{
		generator:   generator,
		messages:    msgs,
		options:     opts,
		wsReadLimit: wsReadLimit,
	}
}

func (h *Handler) newController(extra ...controller.Option) *controller.Controller {
	opts := make([]controller.Option, 0, len(h.options)+len(extra))
	opts = append(opts, h.options...)
	opts = append(opts, extra...)
	return controller.New(h.generator, h.messages, opts...)
}

type indexPage struct {
	View     models.View
	Messages *messages.Catalog
}

// Index handles GET /
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	page := indexPage{View: h.newController().View(), Messages: h.messages}
	if err := executeTemplate(w, "index", page); err != nil {
		log.Error().Err(err).Msg("Failed to render index")
	}
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	View    models.View `json:"view"`
	DataURI string      `json:"data_uri,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Generate handles POST /v1/generate. Each call runs its own controller,
// so the response view is the terminal (idle) state of one submit.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctrl := h.newController()
	defer ctrl.Close()

	err := ctrl.Submit(r.Context(), req.Prompt)
	view := ctrl.View()

	var vErr *controller.ValidationError
	var gErr *controller.GenerationError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, generateResponse{View: view, DataURI: view.ImageSrc})
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, generateResponse{View: view, Error: vErr.Message})
	case errors.As(err, &gErr):
		writeJSON(w, http.StatusBadGateway, generateResponse{View: view, Error: gErr.Message})
	default:
		log.Error().Err(err).Msg("Unexpected submit error")
		writeJSON(w, http.StatusInternalServerError, generateResponse{View: view, Error: h.messages.Get(messages.Generation)})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
