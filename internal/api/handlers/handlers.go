// Package handlers implements the JSON API handlers for LexFuse.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lexfuse/lexfuse/internal/backend"
	"github.com/lexfuse/lexfuse/internal/store"
	"github.com/lexfuse/lexfuse/pkg/models"
	"github.com/rs/zerolog/log"
)

// Generator runs one fusion call. Implemented by *fusion.Engine; tests
// substitute fakes.
type Generator interface {
	Generate(ctx context.Context, req *models.GenerationRequest) (*models.FusionResult, error)
}

// Handlers holds the dependencies shared by all API handlers.
type Handlers struct {
	store   store.Store
	engine  Generator
	version string
}

// New creates the handler set.
func New(s store.Store, engine Generator, version string) *Handlers {
	return &Handlers{store: s, engine: engine, version: version}
}

// ── Generation ───────────────────────────────────────────────

// Generate handles POST /api/v1/generate.
func (h *Handlers) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	result, err := h.engine.Generate(r.Context(), &req)
	if err != nil {
		var vErr *models.ValidationError
		var allErr *models.AllBackendsFailedError
		switch {
		case errors.As(err, &vErr):
			respondError(w, http.StatusUnprocessableEntity, vErr.Error())
		case errors.As(err, &allErr):
			respondError(w, http.StatusBadGateway, allErr.Error())
		case errors.Is(err, context.Canceled):
			// Client went away; nothing useful to write.
		default:
			log.Error().Err(err).Msg("Generation failed")
			respondError(w, http.StatusInternalServerError, "generation failed")
		}
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// ── Backend Profiles ─────────────────────────────────────────

// ListBackends handles GET /api/v1/backends.
func (h *Handlers) ListBackends(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.store.ListProfiles(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"backends": profiles})
}

// GetBackend handles GET /api/v1/backends/{backendId}.
func (h *Handlers) GetBackend(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "backendId")
	profile, err := h.store.GetProfile(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "unknown backend: "+id)
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// TestBackend handles POST /api/v1/backends/{backendId}/test with a
// minimal credential-validating call.
func (h *Handlers) TestBackend(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "backendId")
	profile, err := h.store.GetProfile(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "unknown backend: "+id)
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	adapter, err := backend.New(profile)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	start := time.Now()
	probeErr := adapter.Probe(ctx)

	resp := map[string]interface{}{
		"backend":    id,
		"healthy":    probeErr == nil,
		"latency_ms": time.Since(start).Milliseconds(),
	}
	if probeErr != nil {
		resp["error"] = probeErr.Error()
	}
	respondJSON(w, http.StatusOK, resp)
}

// ── Document Types ───────────────────────────────────────────

// ListDocTypes handles GET /api/v1/doctypes.
func (h *Handlers) ListDocTypes(w http.ResponseWriter, r *http.Request) {
	docTypes, err := h.store.ListDocTypes(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"doc_types": docTypes})
}

// GetDocType handles GET /api/v1/doctypes/{docTypeId}.
func (h *Handlers) GetDocType(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "docTypeId")
	docType, err := h.store.GetDocType(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "unknown document type: "+id)
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, docType)
}

// ── Traces ───────────────────────────────────────────────────

// ListTraces handles GET /api/v1/traces?limit=N.
func (h *Handlers) ListTraces(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	traces, err := h.store.ListTraces(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"traces": traces})
}

// GetTrace handles GET /api/v1/traces/{traceId}.
func (h *Handlers) GetTrace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "traceId")
	trace, err := h.store.GetTrace(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "unknown trace: "+id)
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, trace)
}

// ── Helpers ──────────────────────────────────────────────────

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
