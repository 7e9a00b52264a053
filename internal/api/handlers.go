package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/draftworks/schemadesk/internal/store"
	"github.com/draftworks/schemadesk/internal/types"
	"github.com/draftworks/schemadesk/internal/validation"
)

// Handler implements the API handlers
type Handler struct {
	store   store.Store
	apiKey  string
	version string
}

// NewHandler creates a new Handler with store.Store interface
func NewHandler(s store.Store, apiKey, version string) *Handler {
	return &Handler{
		store:   s,
		apiKey:  apiKey,
		version: version,
	}
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.CountSchemas(r.Context())
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	resp := types.HealthResponse{
		Status:      "healthy",
		Version:     h.version,
		SchemaCount: count,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ListSchemas handles GET /api/v1/schemas
func (h *Handler) ListSchemas(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"

	schemas, err := h.store.ListSchemas(r.Context(), includeInactive)
	if err != nil {
		slog.Error("list schemas failed", "error", err)
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.SchemaList{Schemas: schemas, Total: len(schemas)})
}

// GetSchema handles GET /api/v1/schemas/{id}
func (h *Handler) GetSchema(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	schema, err := h.store.GetSchema(r.Context(), id)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, schema)
}

// CreateSchema handles POST /api/v1/schemas
func (h *Handler) CreateSchema(w http.ResponseWriter, r *http.Request) {
	var req types.NewSchema
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if errs := validation.ValidateNewSchema(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Schema contains invalid fields", errs)
		return
	}

	schema, err := h.store.CreateSchema(r.Context(), req)
	if err != nil {
		slog.Error("create schema failed", "error", err)
		MapStoreError(w, r, err)
		return
	}

	slog.Info("schema created", "schema_id", schema.ID, "name", schema.Name)
	writeJSON(w, http.StatusCreated, schema)
}

// UpdateSchema handles PUT /api/v1/schemas/{id}.
// A stale base_version yields 409 with the server's current schema in the
// problem body; the conflict is the client's to resolve.
func (h *Handler) UpdateSchema(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var patch types.SchemaPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if errs := validation.ValidateSchemaPatch(patch); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Patch contains invalid fields", errs)
		return
	}

	schema, err := h.store.UpdateSchema(r.Context(), id, patch)
	if errors.Is(err, store.ErrVersionConflict) {
		slog.Info("schema update conflict",
			"schema_id", id,
			"base_version", patch.BaseVersion,
			"server_version", schema.UpdatedAt,
		)
		WriteProblemConflict(w, r, "Schema was modified by another session", schema)
		return
	}
	if err != nil {
		slog.Error("update schema failed", "schema_id", id, "error", err)
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, schema)
}

// DeleteSchema handles DELETE /api/v1/schemas/{id}
func (h *Handler) DeleteSchema(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.store.DeleteSchema(r.Context(), id); err != nil {
		MapStoreError(w, r, err)
		return
	}

	slog.Info("schema deactivated", "schema_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
