package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/knx-gateway/internal/entity"
)

// EntityRequest is the request body for entity create and update.
//
// Data carries the platform-specific configuration document; it is validated
// and canonicalised by the entity store before anything is persisted.
type EntityRequest struct {
	Platform string         `json:"platform"`
	Data     map[string]any `json:"data"`
}

// handleListEntities returns all stored entities in insertion order.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	records, err := s.entities.ListEntities(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entities": records, "count": len(records)})
}

// handleGetEntity returns a single entity record by unique id.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	uniqueID := chi.URLParam(r, "unique_id")

	rec, err := s.entities.GetEntityConfig(r.Context(), uniqueID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleCreateEntity validates, persists and instantiates a new entity.
func (s *Server) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	var req EntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	uniqueID, err := s.entities.CreateEntity(r.Context(), entity.Platform(req.Platform), req.Data)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	rec, err := s.entities.GetEntityConfig(r.Context(), uniqueID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// handleUpdateEntity replaces an entity's configuration and rebuilds its
// live counterpart.
func (s *Server) handleUpdateEntity(w http.ResponseWriter, r *http.Request) {
	uniqueID := chi.URLParam(r, "unique_id")

	var req EntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	rec, err := s.entities.UpdateEntity(r.Context(), entity.Platform(req.Platform), uniqueID, req.Data)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleDeleteEntity tears down and removes an entity.
func (s *Server) handleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	uniqueID := chi.URLParam(r, "unique_id")

	if err := s.entities.DeleteEntity(r.Context(), uniqueID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": uniqueID})
}
