package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// DeviceRequest is the request body for device creation.
type DeviceRequest struct {
	Name   string `json:"name"`
	AreaID string `json:"area_id,omitempty"`
}

// handleListDevices returns all registered devices ordered by name.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices.List(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.devices.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// handleCreateDevice registers a new virtual device.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req DeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	dev, err := s.devices.Create(r.Context(), req.Name, req.AreaID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dev)
}

// handleDeleteDevice removes a device from the registry.
//
// Entities referencing the device keep their stored config; their next
// reconcile fails until the reference is fixed or the device recreated.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.devices.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}
