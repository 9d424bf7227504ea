package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/knx-gateway/internal/bridges/knx"
)

// GroupRequest is the request body for manual group writes and reads from
// the group monitor UI.
type GroupRequest struct {
	Address string `json:"address"`
	Value   any    `json:"value,omitempty"`
}

// handleKNXInfo returns a gateway status summary.
func (s *Server) handleKNXInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.gatewayInfo(r.Context()))
}

// handleRecentTelegrams returns the group monitor's recent telegram ring.
func (s *Server) handleRecentTelegrams(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.groupMonitorInfo())
}

// handleGroupWrite sends a GroupValueWrite to the bus.
func (s *Server) handleGroupWrite(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeBusUnavailable, "bus bridge not configured")
		return
	}

	var req GroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.bus.GroupWrite(r.Context(), req.Address, req.Value); err != nil {
		writeGroupError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"address": req.Address, "sent": true})
}

// handleGroupRead sends a GroupValueRead to the bus.
func (s *Server) handleGroupRead(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeBusUnavailable, "bus bridge not configured")
		return
	}

	var req GroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.bus.GroupRead(r.Context(), req.Address); err != nil {
		writeGroupError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"address": req.Address, "sent": true})
}

// writeGroupError maps bus errors onto wire errors.
func writeGroupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, knx.ErrInvalidGroupAddress):
		writeBadRequest(w, err.Error())
	case errors.Is(err, knx.ErrBusUnavailable):
		writeError(w, http.StatusServiceUnavailable, ErrCodeBusUnavailable, err.Error())
	default:
		writeInternalError(w, "group request failed")
	}
}
