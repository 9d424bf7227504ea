package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/knx-gateway/internal/device"
	"github.com/nerrad567/knx-gateway/internal/entity"
)

// Error represents a structured error response. The same shape crosses both
// the REST surface (as the response body) and the WebSocket surface (as the
// payload of an error message).
type Error struct {
	Status  int           `json:"status,omitempty"`
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Fields  []FieldDetail `json:"fields,omitempty"`
}

// FieldDetail carries a single validation failure back to the client.
type FieldDetail struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeUnauthorized     = "unauthorised"
	ErrCodeForbidden        = "forbidden"
	ErrCodeConflict         = "conflict"
	ErrCodeInternal         = "internal_error"
	ErrCodeValidation       = "validation_error"
	ErrCodeUnknownPlatform  = "unknown_platform"
	ErrCodePlatformMismatch = "platform_mismatch"
	ErrCodeReconcileFailed  = "reconcile_failed"
	ErrCodeBusUnavailable   = "bus_unavailable"
)

// classifyError maps domain sentinel errors onto wire errors. Anything not
// recognised becomes an internal error with a generic message so that
// database details never leak to clients.
func classifyError(err error) Error {
	var ve *entity.ValidationError
	if errors.As(err, &ve) {
		e := Error{
			Status:  http.StatusBadRequest,
			Code:    ErrCodeValidation,
			Message: ve.Error(),
		}
		for _, fe := range ve.Fields {
			e.Fields = append(e.Fields, FieldDetail{Path: fe.Path, Message: fe.Message})
		}
		return e
	}

	switch {
	case errors.Is(err, entity.ErrValidation):
		return Error{Status: http.StatusBadRequest, Code: ErrCodeValidation, Message: err.Error()}
	case errors.Is(err, entity.ErrUnknownPlatform):
		return Error{Status: http.StatusBadRequest, Code: ErrCodeUnknownPlatform, Message: err.Error()}
	case errors.Is(err, entity.ErrNotFound):
		return Error{Status: http.StatusNotFound, Code: ErrCodeNotFound, Message: "entity not found"}
	case errors.Is(err, entity.ErrDuplicateID):
		return Error{Status: http.StatusConflict, Code: ErrCodeConflict, Message: "entity already exists"}
	case errors.Is(err, entity.ErrPlatformMismatch):
		return Error{Status: http.StatusConflict, Code: ErrCodePlatformMismatch, Message: err.Error()}
	case errors.Is(err, entity.ErrInstantiation):
		return Error{Status: http.StatusBadGateway, Code: ErrCodeReconcileFailed, Message: err.Error()}
	case errors.Is(err, device.ErrNotFound):
		return Error{Status: http.StatusNotFound, Code: ErrCodeNotFound, Message: "device not found"}
	case errors.Is(err, device.ErrInvalidName):
		return Error{Status: http.StatusBadRequest, Code: ErrCodeBadRequest, Message: err.Error()}
	default:
		return Error{Status: http.StatusInternalServerError, Code: ErrCodeInternal, Message: "internal error"}
	}
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeDomainError classifies a domain error and writes it.
func writeDomainError(w http.ResponseWriter, err error) {
	e := classifyError(err)
	writeJSON(w, e.Status, e)
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}
