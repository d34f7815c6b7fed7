package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/marketsrc/hermes/internal/core"
)

// Meta contains response metadata.
type Meta struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// SuccessResponse is the standard success response format.
type SuccessResponse struct {
	Data any  `json:"data"`
	Meta Meta `json:"meta"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	Provider string `json:"provider,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// JSON writes a success response with data.
func JSON(w http.ResponseWriter, status int, requestID string, data any) {
	resp := SuccessResponse{
		Data: data,
		Meta: Meta{Timestamp: time.Now().UTC(), RequestID: requestID},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// Error writes an error response, mapping provider error kinds to HTTP
// status codes.
func Error(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	detail := ErrorDetail{
		Kind:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
	}

	var pe *core.ProviderError
	if errors.As(err, &pe) {
		status = statusFor(pe.Kind)
		detail.Kind = string(pe.Kind)
		detail.Message = pe.Message
		detail.Provider = string(pe.Provider)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: detail})
}

// Unauthorized writes a 401 with a fixed body.
func Unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(ErrorResponse{Error: ErrorDetail{
		Kind:    "UNAUTHORIZED",
		Message: "missing or invalid API key",
	}})
}

// BadRequest writes a 400 with the given message.
func BadRequest(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(ErrorResponse{Error: ErrorDetail{
		Kind:    "BAD_REQUEST",
		Message: message,
	}})
}

func statusFor(kind core.ErrorKind) int {
	switch kind {
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindAllUnavailable:
		return http.StatusServiceUnavailable
	case core.KindAuthFailed:
		return http.StatusBadGateway
	case core.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
