package handler

import (
	"encoding/json"
	"net/http"

	apperrors "pdf-tools-bot/pkg/errors"
)

type errorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
	Hint  string `json:"hint,omitempty"`
}

// writeJSON writes v as a JSON response with the given status
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response (helper function)
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorResponse{Error: message})
}

// writeAppError writes err with the status code of its AppError type.
func writeAppError(w http.ResponseWriter, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: "Internal server error",
			Type:  string(apperrors.ErrorTypeInternal),
		})
		return
	}
	writeJSON(w, appErr.StatusCode, errorResponse{
		Error: appErr.Message,
		Type:  string(appErr.Type),
		Hint:  appErr.Details,
	})
}
