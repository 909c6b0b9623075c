package utils

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"go-marketplace/apperr"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err onto its HTTP status. Internal errors are logged and
// their cause is not sent to the caller.
func WriteError(w http.ResponseWriter, log *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	msg := apperr.MessageOf(err)
	if kind == apperr.KindInternal || kind == apperr.KindTransient {
		if log != nil {
			log.Error("request failed", zap.Error(err))
		}
		if kind == apperr.KindInternal {
			msg = "internal server error"
		}
	}
	WriteJSON(w, status, ErrorResponse{Success: false, Message: msg, Field: apperr.FieldOf(err)})
}
