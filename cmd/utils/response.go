package utils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// Envelope is a JSON object response.
type Envelope map[string]interface{}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err as {"success":false,"error":...}. Internal errors are
// logged and their detail is never sent to the client.
func WriteError(w http.ResponseWriter, logger *zap.Logger, err error) {
	kind := KindOf(err)
	message := "Server error"

	var e *Error
	if errors.As(err, &e) && kind != KindInternal {
		message = e.Message
	}
	if kind == KindInternal {
		logger.Error("request failed", zap.Error(err))
	}

	WriteJSON(w, kind.Status(), Envelope{"success": false, "error": message})
}

// DecodeJSON reads a JSON request body into v. An empty body leaves v unchanged.
func DecodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return Validation("Invalid request body")
	}
	return nil
}
