package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/Cheertaboi/jewelry-storefront/internal/apperr"
	"github.com/Cheertaboi/jewelry-storefront/internal/logger"
)

// envelope mirrors the backend's response shape so the UI decodes both the
// same way
type envelope struct {
	Status  string        `json:"status"`
	Data    any           `json:"data"`
	Message string        `json:"message,omitempty"`
	Error   *apperr.Error `json:"error,omitempty"`
}

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Status: "success", Data: data})
}

func created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, envelope{Status: "success", Data: data})
}

// fail renders err. Classified errors keep their kind and HTTP status;
// anything else is logged and reported as an internal error.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	if e, ok := apperr.As(err); ok {
		writeJSON(w, apperr.HTTPStatus(e.Kind), envelope{Status: "error", Message: e.Message, Error: e})
		return
	}
	if errors.Is(err, r.Context().Err()) && r.Context().Err() != nil {
		return
	}
	logger.FromContext(r.Context(), nil).Error("unhandled error", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, envelope{Status: "error", Message: "Something went wrong. Please try again."})
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, envelope{Status: "error", Message: message})
}

// decode reads a JSON body into v, rejecting unknown fields
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		badRequest(w, "invalid_body")
		return false
	}
	return true
}
