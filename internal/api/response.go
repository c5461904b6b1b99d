package api

import (
	"encoding/json"
	"net/http"

	"github.com/example/ec-shop-core/internal/apperr"
	"github.com/example/ec-shop-core/internal/pkg/logging"
	"go.uber.org/zap"
)

// Response is the envelope of every API response. Data is null on failure.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondSuccess(w http.ResponseWriter, status int, message string, data any) {
	respondJSON(w, status, Response{Success: true, Message: message, Data: data})
}

func respondJSONError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, Response{Success: false, Message: message})
}

// respondError maps a classified error onto its status code. Internal errors
// are logged with the request logger.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		logging.FromContext(r.Context(), nil).Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	respondJSONError(w, err.Error(), apperr.HTTPStatus(kind))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}
