package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/namelens/edgegate/internal/core/status"
	apperrors "github.com/namelens/edgegate/internal/errors"
)

// StatusHandler serves the next generated status snapshot.
func StatusHandler(gen *status.Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gen == nil {
			apperrors.RespondWithError(w, r, apperrors.NewInternalError("status generator unavailable"))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(gen.Next())
	}
}
