package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/namelens/edgegate/internal/core/analytics"
	"github.com/namelens/edgegate/internal/metrics"
)

const maxAnalyticsBody = 16 << 10

// AnalyticsResponse is the body returned by the analytics endpoint.
type AnalyticsResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// AnalyticsHandler decodes an event and forwards it to sink. The response
// does not depend on what the sink does with it.
func AnalyticsHandler(sink analytics.Sink) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxAnalyticsBody)

		var event analytics.Event
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			metrics.RecordAnalyticsEvent("invalid")
			writeAnalyticsResponse(w, http.StatusBadRequest, AnalyticsResponse{Error: "invalid event payload"})
			return
		}
		if err := event.Validate(); err != nil {
			metrics.RecordAnalyticsEvent("invalid")
			writeAnalyticsResponse(w, http.StatusBadRequest, AnalyticsResponse{Error: err.Error()})
			return
		}

		if sink != nil {
			sink.Track(r.Context(), event)
		}
		metrics.RecordAnalyticsEvent("accepted")
		writeAnalyticsResponse(w, http.StatusAccepted, AnalyticsResponse{Success: true})
	}
}

func writeAnalyticsResponse(w http.ResponseWriter, status int, body AnalyticsResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
