package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/namelens/edgegate/internal/metrics"
	"github.com/namelens/edgegate/internal/observability"
)

// Recovery turns a panic anywhere below it into a 500 JSON envelope. The edge
// router itself never panics; this guards the site handlers behind it.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if recovered == http.ErrAbortHandler {
				panic(recovered)
			}

			requestID := GetRequestID(r.Context())
			envelope := errors.NewErrorEnvelope("INTERNAL_ERROR", fmt.Sprintf("panic: %v", recovered)).
				WithCorrelationID(requestID)
			envelope, _ = envelope.WithSeverity(errors.SeverityCritical)

			metrics.RecordPanic()
			if observability.ServerLogger != nil {
				observability.ServerLogger.Error("Recovered from panic",
					zap.String("request_id", requestID),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Any("panic", recovered),
					zap.String("stack_trace", string(debug.Stack())))
			}

			writePanicResponse(w, envelope)
		}()

		next.ServeHTTP(w, r)
	})
}

// panicBody mirrors the JSON error shape of the errors package, which cannot
// be imported from here.
type panicBody struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

func writePanicResponse(w http.ResponseWriter, envelope *errors.ErrorEnvelope) {
	var body panicBody
	body.Error.Code = envelope.Code
	body.Error.Message = envelope.Message
	body.Error.RequestID = envelope.CorrelationID

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(body)
}
