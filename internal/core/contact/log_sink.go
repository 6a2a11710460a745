package contact

import (
	"context"

	"github.com/namelens/edgegate/internal/observability"
	"go.uber.org/zap"
)

// LogSink records submissions as structured log lines. The message body is
// not logged; only its length.
type LogSink struct{}

// Save implements Sink.
func (LogSink) Save(_ context.Context, sub Submission) error {
	if observability.ServerLogger == nil {
		return nil
	}
	observability.ServerLogger.Info("Contact submission received",
		zap.String("id", sub.ID),
		zap.String("email", sub.Form.Email),
		zap.String("company", sub.Form.Company),
		zap.String("service", sub.Form.Service),
		zap.Int("message_length", len(sub.Form.Message)),
		zap.String("client", sub.ClientKey),
	)
	return nil
}
