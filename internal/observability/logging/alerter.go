package logging

import (
	"context"
	"log/slog"

	"github.com/kirillkom/bookbot/internal/core/domain"
)

// AlertLogger writes operational alerts to the structured log. It is used
// when no message bus is configured.
type AlertLogger struct{}

func (AlertLogger) Alert(_ context.Context, alert domain.Alert) error {
	slog.Warn("operational_alert",
		"kind", alert.Kind,
		"source", alert.Source,
		"message", alert.Message,
		"at", alert.At,
	)
	return nil
}
