package nats

import (
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/bookbot/internal/core/domain"
	"github.com/kirillkom/bookbot/internal/infrastructure/resilience"
)

// connectionErrors clear once the client reconnects; anything else (bad
// subject, payload too large) will fail the same way on every attempt.
var connectionErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrDisconnected,
	nats.ErrConnectionReconnecting,
}

func isConnectionError(err error) bool {
	for _, target := range connectionErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func classifyNATSError(err error) resilience.ErrorClassification {
	switch {
	case err == nil, resilience.IsCanceled(err):
		return resilience.Ignored
	case resilience.IsCircuitOpen(err), isConnectionError(err):
		return resilience.Transient
	default:
		return resilience.Permanent
	}
}

func wrapPublishError(subject string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyNATSError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, "nats publish "+subject, err)
	}
	return err
}
