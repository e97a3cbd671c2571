package ollama

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/bookbot/internal/core/domain"
	"github.com/kirillkom/bookbot/internal/infrastructure/resilience"
)

// HTTPStatusError is a non-2xx answer from the inference server.
type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "ollama status error"
	}
	if e.Body == "" {
		return fmt.Sprintf("ollama %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("ollama %s status: %s: %s", e.Operation, e.Status, e.Body)
}

// Quota exhaustion is not retried here: the extraction pipeline reports it
// through its rate limit hook and degrades the tier.
func (e *HTTPStatusError) quota() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

var transientStatuses = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

func classifyOllamaError(err error) resilience.ErrorClassification {
	if err == nil || resilience.IsCanceled(err) {
		return resilience.Ignored
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.Transient
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if transientStatuses[statusErr.StatusCode] {
			return resilience.Transient
		}
		// Model missing, bad prompt or quota: the server answered, so the
		// breaker stays closed.
		return resilience.Ignored
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.Transient
	}
	return resilience.Permanent
}

// wrapInferenceError maps a final client error onto the domain kinds the
// extraction pipeline distinguishes.
func wrapInferenceError(operation string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) || domain.IsKind(err, domain.ErrRateLimited) {
		return err
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.quota() {
		return domain.WrapError(domain.ErrRateLimited, operation, err)
	}
	if resilience.IsCircuitOpen(err) || classifyOllamaError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func trimBody(body []byte) string {
	return strings.TrimSpace(string(body))
}
