package domain

import (
	"errors"
	"fmt"
)

var (
	ErrExtractionFailed = errors.New("no book identifiable")
	ErrProviderMiss     = errors.New("provider returned no match")
	ErrRateLimited      = errors.New("rate limit exceeded")
	ErrInvalidInput     = errors.New("invalid input")
	ErrSessionExpired   = errors.New("confirmation session expired")
	ErrSessionActive    = errors.New("confirmation session already active")
	ErrPersistence      = errors.New("persistence failure")
	ErrNotFound         = errors.New("not found")
	ErrTemporary        = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
