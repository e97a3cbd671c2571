package httpadapter

import (
	"net/http"

	"github.com/kirillkom/bookbot/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotFound), domain.IsKind(err, domain.ErrProviderMiss):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrSessionActive):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrSessionExpired):
		return http.StatusGone
	case domain.IsKind(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
