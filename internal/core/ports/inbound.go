package ports

import (
	"context"
	"time"

	"github.com/kirillkom/bookbot/internal/core/domain"
)

// ReviewResolver is the inbound contract for resolving a review to a book.
type ReviewResolver interface {
	Resolve(ctx context.Context, review domain.Review) (domain.Outcome, error)
}

// ConfirmationFlow is the inbound contract for the per-user disambiguation
// dialog. Every method returns the next prompt to render.
type ConfirmationFlow interface {
	Active(ctx context.Context, userID string) (*domain.ConfirmationSession, bool)
	SelectCandidate(ctx context.Context, userID string, index int) (domain.Prompt, error)
	RequestISBN(ctx context.Context, userID string) (domain.Prompt, error)
	RequestManual(ctx context.Context, userID string) (domain.Prompt, error)
	Cancel(ctx context.Context, userID string) (domain.Prompt, error)
	HandleText(ctx context.Context, userID, text string) (domain.Prompt, error)
	Sweep(ctx context.Context, now time.Time) int
}

// ISBNLookup is the inbound contract for a standalone ISBN lookup.
type ISBNLookup interface {
	LookupISBN(ctx context.Context, isbn string) (*domain.BookMetadata, error)
}
