package ports

import (
	"context"
	"net/http"
	"time"

	"github.com/kirillkom/bookbot/internal/core/domain"
)

// TitleExtractor is the cheap inference tier for the book title. The hint is
// an optional user suggestion taken from a slash command.
type TitleExtractor interface {
	ExtractTitle(ctx context.Context, text, hint string) (domain.TitleGuess, error)
}

// AuthorExtractor infers the author given an already resolved title.
type AuthorExtractor interface {
	ExtractAuthor(ctx context.Context, text, title string) (domain.AuthorGuess, error)
}

// AugmentedAuthorExtractor is an optional knowledge-backed author tier.
type AugmentedAuthorExtractor interface {
	ExtractAuthorAugmented(ctx context.Context, title, snippet string) (domain.AuthorGuess, error)
}

// BookProvider is the external bibliographic search service.
type BookProvider interface {
	SearchByQuery(ctx context.Context, query domain.SearchQuery) ([]domain.BookMetadata, error)
	SearchByISBN(ctx context.Context, isbn string) (*domain.BookMetadata, error)
}

// HTTPDoer issues outbound HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// CatalogRepository persists book records. Create is idempotent on a
// non-empty external id and returns the stored row.
type CatalogRepository interface {
	List(ctx context.Context) ([]domain.CatalogEntry, error)
	GetByID(ctx context.Context, id string) (*domain.CatalogEntry, error)
	GetByExternalID(ctx context.Context, externalID string) (*domain.CatalogEntry, error)
	Create(ctx context.Context, entry *domain.CatalogEntry) (*domain.CatalogEntry, error)
}

// ReviewRepository stores reviews attached to catalog entries.
type ReviewRepository interface {
	Save(ctx context.Context, review *domain.Review) error
}

// SessionStore keeps at most one confirmation session per user.
type SessionStore interface {
	// Create stores the session unless one already exists for the user.
	Create(ctx context.Context, session *domain.ConfirmationSession) (bool, error)
	Get(ctx context.Context, userID string) (*domain.ConfirmationSession, bool)
	Update(ctx context.Context, session *domain.ConfirmationSession) error
	Delete(ctx context.Context, userID string)
	// Sweep removes sessions created before the cutoff and returns them.
	Sweep(ctx context.Context, cutoff time.Time) []*domain.ConfirmationSession
	Len() int
}

// Alerter delivers operational notifications.
type Alerter interface {
	Alert(ctx context.Context, alert domain.Alert) error
}

// EventPublisher announces resolved reviews to downstream consumers.
type EventPublisher interface {
	PublishReviewResolved(ctx context.Context, event domain.ReviewResolved) error
}

// ResolutionMetrics records pipeline observations.
type ResolutionMetrics interface {
	RecordExtraction(confidence domain.Confidence, empty bool)
	RecordCascadeStrategy(strategy string, status string)
	RecordOutcome(kind domain.OutcomeKind, degraded bool)
	RecordSessionTransition(from, to string)
	SetActiveSessions(n int)
}
