package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/bookbot/internal/core/domain"
	"github.com/kirillkom/bookbot/internal/core/ports"
)

// Finalizer turns a chosen candidate into a stored catalog entry and attaches
// the pending review to it.
type Finalizer struct {
	catalog ports.CatalogRepository
	reviews ports.ReviewRepository
	events  ports.EventPublisher
	now     func() time.Time
}

func NewFinalizer(catalog ports.CatalogRepository, reviews ports.ReviewRepository, events ports.EventPublisher) *Finalizer {
	return &Finalizer{
		catalog: catalog,
		reviews: reviews,
		events:  events,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// EntryForCandidate returns the catalog entry a candidate stands for,
// creating it when needed. External candidates are looked up by external id
// first so the same work is never stored twice.
func (f *Finalizer) EntryForCandidate(ctx context.Context, candidate domain.BookCandidate) (*domain.CatalogEntry, error) {
	switch candidate.Source {
	case domain.SourceLocal:
		if candidate.Entry != nil {
			return candidate.Entry, nil
		}
		return nil, domain.WrapError(domain.ErrInvalidInput, "finalize local candidate", fmt.Errorf("candidate has no catalog entry"))
	case domain.SourceExternal:
		meta := candidate.Metadata
		if meta == nil {
			meta = &domain.BookMetadata{
				Title:      candidate.Title,
				Author:     candidate.Author,
				ExternalID: candidate.ExternalID,
				ISBN:       candidate.ISBN,
				CoverURL:   candidate.CoverURL,
			}
		}
		return f.createFromMetadata(ctx, *meta)
	default:
		return f.CreateManual(ctx, candidate.Title, candidate.Author)
	}
}

// CreateManual stores an entry exactly as the user typed it. Empty values are
// accepted.
func (f *Finalizer) CreateManual(ctx context.Context, title, author string) (*domain.CatalogEntry, error) {
	entry := &domain.CatalogEntry{
		Title:  strings.TrimSpace(title),
		Author: strings.TrimSpace(author),
		Genres: []string{},
	}
	return f.create(ctx, entry)
}

// Existing loads an entry stored earlier in the same dialog.
func (f *Finalizer) Existing(ctx context.Context, id string) (*domain.CatalogEntry, error) {
	entry, err := f.catalog.GetByID(ctx, id)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrPersistence, "get catalog entry", err)
	}
	return entry, nil
}

func (f *Finalizer) createFromMetadata(ctx context.Context, meta domain.BookMetadata) (*domain.CatalogEntry, error) {
	if meta.ExternalID != "" {
		existing, err := f.catalog.GetByExternalID(ctx, meta.ExternalID)
		switch {
		case err == nil:
			return existing, nil
		case !domain.IsKind(err, domain.ErrNotFound):
			return nil, domain.WrapError(domain.ErrPersistence, "lookup catalog by external id", err)
		}
	}
	entry := domain.EntryFromMetadata(meta)
	return f.create(ctx, &entry)
}

func (f *Finalizer) create(ctx context.Context, entry *domain.CatalogEntry) (*domain.CatalogEntry, error) {
	entry.ID = uuid.NewString()
	entry.CreatedAt = f.now()
	stored, err := f.catalog.Create(ctx, entry)
	if err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, "create catalog entry", err)
	}
	slog.Info("catalog_entry_created", "book_id", stored.ID, "title", stored.Title, "external_id", stored.ExternalID)
	return stored, nil
}

// Attach saves the review against entry and announces it. A failed
// announcement is logged, the review stays saved.
func (f *Finalizer) Attach(ctx context.Context, review domain.Review, entry *domain.CatalogEntry, degraded bool) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = f.now()
	}
	review.BookID = entry.ID
	if err := f.reviews.Save(ctx, &review); err != nil {
		return domain.WrapError(domain.ErrPersistence, "save review", err)
	}

	if f.events == nil {
		return nil
	}
	event := domain.ReviewResolved{
		ReviewID: review.ID,
		UserID:   review.UserID,
		BookID:   entry.ID,
		Title:    entry.Title,
		Author:   entry.Author,
		Degraded: degraded,
		At:       f.now(),
	}
	if err := f.events.PublishReviewResolved(ctx, event); err != nil {
		slog.Warn("review_event_publish_failed", "review_id", review.ID, "error", err)
	}
	return nil
}
