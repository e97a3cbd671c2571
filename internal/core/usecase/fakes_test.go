package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kirillkom/bookbot/internal/core/domain"
)

type titleFake struct {
	guess domain.TitleGuess
	err   error
	hint  string
	calls int
}

func (f *titleFake) ExtractTitle(_ context.Context, _ string, hint string) (domain.TitleGuess, error) {
	f.calls++
	f.hint = hint
	return f.guess, f.err
}

type authorFake struct {
	guess domain.AuthorGuess
	err   error
	title string
	calls int
}

func (f *authorFake) ExtractAuthor(_ context.Context, _ string, title string) (domain.AuthorGuess, error) {
	f.calls++
	f.title = title
	return f.guess, f.err
}

type augmentedFake struct {
	guess   domain.AuthorGuess
	err     error
	snippet string
	calls   int
}

func (f *augmentedFake) ExtractAuthorAugmented(_ context.Context, _ string, snippet string) (domain.AuthorGuess, error) {
	f.calls++
	f.snippet = snippet
	return f.guess, f.err
}

// providerFake answers queries by SearchQuery.Key and records every call.
type providerFake struct {
	mu       sync.Mutex
	byKey    map[string][]domain.BookMetadata
	errByKey map[string]error
	byISBN   map[string]*domain.BookMetadata
	isbnErr  error
	onISBN   func()
	queries  []domain.SearchQuery
	isbns    []string
}

func newProviderFake() *providerFake {
	return &providerFake{
		byKey:    map[string][]domain.BookMetadata{},
		errByKey: map[string]error{},
		byISBN:   map[string]*domain.BookMetadata{},
	}
}

func (f *providerFake) SearchByQuery(_ context.Context, q domain.SearchQuery) ([]domain.BookMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if err := f.errByKey[q.Key()]; err != nil {
		return nil, err
	}
	return f.byKey[q.Key()], nil
}

func (f *providerFake) SearchByISBN(_ context.Context, isbn string) (*domain.BookMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.isbns = append(f.isbns, isbn)
	if f.onISBN != nil {
		f.onISBN()
	}
	if f.isbnErr != nil {
		return nil, f.isbnErr
	}
	return f.byISBN[isbn], nil
}

func (f *providerFake) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

type catalogFake struct {
	mu        sync.Mutex
	entries   []domain.CatalogEntry
	listErr   error
	createErr error
}

func (f *catalogFake) List(context.Context) ([]domain.CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.CatalogEntry(nil), f.entries...), nil
}

func (f *catalogFake) GetByID(_ context.Context, id string) (*domain.CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.entries {
		if f.entries[i].ID == id {
			entry := f.entries[i]
			return &entry, nil
		}
	}
	return nil, domain.WrapError(domain.ErrNotFound, "get book", fmt.Errorf("id %s", id))
}

func (f *catalogFake) GetByExternalID(_ context.Context, externalID string) (*domain.CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.entries {
		if f.entries[i].ExternalID == externalID {
			entry := f.entries[i]
			return &entry, nil
		}
	}
	return nil, domain.WrapError(domain.ErrNotFound, "get book", fmt.Errorf("external id %s", externalID))
}

func (f *catalogFake) Create(_ context.Context, entry *domain.CatalogEntry) (*domain.CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if entry.ExternalID != "" {
		for i := range f.entries {
			if f.entries[i].ExternalID == entry.ExternalID {
				existing := f.entries[i]
				return &existing, nil
			}
		}
	}
	f.entries = append(f.entries, *entry)
	stored := *entry
	return &stored, nil
}

type reviewsFake struct {
	mu    sync.Mutex
	saved []domain.Review
	err   error
}

func (f *reviewsFake) Save(_ context.Context, review *domain.Review) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, *review)
	return nil
}

type eventsFake struct {
	mu     sync.Mutex
	events []domain.ReviewResolved
	err    error
}

func (f *eventsFake) PublishReviewResolved(_ context.Context, event domain.ReviewResolved) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

type sessionStoreFake struct {
	mu       sync.Mutex
	sessions map[string]*domain.ConfirmationSession
	creates  int
}

func newSessionStoreFake() *sessionStoreFake {
	return &sessionStoreFake{sessions: map[string]*domain.ConfirmationSession{}}
}

func (f *sessionStoreFake) Create(_ context.Context, s *domain.ConfirmationSession) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[s.UserID]; ok {
		return false, nil
	}
	f.creates++
	f.sessions[s.UserID] = s.Clone()
	return true, nil
}

func (f *sessionStoreFake) Get(_ context.Context, userID string) (*domain.ConfirmationSession, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[userID]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

func (f *sessionStoreFake) Update(_ context.Context, s *domain.ConfirmationSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[s.UserID]; !ok {
		return errors.New("missing session")
	}
	f.sessions[s.UserID] = s.Clone()
	return nil
}

func (f *sessionStoreFake) Delete(_ context.Context, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, userID)
}

func (f *sessionStoreFake) Sweep(_ context.Context, cutoff time.Time) []*domain.ConfirmationSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed []*domain.ConfirmationSession
	for userID, s := range f.sessions {
		if s.CreatedAt.Before(cutoff) {
			removed = append(removed, s)
			delete(f.sessions, userID)
		}
	}
	return removed
}

func (f *sessionStoreFake) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

type metricsFake struct {
	mu          sync.Mutex
	strategies  []string
	outcomes    []domain.OutcomeKind
	transitions []string
	active      int
}

func (f *metricsFake) RecordExtraction(domain.Confidence, bool) {}

func (f *metricsFake) RecordCascadeStrategy(strategy, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.strategies = append(f.strategies, strategy+":"+status)
}

func (f *metricsFake) RecordOutcome(kind domain.OutcomeKind, _ bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, kind)
}

func (f *metricsFake) RecordSessionTransition(from, to string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, from+"->"+to)
}

func (f *metricsFake) SetActiveSessions(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = n
}

func rateLimitedErr() error {
	return domain.WrapError(domain.ErrRateLimited, "provider search", errors.New("429 Too Many Requests"))
}
