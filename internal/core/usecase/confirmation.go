package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/bookbot/internal/core/domain"
	"github.com/kirillkom/bookbot/internal/core/ports"
)

const DefaultSessionExpiry = 15 * time.Minute

const (
	msgSessionExpired = "This confirmation has expired. Please send your review again."
	msgSessionActive  = "You already have a book waiting for confirmation. Finish or cancel it first."
	msgBadSelection   = "Reply with the number of one of the options, or use the buttons."
	msgInvalidISBN    = "That does not look like a valid ISBN-10 or ISBN-13. Please check it and try again."
	msgISBNNotFound   = "No book found for that ISBN. Try another one or enter the book manually."
	msgISBNLookupFail = "The ISBN lookup failed. Please try again."
	msgTryLater       = "The book search service is busy right now. Please try again in a minute."
	msgSaveFailed     = "Could not save the book right now. Please try again."
	msgWrongState     = "That action is not available at this step."
)

// ConfirmationService drives the per-user disambiguation dialog. Events for
// one user are applied strictly one at a time.
type ConfirmationService struct {
	sessions  ports.SessionStore
	provider  ports.BookProvider
	finalizer *Finalizer
	metrics   ports.ResolutionMetrics
	expiry    time.Duration
	locks     *keyedMutex
	now       func() time.Time
}

func NewConfirmationService(
	sessions ports.SessionStore,
	provider ports.BookProvider,
	finalizer *Finalizer,
	metrics ports.ResolutionMetrics,
	expiry time.Duration,
) *ConfirmationService {
	if expiry <= 0 {
		expiry = DefaultSessionExpiry
	}
	return &ConfirmationService{
		sessions:  sessions,
		provider:  provider,
		finalizer: finalizer,
		metrics:   metrics,
		expiry:    expiry,
		locks:     newKeyedMutex(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start opens a session for the review. Without candidates the user goes
// straight to manual title entry. An open session is never replaced.
func (s *ConfirmationService) Start(
	ctx context.Context,
	review domain.Review,
	extraction domain.ExtractionResult,
	candidates []domain.BookCandidate,
) (*domain.ConfirmationSession, error) {
	unlock := s.locks.Lock(review.UserID)
	defer unlock()

	if _, err := s.load(ctx, review.UserID); err == nil {
		return nil, domain.WrapError(domain.ErrSessionActive, "start confirmation", fmt.Errorf("user %s", review.UserID))
	}

	state := domain.StateAwaitingTitle
	if len(candidates) > 0 {
		state = domain.StateShowingOptions
	}
	session := &domain.ConfirmationSession{
		ID:         uuid.NewString(),
		UserID:     review.UserID,
		State:      state,
		Pending:    review,
		Extraction: extraction,
		Candidates: candidates,
		CreatedAt:  s.now(),
	}
	created, err := s.sessions.Create(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	if !created {
		return nil, domain.WrapError(domain.ErrSessionActive, "start confirmation", fmt.Errorf("user %s", review.UserID))
	}
	s.transition("none", string(state))
	slog.Info("session_started", "user_id", review.UserID, "session_id", session.ID, "state", string(state), "candidates", len(candidates))
	return session.Clone(), nil
}

// Active returns the live session for the user. Expired sessions are evicted
// on access and reported as absent.
func (s *ConfirmationService) Active(ctx context.Context, userID string) (*domain.ConfirmationSession, bool) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	session, err := s.load(ctx, userID)
	if err != nil {
		return nil, false
	}
	return session.Clone(), true
}

func (s *ConfirmationService) SelectCandidate(ctx context.Context, userID string, index int) (domain.Prompt, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	session, err := s.load(ctx, userID)
	if err != nil {
		return expiredPrompt(userID), nil
	}
	return s.selectLocked(ctx, session, index)
}

func (s *ConfirmationService) RequestISBN(ctx context.Context, userID string) (domain.Prompt, error) {
	return s.move(ctx, userID, domain.StateAwaitingISBN, domain.PromptAskISBN,
		domain.StateShowingOptions, domain.StateAwaitingTitle)
}

func (s *ConfirmationService) RequestManual(ctx context.Context, userID string) (domain.Prompt, error) {
	return s.move(ctx, userID, domain.StateAwaitingTitle, domain.PromptAskTitle,
		domain.StateShowingOptions, domain.StateAwaitingISBN)
}

// Cancel drops the session without creating anything.
func (s *ConfirmationService) Cancel(ctx context.Context, userID string) (domain.Prompt, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	session, err := s.load(ctx, userID)
	if err != nil {
		return expiredPrompt(userID), nil
	}
	s.close(ctx, session, "cancelled")
	return domain.Prompt{Kind: domain.PromptCancelled, UserID: userID, ChatID: session.Pending.ChatID}, nil
}

// HandleText applies free text to whatever the session is waiting for.
func (s *ConfirmationService) HandleText(ctx context.Context, userID, text string) (domain.Prompt, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	session, err := s.load(ctx, userID)
	if err != nil {
		return expiredPrompt(userID), nil
	}

	switch session.State {
	case domain.StateShowingOptions:
		n, convErr := strconv.Atoi(strings.TrimSpace(text))
		if convErr != nil {
			return retryPrompt(session, msgBadSelection), nil
		}
		return s.selectLocked(ctx, session, n-1)
	case domain.StateAwaitingISBN:
		return s.handleISBN(ctx, session, text)
	case domain.StateAwaitingTitle:
		session.Temp.EnteredTitle = strings.TrimSpace(text)
		if err := s.update(ctx, session, domain.StateAwaitingAuthor); err != nil {
			return s.saveFailed(ctx, session, err)
		}
		return domain.Prompt{Kind: domain.PromptAskAuthor, UserID: userID, ChatID: session.Pending.ChatID}, nil
	case domain.StateAwaitingAuthor:
		entry, err := s.manualEntry(ctx, session, session.Temp.EnteredTitle, text)
		if err != nil {
			return s.saveFailed(ctx, session, err)
		}
		return s.finish(ctx, session, entry)
	default:
		return retryPrompt(session, msgWrongState), nil
	}
}

// Sweep evicts sessions older than the expiry window.
func (s *ConfirmationService) Sweep(ctx context.Context, now time.Time) int {
	removed := s.sessions.Sweep(ctx, now.Add(-s.expiry))
	for _, session := range removed {
		s.transition(string(session.State), "expired")
		slog.Info("session_expired", "user_id", session.UserID, "session_id", session.ID, "state", string(session.State))
	}
	if s.metrics != nil {
		s.metrics.SetActiveSessions(s.sessions.Len())
	}
	return len(removed)
}

func (s *ConfirmationService) selectLocked(ctx context.Context, session *domain.ConfirmationSession, index int) (domain.Prompt, error) {
	if session.State != domain.StateShowingOptions {
		return retryPrompt(session, msgWrongState), nil
	}
	if index < 0 || index >= len(session.Candidates) {
		return retryPrompt(session, msgBadSelection), nil
	}
	var (
		candidate = session.Candidates[index]
		entry     *domain.CatalogEntry
		err       error
	)
	switch candidate.Source {
	case domain.SourceLocal, domain.SourceExternal:
		entry, err = s.finalizer.EntryForCandidate(ctx, candidate)
	default:
		entry, err = s.manualEntry(ctx, session, candidate.Title, candidate.Author)
	}
	if err != nil {
		return s.saveFailed(ctx, session, err)
	}
	return s.finish(ctx, session, entry)
}

// manualEntry stores an entry from typed or extracted text once per session.
// A retry after a failed attach finds the entry created the first time.
func (s *ConfirmationService) manualEntry(ctx context.Context, session *domain.ConfirmationSession, title, author string) (*domain.CatalogEntry, error) {
	key := strings.TrimSpace(title) + "\x00" + strings.TrimSpace(author)
	if session.Temp.CreatedBookID != "" && session.Temp.CreatedFor == key {
		entry, err := s.finalizer.Existing(ctx, session.Temp.CreatedBookID)
		if err == nil {
			return entry, nil
		}
		if !domain.IsKind(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	entry, err := s.finalizer.CreateManual(ctx, title, author)
	if err != nil {
		return nil, err
	}
	session.Temp.CreatedBookID = entry.ID
	session.Temp.CreatedFor = key
	if err := s.sessions.Update(ctx, session); err != nil {
		slog.Warn("session_update_failed", "user_id", session.UserID, "session_id", session.ID, "error", err)
	}
	return entry, nil
}

func (s *ConfirmationService) handleISBN(ctx context.Context, session *domain.ConfirmationSession, text string) (domain.Prompt, error) {
	if !domain.ValidateISBN(text) {
		return retryPrompt(session, msgInvalidISBN), nil
	}
	meta, err := s.provider.SearchByISBN(ctx, domain.NormalizeISBN(text))
	switch {
	case domain.IsKind(err, domain.ErrRateLimited):
		return retryPrompt(session, msgTryLater), nil
	case err != nil:
		slog.Warn("isbn_lookup_failed", "user_id", session.UserID, "error", err)
		return retryPrompt(session, msgISBNLookupFail), nil
	case meta == nil:
		return retryPrompt(session, msgISBNNotFound), nil
	}

	session.Candidates = []domain.BookCandidate{domain.CandidateFromMetadata(*meta)}
	if err := s.update(ctx, session, domain.StateShowingOptions); err != nil {
		return s.saveFailed(ctx, session, err)
	}
	return domain.Prompt{
		Kind:       domain.PromptPresentOptions,
		UserID:     session.UserID,
		ChatID:     session.Pending.ChatID,
		Candidates: session.Candidates,
	}, nil
}

func (s *ConfirmationService) move(
	ctx context.Context,
	userID string,
	to domain.SessionState,
	kind domain.PromptKind,
	from ...domain.SessionState,
) (domain.Prompt, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	session, err := s.load(ctx, userID)
	if err != nil {
		return expiredPrompt(userID), nil
	}
	allowed := session.State == to
	for _, state := range from {
		if session.State == state {
			allowed = true
		}
	}
	if !allowed {
		return retryPrompt(session, msgWrongState), nil
	}
	if err := s.update(ctx, session, to); err != nil {
		return s.saveFailed(ctx, session, err)
	}
	return domain.Prompt{Kind: kind, UserID: userID, ChatID: session.Pending.ChatID}, nil
}

// finish attaches the review and drops the session. On a persistence error
// the session stays open so the user can retry.
func (s *ConfirmationService) finish(ctx context.Context, session *domain.ConfirmationSession, entry *domain.CatalogEntry) (domain.Prompt, error) {
	if err := s.finalizer.Attach(ctx, session.Pending, entry, false); err != nil {
		return s.saveFailed(ctx, session, err)
	}
	s.close(ctx, session, "finalized")
	return domain.Prompt{
		Kind:   domain.PromptFinalized,
		UserID: session.UserID,
		ChatID: session.Pending.ChatID,
		Entry:  entry,
	}, nil
}

// saveFailed reports a failed write. The sweep does not take user locks, so
// a session can vanish under a running handler; that reads as expiry.
func (s *ConfirmationService) saveFailed(ctx context.Context, session *domain.ConfirmationSession, err error) (domain.Prompt, error) {
	if _, ok := s.sessions.Get(ctx, session.UserID); !ok {
		slog.Info("session_vanished", "user_id", session.UserID, "session_id", session.ID, "error", err)
		return expiredPrompt(session.UserID), nil
	}
	return retryPrompt(session, msgSaveFailed), err
}

// load must be called with the user lock held.
func (s *ConfirmationService) load(ctx context.Context, userID string) (*domain.ConfirmationSession, error) {
	session, ok := s.sessions.Get(ctx, userID)
	if !ok {
		return nil, domain.ErrSessionExpired
	}
	if session.Expired(s.now(), s.expiry) {
		s.close(ctx, session, "expired")
		return nil, domain.ErrSessionExpired
	}
	return session, nil
}

func (s *ConfirmationService) update(ctx context.Context, session *domain.ConfirmationSession, to domain.SessionState) error {
	from := session.State
	session.State = to
	if err := s.sessions.Update(ctx, session); err != nil {
		session.State = from
		return fmt.Errorf("update session: %w", err)
	}
	s.transition(string(from), string(to))
	return nil
}

func (s *ConfirmationService) close(ctx context.Context, session *domain.ConfirmationSession, reason string) {
	s.sessions.Delete(ctx, session.UserID)
	s.transition(string(session.State), reason)
	slog.Info("session_closed", "user_id", session.UserID, "session_id", session.ID, "reason", reason)
}

func (s *ConfirmationService) transition(from, to string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordSessionTransition(from, to)
	s.metrics.SetActiveSessions(s.sessions.Len())
}

func expiredPrompt(userID string) domain.Prompt {
	return domain.Prompt{Kind: domain.PromptExpired, UserID: userID, Message: msgSessionExpired}
}

func retryPrompt(session *domain.ConfirmationSession, message string) domain.Prompt {
	return domain.Prompt{
		Kind:      domain.PromptError,
		UserID:    session.UserID,
		ChatID:    session.Pending.ChatID,
		Message:   message,
		Retryable: true,
	}
}

// keyedMutex serializes work per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.mu.Lock()
	return func() {
		m.mu.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
