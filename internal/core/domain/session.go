package domain

import "time"

type SessionState string

const (
	StateShowingOptions SessionState = "showing_options"
	StateAwaitingISBN   SessionState = "awaiting_isbn"
	StateAwaitingTitle  SessionState = "awaiting_title"
	StateAwaitingAuthor SessionState = "awaiting_author"
)

// SessionTemp carries partial manual input between states.
type SessionTemp struct {
	EnteredTitle string `json:"entered_title,omitempty"`
	// CreatedBookID is the entry already stored for CreatedFor, reused when
	// attaching the review has to be retried.
	CreatedBookID string `json:"created_book_id,omitempty"`
	CreatedFor    string `json:"created_for,omitempty"`
}

// ConfirmationSession is the per-user disambiguation state for one review.
// At most one session exists per user.
type ConfirmationSession struct {
	ID         string           `json:"id"`
	UserID     string           `json:"user_id"`
	State      SessionState     `json:"state"`
	Pending    Review           `json:"pending"`
	Extraction ExtractionResult `json:"extraction"`
	Candidates []BookCandidate  `json:"candidates"`
	Temp       SessionTemp      `json:"temp"`
	CreatedAt  time.Time        `json:"created_at"`
}

func (s *ConfirmationSession) Expired(now time.Time, ttl time.Duration) bool {
	if s == nil || ttl <= 0 {
		return false
	}
	return now.Sub(s.CreatedAt) > ttl
}

// Clone returns a copy safe to hand outside the store lock.
func (s *ConfirmationSession) Clone() *ConfirmationSession {
	if s == nil {
		return nil
	}
	out := *s
	out.Candidates = append([]BookCandidate(nil), s.Candidates...)
	return &out
}
