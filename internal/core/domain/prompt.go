package domain

// PromptKind names an abstract event the core asks the chat transport to
// render. Transports decide how (buttons, plain text, JSON).
type PromptKind string

const (
	PromptPresentOptions PromptKind = "present_options"
	PromptAskISBN        PromptKind = "prompt_isbn"
	PromptAskTitle       PromptKind = "prompt_title"
	PromptAskAuthor      PromptKind = "prompt_author"
	PromptError          PromptKind = "report_error"
	PromptFinalized      PromptKind = "finalize"
	PromptExpired        PromptKind = "session_expired"
	PromptCancelled      PromptKind = "cancelled"
	PromptBusy           PromptKind = "session_active"
)

type Prompt struct {
	Kind       PromptKind      `json:"kind"`
	UserID     string          `json:"user_id"`
	ChatID     int64           `json:"chat_id,omitempty"`
	Message    string          `json:"message,omitempty"`
	Candidates []BookCandidate `json:"candidates,omitempty"`
	Entry      *CatalogEntry   `json:"entry,omitempty"`
	// Retryable marks errors the user can fix by sending input again.
	Retryable bool `json:"retryable,omitempty"`
}

type OutcomeKind string

const (
	OutcomeAutoResolved      OutcomeKind = "auto_resolved"
	OutcomeNeedsConfirmation OutcomeKind = "needs_confirmation"
	OutcomeFailed            OutcomeKind = "failed"
)

// Outcome is the result of resolving one review.
type Outcome struct {
	Kind       OutcomeKind          `json:"kind"`
	Entry      *CatalogEntry        `json:"entry,omitempty"`
	Session    *ConfirmationSession `json:"session,omitempty"`
	Extraction ExtractionResult     `json:"extraction"`
	// Degraded is set when the entry was created from extracted text only
	// because the provider was throttling.
	Degraded bool   `json:"degraded,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Prompt converts an outcome into the first transport event for the user.
func (o Outcome) Prompt(userID string) Prompt {
	switch o.Kind {
	case OutcomeAutoResolved:
		return Prompt{Kind: PromptFinalized, UserID: userID, Entry: o.Entry}
	case OutcomeNeedsConfirmation:
		if o.Session != nil && o.Session.State == StateShowingOptions {
			return Prompt{
				Kind:       PromptPresentOptions,
				UserID:     userID,
				ChatID:     o.Session.Pending.ChatID,
				Candidates: o.Session.Candidates,
			}
		}
		p := Prompt{Kind: PromptAskTitle, UserID: userID}
		if o.Session != nil {
			p.ChatID = o.Session.Pending.ChatID
		}
		return p
	default:
		return Prompt{Kind: PromptError, UserID: userID, Message: o.Reason}
	}
}
