package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/bookbot/internal/core/domain"
	"github.com/kirillkom/bookbot/internal/core/ports"
	"github.com/kirillkom/bookbot/internal/core/similarity"
)

const DefaultMaxCandidates = 5

type ResolverSettings struct {
	Thresholds    similarity.Thresholds
	MaxCandidates int
}

// BookIdentityResolver runs extraction, local dedup and the provider cascade
// for one review and either stores the result or opens a confirmation.
type BookIdentityResolver struct {
	extraction *ExtractionPipeline
	dedup      *CatalogDeduplicator
	cascade    *SearchCascade
	confirm    *ConfirmationService
	finalizer  *Finalizer
	provider   ports.BookProvider
	metrics    ports.ResolutionMetrics
	settings   ResolverSettings
}

func NewBookIdentityResolver(
	extraction *ExtractionPipeline,
	dedup *CatalogDeduplicator,
	cascade *SearchCascade,
	confirm *ConfirmationService,
	finalizer *Finalizer,
	provider ports.BookProvider,
	metrics ports.ResolutionMetrics,
	settings ResolverSettings,
) *BookIdentityResolver {
	def := similarity.DefaultThresholds()
	if settings.Thresholds.Title <= 0 {
		settings.Thresholds.Title = def.Title
	}
	if settings.Thresholds.Author <= 0 {
		settings.Thresholds.Author = def.Author
	}
	if settings.MaxCandidates <= 0 {
		settings.MaxCandidates = DefaultMaxCandidates
	}
	return &BookIdentityResolver{
		extraction: extraction,
		dedup:      dedup,
		cascade:    cascade,
		confirm:    confirm,
		finalizer:  finalizer,
		provider:   provider,
		metrics:    metrics,
		settings:   settings,
	}
}

func (r *BookIdentityResolver) Resolve(ctx context.Context, review domain.Review) (domain.Outcome, error) {
	review.UserID = strings.TrimSpace(review.UserID)
	if review.UserID == "" {
		return domain.Outcome{Kind: domain.OutcomeFailed, Reason: "user id is required"},
			domain.WrapError(domain.ErrInvalidInput, "resolve review", fmt.Errorf("empty user id"))
	}
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	if _, ok := r.confirm.Active(ctx, review.UserID); ok {
		return domain.Outcome{Kind: domain.OutcomeFailed, Reason: msgSessionActive},
			domain.WrapError(domain.ErrSessionActive, "resolve review", fmt.Errorf("user %s", review.UserID))
	}

	ext := r.extraction.Extract(ctx, review.Text, review.Hint)
	if r.metrics != nil {
		r.metrics.RecordExtraction(ext.Confidence, ext.Empty())
	}
	if ext.Empty() {
		slog.Info("resolve_manual_only", "review_id", review.ID, "user_id", review.UserID)
		return r.needsConfirmation(ctx, review, ext, nil)
	}

	local, score, err := r.dedup.FindMatch(ctx, ext.Title, ext.Author)
	if err != nil {
		slog.Warn("local_dedup_failed", "review_id", review.ID, "error", err)
		local = nil
	}
	if local != nil && ext.Confidence == domain.ConfidenceHigh {
		slog.Info("resolve_local_hit", "review_id", review.ID, "book_id", local.ID,
			"title_score", score.Title, "author_score", score.Author)
		outcome, err := r.autoResolve(ctx, review, ext, local, false)
		if err == nil {
			return outcome, nil
		}
		slog.Warn("auto_resolve_failed", "review_id", review.ID, "error", err)
		return r.needsConfirmation(ctx, review, ext, []domain.BookCandidate{domain.CandidateFromEntry(*local, score)})
	}

	results, err := r.cascade.Search(ctx, ext.Title, ext.Author, ext.TitleVariants, ext.AuthorVariants)
	if err != nil {
		if domain.IsKind(err, domain.ErrRateLimited) {
			return r.degraded(ctx, review, ext, local, score)
		}
		slog.Warn("cascade_failed", "review_id", review.ID, "error", err)
		results = nil
	}

	candidates := r.assembleCandidates(local, score, results)
	if ext.Confidence == domain.ConfidenceHigh {
		if pick, ok := r.singlePlausible(ext, candidates); ok {
			entry, err := r.finalizer.EntryForCandidate(ctx, pick)
			if err == nil {
				outcome, attachErr := r.autoResolve(ctx, review, ext, entry, false)
				if attachErr == nil {
					return outcome, nil
				}
				err = attachErr
			}
			slog.Warn("auto_resolve_failed", "review_id", review.ID, "error", err)
		}
	}

	if len(candidates) == 0 {
		candidates = []domain.BookCandidate{domain.CandidateFromExtraction(ext)}
	}
	return r.needsConfirmation(ctx, review, ext, candidates)
}

// LookupISBN validates and fetches a single record by ISBN.
func (r *BookIdentityResolver) LookupISBN(ctx context.Context, isbn string) (*domain.BookMetadata, error) {
	if !domain.ValidateISBN(isbn) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "lookup isbn", fmt.Errorf("invalid isbn %q", isbn))
	}
	meta, err := r.provider.SearchByISBN(ctx, domain.NormalizeISBN(isbn))
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, domain.WrapError(domain.ErrProviderMiss, "lookup isbn", fmt.Errorf("isbn %s", isbn))
	}
	return meta, nil
}

// degraded keeps the review when the provider is throttling: it goes to the
// local match if any, otherwise to a new entry built from extracted text.
func (r *BookIdentityResolver) degraded(
	ctx context.Context,
	review domain.Review,
	ext domain.ExtractionResult,
	local *domain.CatalogEntry,
	score domain.SimilarityScore,
) (domain.Outcome, error) {
	entry := local
	if entry == nil {
		created, err := r.finalizer.CreateManual(ctx, ext.Title, ext.Author)
		if err != nil {
			slog.Error("degraded_create_failed", "review_id", review.ID, "error", err)
			return r.needsConfirmation(ctx, review, ext, []domain.BookCandidate{domain.CandidateFromExtraction(ext)})
		}
		entry = created
	}
	slog.Warn("resolve_degraded", "review_id", review.ID, "book_id", entry.ID, "title", entry.Title)
	outcome, err := r.autoResolve(ctx, review, ext, entry, true)
	if err != nil {
		slog.Error("degraded_attach_failed", "review_id", review.ID, "error", err)
		candidate := domain.CandidateFromEntry(*entry, score)
		return r.needsConfirmation(ctx, review, ext, []domain.BookCandidate{candidate})
	}
	return outcome, nil
}

func (r *BookIdentityResolver) autoResolve(
	ctx context.Context,
	review domain.Review,
	ext domain.ExtractionResult,
	entry *domain.CatalogEntry,
	degraded bool,
) (domain.Outcome, error) {
	if err := r.finalizer.Attach(ctx, review, entry, degraded); err != nil {
		return domain.Outcome{}, err
	}
	r.recordOutcome(domain.OutcomeAutoResolved, degraded)
	return domain.Outcome{
		Kind:       domain.OutcomeAutoResolved,
		Entry:      entry,
		Extraction: ext,
		Degraded:   degraded,
	}, nil
}

func (r *BookIdentityResolver) needsConfirmation(
	ctx context.Context,
	review domain.Review,
	ext domain.ExtractionResult,
	candidates []domain.BookCandidate,
) (domain.Outcome, error) {
	session, err := r.confirm.Start(ctx, review, ext, candidates)
	if err != nil {
		r.recordOutcome(domain.OutcomeFailed, false)
		reason := "could not open confirmation"
		if domain.IsKind(err, domain.ErrSessionActive) {
			reason = msgSessionActive
		}
		return domain.Outcome{Kind: domain.OutcomeFailed, Extraction: ext, Reason: reason}, err
	}
	r.recordOutcome(domain.OutcomeNeedsConfirmation, false)
	return domain.Outcome{
		Kind:       domain.OutcomeNeedsConfirmation,
		Session:    session,
		Extraction: ext,
	}, nil
}

// assembleCandidates puts the local match first, then provider results in
// relevance order, skipping repeated external ids.
func (r *BookIdentityResolver) assembleCandidates(
	local *domain.CatalogEntry,
	score domain.SimilarityScore,
	results []domain.BookMetadata,
) []domain.BookCandidate {
	candidates := make([]domain.BookCandidate, 0, r.settings.MaxCandidates)
	seen := make(map[string]struct{})
	if local != nil {
		candidates = append(candidates, domain.CandidateFromEntry(*local, score))
		if local.ExternalID != "" {
			seen[local.ExternalID] = struct{}{}
		}
	}
	for _, meta := range results {
		if len(candidates) >= r.settings.MaxCandidates {
			break
		}
		if meta.ExternalID != "" {
			if _, ok := seen[meta.ExternalID]; ok {
				continue
			}
			seen[meta.ExternalID] = struct{}{}
		}
		candidates = append(candidates, domain.CandidateFromMetadata(meta))
	}
	return candidates
}

// singlePlausible returns the one candidate that clears the similarity
// thresholds. Editions sharing the same normalized title and author count as
// one work. Two or more distinct works mean the choice is ambiguous.
func (r *BookIdentityResolver) singlePlausible(ext domain.ExtractionResult, candidates []domain.BookCandidate) (domain.BookCandidate, bool) {
	var (
		pick  domain.BookCandidate
		works = make(map[string]struct{})
	)
	for _, c := range candidates {
		ok, _, _ := r.settings.Thresholds.Match(ext.Title, ext.Author, c.Title, c.Author)
		if !ok {
			continue
		}
		key := similarity.Normalize(c.Title) + "|" + similarity.Normalize(c.Author)
		if len(works) == 0 {
			pick = c
		}
		works[key] = struct{}{}
	}
	return pick, len(works) == 1
}

func (r *BookIdentityResolver) recordOutcome(kind domain.OutcomeKind, degraded bool) {
	if r.metrics != nil {
		r.metrics.RecordOutcome(kind, degraded)
	}
}
