package usecase

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/bookbot/internal/core/domain"
	"github.com/kirillkom/bookbot/internal/core/ports"
)

const augmentedSnippetRunes = 600

// RateLimitHook is called when an inference tier reports a rate-limit or
// quota condition. The pipeline itself keeps going with a degraded result.
type RateLimitHook func(ctx context.Context, tier string, err error)

type authorTier struct {
	name string
	run  func(ctx context.Context, text, title string) (domain.AuthorGuess, error)
}

type ExtractionPipeline struct {
	titles     ports.TitleExtractor
	authors    ports.AuthorExtractor
	escalation []authorTier
	onLimit    RateLimitHook
}

// NewExtractionPipeline builds the tiered extractor. strong and augmented are
// optional escalation tiers and are tried in that order.
func NewExtractionPipeline(
	titles ports.TitleExtractor,
	authors ports.AuthorExtractor,
	strong ports.AuthorExtractor,
	augmented ports.AugmentedAuthorExtractor,
	onLimit RateLimitHook,
) *ExtractionPipeline {
	p := &ExtractionPipeline{
		titles:  titles,
		authors: authors,
		onLimit: onLimit,
	}
	if strong != nil {
		p.escalation = append(p.escalation, authorTier{name: "author_strong", run: strong.ExtractAuthor})
	}
	if augmented != nil {
		p.escalation = append(p.escalation, authorTier{
			name: "author_augmented",
			run: func(ctx context.Context, text, title string) (domain.AuthorGuess, error) {
				return augmented.ExtractAuthorAugmented(ctx, title, snippet(text, augmentedSnippetRunes))
			},
		})
	}
	return p
}

// Extract never fails: tier errors degrade that tier to an empty low
// confidence answer.
func (p *ExtractionPipeline) Extract(ctx context.Context, text, hint string) domain.ExtractionResult {
	guess, err := p.titles.ExtractTitle(ctx, text, strings.TrimSpace(hint))
	if err != nil {
		p.tierFailed(ctx, "title", err)
		return domain.ExtractionResult{Confidence: domain.ConfidenceLow}
	}
	title := strings.TrimSpace(guess.Title)
	if title == "" || guess.Confidence == domain.ConfidenceLow {
		slog.Debug("extraction_title_rejected", "title", title, "confidence", guess.Confidence.String())
		return domain.ExtractionResult{Confidence: domain.ConfidenceLow}
	}

	author, err := p.authors.ExtractAuthor(ctx, text, title)
	if err != nil {
		p.tierFailed(ctx, "author", err)
		author = domain.AuthorGuess{Confidence: domain.ConfidenceLow}
	}
	author.Author = strings.TrimSpace(author.Author)

	if author.Empty() || author.Confidence != domain.ConfidenceHigh {
		author = p.escalate(ctx, text, title, author)
	}

	authorConfidence := author.Confidence
	if author.Empty() {
		authorConfidence = domain.ConfidenceLow
	}

	return domain.ExtractionResult{
		Title:          title,
		Author:         author.Author,
		Confidence:     domain.CombineConfidence(guess.Confidence, authorConfidence),
		TitleVariants:  cleanVariants(guess.Variants, title),
		AuthorVariants: cleanVariants(author.Variants, author.Author),
	}
}

func (p *ExtractionPipeline) escalate(ctx context.Context, text, title string, current domain.AuthorGuess) domain.AuthorGuess {
	for _, tier := range p.escalation {
		candidate, err := tier.run(ctx, text, title)
		if err != nil {
			p.tierFailed(ctx, tier.name, err)
			continue
		}
		candidate.Author = strings.TrimSpace(candidate.Author)
		if !replacesAuthor(current, candidate) {
			slog.Debug("extraction_escalation_kept_previous",
				"tier", tier.name,
				"previous_confidence", current.Confidence.String(),
				"escalated_confidence", candidate.Confidence.String(),
			)
			continue
		}
		current = candidate
		if current.Confidence == domain.ConfidenceHigh {
			break
		}
	}
	return current
}

// replacesAuthor keeps the current answer when the escalated one is empty or
// strictly less confident.
func replacesAuthor(current, escalated domain.AuthorGuess) bool {
	if escalated.Empty() {
		return false
	}
	if current.Empty() {
		return true
	}
	return escalated.Confidence >= current.Confidence
}

func (p *ExtractionPipeline) tierFailed(ctx context.Context, tier string, err error) {
	if domain.IsKind(err, domain.ErrRateLimited) {
		slog.Warn("extraction_tier_rate_limited", "tier", tier, "error", err)
		if p.onLimit != nil {
			p.onLimit(ctx, tier, err)
		}
		return
	}
	slog.Warn("extraction_tier_failed", "tier", tier, "error", err)
}

func cleanVariants(variants []string, primary string) []string {
	if len(variants) == 0 {
		return nil
	}
	seen := map[string]struct{}{strings.ToLower(primary): {}}
	out := make([]string, 0, len(variants))
	for _, v := range variants {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func snippet(text string, maxRunes int) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxRunes])
}
