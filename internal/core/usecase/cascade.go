package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kirillkom/bookbot/internal/core/domain"
	"github.com/kirillkom/bookbot/internal/core/ports"
)

const (
	strategyExact         = "title_author"
	strategyTitle         = "title_only"
	strategyVariantAuthor = "title_variant_author"
	strategyVariant       = "title_variant"
	strategyAuthorVariant = "title_author_variant"
	strategyLoose         = "loose"
)

type cascadeStrategy struct {
	name  string
	query domain.SearchQuery
}

// SearchCascade queries the bibliographic provider with progressively looser
// strategies and stops at the first non-empty answer.
type SearchCascade struct {
	provider ports.BookProvider
	metrics  ports.ResolutionMetrics
}

func NewSearchCascade(provider ports.BookProvider, metrics ports.ResolutionMetrics) *SearchCascade {
	return &SearchCascade{provider: provider, metrics: metrics}
}

// Search returns the provider results of the first strategy that found
// anything, in provider relevance order. A nil slice with a nil error means
// every strategy came back empty. Only domain.ErrRateLimited is returned as
// an error and it stops the cascade.
func (c *SearchCascade) Search(ctx context.Context, title, author string, titleVariants, authorVariants []string) ([]domain.BookMetadata, error) {
	tried := make(map[string]struct{})
	for _, strategy := range buildStrategies(title, author, titleVariants, authorVariants) {
		key := strategy.query.Key()
		if _, ok := tried[key]; ok {
			continue
		}
		tried[key] = struct{}{}

		results, err := c.provider.SearchByQuery(ctx, strategy.query)
		if err != nil {
			if domain.IsKind(err, domain.ErrRateLimited) {
				c.record(strategy.name, "rate_limited")
				slog.Warn("cascade_aborted_rate_limited", "strategy", strategy.name, "error", err)
				return nil, err
			}
			c.record(strategy.name, "error")
			slog.Warn("cascade_strategy_failed", "strategy", strategy.name, "error", err)
			continue
		}
		if len(results) == 0 {
			c.record(strategy.name, "miss")
			continue
		}
		c.record(strategy.name, "hit")
		slog.Info("cascade_strategy_hit", "strategy", strategy.name, "results", len(results))
		return results, nil
	}
	return nil, nil
}

// First is Search narrowed to the single most relevant record.
func (c *SearchCascade) First(ctx context.Context, title, author string, titleVariants, authorVariants []string) (*domain.BookMetadata, error) {
	results, err := c.Search(ctx, title, author, titleVariants, authorVariants)
	if err != nil || len(results) == 0 {
		return nil, err
	}
	return &results[0], nil
}

func (c *SearchCascade) record(strategy, status string) {
	if c.metrics != nil {
		c.metrics.RecordCascadeStrategy(strategy, status)
	}
}

func buildStrategies(title, author string, titleVariants, authorVariants []string) []cascadeStrategy {
	title = strings.TrimSpace(title)
	author = strings.TrimSpace(author)
	if title == "" {
		return nil
	}

	var out []cascadeStrategy
	add := func(name string, q domain.SearchQuery) {
		out = append(out, cascadeStrategy{name: name, query: q})
	}

	if author != "" {
		add(strategyExact, domain.SearchQuery{Title: title, Author: author})
	}
	add(strategyTitle, domain.SearchQuery{Title: title})
	if author != "" {
		for _, v := range nonEmpty(titleVariants) {
			add(strategyVariantAuthor, domain.SearchQuery{Title: v, Author: author})
		}
	}
	for _, v := range nonEmpty(titleVariants) {
		add(strategyVariant, domain.SearchQuery{Title: v})
	}
	for _, v := range nonEmpty(authorVariants) {
		add(strategyAuthorVariant, domain.SearchQuery{Title: title, Author: v})
	}
	add(strategyLoose, domain.SearchQuery{Loose: strings.TrimSpace(title + " " + author)})
	return out
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
