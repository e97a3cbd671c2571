package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/bookbot/internal/core/domain"
	"github.com/kirillkom/bookbot/internal/core/ports"
	"github.com/kirillkom/bookbot/internal/core/similarity"
)

// CatalogDeduplicator finds an existing catalog entry for a title/author
// pair. It scans the whole catalog.
type CatalogDeduplicator struct {
	catalog    ports.CatalogRepository
	thresholds similarity.Thresholds
}

func NewCatalogDeduplicator(catalog ports.CatalogRepository, thresholds similarity.Thresholds) *CatalogDeduplicator {
	def := similarity.DefaultThresholds()
	if thresholds.Title <= 0 {
		thresholds.Title = def.Title
	}
	if thresholds.Author <= 0 {
		thresholds.Author = def.Author
	}
	return &CatalogDeduplicator{catalog: catalog, thresholds: thresholds}
}

// FindMatch returns the best entry clearing both thresholds. Among several
// matches the highest combined score wins; exact ties keep catalog order.
func (d *CatalogDeduplicator) FindMatch(ctx context.Context, title, author string) (*domain.CatalogEntry, domain.SimilarityScore, error) {
	entries, err := d.catalog.List(ctx)
	if err != nil {
		return nil, domain.SimilarityScore{}, fmt.Errorf("list catalog: %w", err)
	}

	var (
		best      *domain.CatalogEntry
		bestScore domain.SimilarityScore
		bestSum   = -1.0
	)
	for i := range entries {
		ok, titleScore, authorScore := d.thresholds.Match(title, author, entries[i].Title, entries[i].Author)
		if !ok {
			continue
		}
		if sum := titleScore + authorScore; sum > bestSum {
			entry := entries[i]
			best = &entry
			bestSum = sum
			bestScore = domain.SimilarityScore{Title: titleScore, Author: authorScore}
		}
	}
	return best, bestScore, nil
}
