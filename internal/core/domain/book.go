package domain

import (
	"strings"
	"time"
)

// BookMetadata is a single record returned by the bibliographic provider.
type BookMetadata struct {
	Title           string   `json:"title"`
	Author          string   `json:"author,omitempty"`
	ExternalID      string   `json:"external_id,omitempty"`
	ISBN            string   `json:"isbn,omitempty"`
	CoverURL        string   `json:"cover_url,omitempty"`
	Genres          []string `json:"genres,omitempty"`
	PublicationYear int      `json:"publication_year,omitempty"`
	Description     string   `json:"description,omitempty"`
	PageCount       int      `json:"page_count,omitempty"`
}

// SearchQuery is one cascade strategy's request. Loose queries ignore Title
// and Author field semantics and are sent as free text.
type SearchQuery struct {
	Title  string
	Author string
	Loose  string
}

func (q SearchQuery) Key() string {
	if q.Loose != "" {
		return "loose:" + strings.ToLower(q.Loose)
	}
	return strings.ToLower(q.Title) + "|" + strings.ToLower(q.Author)
}

// CatalogEntry is the persisted book record.
type CatalogEntry struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author,omitempty"`
	ExternalID      string    `json:"external_id,omitempty"`
	ISBN            string    `json:"isbn,omitempty"`
	CoverURL        string    `json:"cover_url,omitempty"`
	Genres          []string  `json:"genres"`
	PublicationYear int       `json:"publication_year,omitempty"`
	Description     string    `json:"description,omitempty"`
	PageCount       int       `json:"page_count,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// EntryFromMetadata copies provider metadata into an unsaved catalog entry.
func EntryFromMetadata(meta BookMetadata) CatalogEntry {
	genres := meta.Genres
	if genres == nil {
		genres = []string{}
	}
	return CatalogEntry{
		Title:           meta.Title,
		Author:          meta.Author,
		ExternalID:      meta.ExternalID,
		ISBN:            meta.ISBN,
		CoverURL:        meta.CoverURL,
		Genres:          genres,
		PublicationYear: meta.PublicationYear,
		Description:     meta.Description,
		PageCount:       meta.PageCount,
	}
}

type CandidateSource string

const (
	SourceLocal     CandidateSource = "local"
	SourceExternal  CandidateSource = "external"
	SourceExtracted CandidateSource = "extracted"
)

type SimilarityScore struct {
	Title  float64 `json:"title"`
	Author float64 `json:"author"`
}

// BookCandidate is one possible match surfaced to a human or accepted
// automatically. Similarity is only meaningful for local candidates.
type BookCandidate struct {
	Title      string          `json:"title"`
	Author     string          `json:"author,omitempty"`
	ExternalID string          `json:"external_id,omitempty"`
	ISBN       string          `json:"isbn,omitempty"`
	CoverURL   string          `json:"cover_url,omitempty"`
	Source     CandidateSource `json:"source"`
	Similarity SimilarityScore `json:"similarity"`

	// Entry is set for local candidates, Metadata for external ones.
	Entry    *CatalogEntry `json:"-"`
	Metadata *BookMetadata `json:"-"`
}

func CandidateFromEntry(entry CatalogEntry, score SimilarityScore) BookCandidate {
	e := entry
	return BookCandidate{
		Title:      entry.Title,
		Author:     entry.Author,
		ExternalID: entry.ExternalID,
		ISBN:       entry.ISBN,
		CoverURL:   entry.CoverURL,
		Source:     SourceLocal,
		Similarity: score,
		Entry:      &e,
	}
}

func CandidateFromMetadata(meta BookMetadata) BookCandidate {
	m := meta
	return BookCandidate{
		Title:      meta.Title,
		Author:     meta.Author,
		ExternalID: meta.ExternalID,
		ISBN:       meta.ISBN,
		CoverURL:   meta.CoverURL,
		Source:     SourceExternal,
		Metadata:   &m,
	}
}

func CandidateFromExtraction(ext ExtractionResult) BookCandidate {
	return BookCandidate{
		Title:  ext.Title,
		Author: ext.Author,
		Source: SourceExtracted,
	}
}

// Review is the chat message being resolved to a book.
type Review struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ChatID    int64     `json:"chat_id,omitempty"`
	MessageID int       `json:"message_id,omitempty"`
	Text      string    `json:"text"`
	Hint      string    `json:"hint,omitempty"`
	BookID    string    `json:"book_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ReviewResolved is published after a review is attached to a catalog entry.
type ReviewResolved struct {
	ReviewID string    `json:"review_id"`
	UserID   string    `json:"user_id"`
	BookID   string    `json:"book_id"`
	Title    string    `json:"title"`
	Author   string    `json:"author,omitempty"`
	Degraded bool      `json:"degraded"`
	At       time.Time `json:"at"`
}

// Alert is an operational notification, e.g. a throttled provider.
type Alert struct {
	Kind    string    `json:"kind"`
	Source  string    `json:"source"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}
