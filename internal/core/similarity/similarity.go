// Package similarity scores how close two short text fields are, such as
// book titles or author names, across Latin and Cyrillic scripts.
package similarity

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
	"golang.org/x/text/unicode/norm"
)

const (
	DefaultTitleThreshold  = 0.85
	DefaultAuthorThreshold = 0.70
)

// Normalize lowercases s, drops everything except letters, digits and
// whitespace, and collapses runs of whitespace.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			pendingSpace = true
		}
	}
	return b.String()
}

// Score returns a closeness value in [0,1] derived from the Levenshtein
// distance of the normalized inputs.
func Score(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return 1
	}
	if na == "" || nb == "" {
		return 0
	}
	maxLen := utf8.RuneCountInString(na)
	if n := utf8.RuneCountInString(nb); n > maxLen {
		maxLen = n
	}
	dist := matchr.Levenshtein(na, nb)
	if dist >= maxLen {
		return 0
	}
	return float64(maxLen-dist) / float64(maxLen)
}

// Thresholds decide whether a title/author pair matches a stored record.
type Thresholds struct {
	Title  float64
	Author float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{Title: DefaultTitleThreshold, Author: DefaultAuthorThreshold}
}

// Match compares a candidate against a stored pair. An empty wantAuthor
// skips the author check.
func (t Thresholds) Match(wantTitle, wantAuthor, title, author string) (bool, float64, float64) {
	titleScore := Score(wantTitle, title)
	if titleScore < t.Title {
		return false, titleScore, 0
	}
	if strings.TrimSpace(wantAuthor) == "" {
		return true, titleScore, 0
	}
	authorScore := AuthorScore(wantAuthor, author)
	return authorScore >= t.Author, titleScore, authorScore
}

// AuthorScore compares want against a possibly multi-author credit such as
// "Terry Pratchett, Neil Gaiman" and returns the best score among the whole
// credit and each listed name.
func AuthorScore(want, credit string) float64 {
	best := Score(want, credit)
	names := strings.FieldsFunc(credit, func(r rune) bool {
		return r == ',' || r == ';' || r == '&'
	})
	if len(names) < 2 {
		return best
	}
	for _, name := range names {
		best = max(best, Score(want, name))
	}
	return best
}
