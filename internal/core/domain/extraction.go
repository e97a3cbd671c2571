package domain

import (
	"fmt"
	"strings"
)

// Confidence is a coarse trust level with a total order Low < Medium < High.
type Confidence int

const (
	ConfidenceLow Confidence = iota
	ConfidenceMedium
	ConfidenceHigh
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceHigh:
		return "high"
	case ConfidenceMedium:
		return "medium"
	default:
		return "low"
	}
}

// ParseConfidence maps model output onto the enum. Unknown values are low.
func ParseConfidence(raw string) Confidence {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high":
		return ConfidenceHigh
	case "medium", "med":
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func (c Confidence) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Confidence) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "high", "medium", "low":
		*c = ParseConfidence(v)
		return nil
	default:
		return fmt.Errorf("unknown confidence %q", v)
	}
}

// CombineConfidence never lets a confident field mask a weaker one.
func CombineConfidence(a, b Confidence) Confidence {
	if a < b {
		return a
	}
	return b
}

// TitleGuess is the output of a title inference tier.
type TitleGuess struct {
	Title      string
	Variants   []string
	Confidence Confidence
}

// AuthorGuess is the output of an author inference tier.
type AuthorGuess struct {
	Author     string
	Variants   []string
	Confidence Confidence
}

func (g AuthorGuess) Empty() bool {
	return strings.TrimSpace(g.Author) == ""
}

// ExtractionResult is produced once per review. An empty Title means no book
// was identifiable.
type ExtractionResult struct {
	Title          string     `json:"title,omitempty"`
	Author         string     `json:"author,omitempty"`
	Confidence     Confidence `json:"confidence"`
	TitleVariants  []string   `json:"title_variants,omitempty"`
	AuthorVariants []string   `json:"author_variants,omitempty"`
}

func (r ExtractionResult) Empty() bool {
	return strings.TrimSpace(r.Title) == ""
}
