package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillkom/bookbot/internal/core/domain"
)

// Extractor answers the title and author inference tiers with one model.
// Run a cheap model for the first pass and a larger one for escalation.
type Extractor struct {
	client *Client
}

func NewExtractor(client *Client) *Extractor {
	return &Extractor{client: client}
}

type titleAnswer struct {
	Title      *string  `json:"title"`
	Confidence string   `json:"confidence"`
	Variants   []string `json:"variants"`
}

type authorAnswer struct {
	Author     *string  `json:"author"`
	Confidence string   `json:"confidence"`
	Variants   []string `json:"variants"`
}

func (e *Extractor) ExtractTitle(ctx context.Context, text, hint string) (domain.TitleGuess, error) {
	raw, err := e.client.generateJSON(ctx, buildTitlePrompt(text, hint))
	if err != nil {
		return domain.TitleGuess{}, err
	}
	var answer titleAnswer
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &answer); err != nil {
		return domain.TitleGuess{}, fmt.Errorf("parse title json: %w", err)
	}
	return domain.TitleGuess{
		Title:      deref(answer.Title),
		Variants:   answer.Variants,
		Confidence: domain.ParseConfidence(answer.Confidence),
	}, nil
}

func (e *Extractor) ExtractAuthor(ctx context.Context, text, title string) (domain.AuthorGuess, error) {
	raw, err := e.client.generateJSON(ctx, buildAuthorPrompt(text, title))
	if err != nil {
		return domain.AuthorGuess{}, err
	}
	var answer authorAnswer
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &answer); err != nil {
		return domain.AuthorGuess{}, fmt.Errorf("parse author json: %w", err)
	}
	return domain.AuthorGuess{
		Author:     deref(answer.Author),
		Variants:   answer.Variants,
		Confidence: domain.ParseConfidence(answer.Confidence),
	}, nil
}

// deref maps JSON null and the literal "null" some models emit to "".
func deref(s *string) string {
	if s == nil {
		return ""
	}
	v := strings.TrimSpace(*s)
	if strings.EqualFold(v, "null") || strings.EqualFold(v, "none") {
		return ""
	}
	return v
}
