// Package gemini provides the knowledge-backed author tier on Google Gemini.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"

	"github.com/kirillkom/bookbot/internal/core/domain"
)

const DefaultModel = "gemini-1.5-flash"

type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// AuthorResolver asks Gemini who wrote a title, using the review snippet as
// extra context.
type AuthorResolver struct {
	client *genai.Client
	model  generator
}

func New(ctx context.Context, apiKey, model string) (*AuthorResolver, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini api key is empty")
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	gm := client.GenerativeModel(model)
	gm.SetTemperature(0)
	gm.ResponseMIMEType = "application/json"
	return &AuthorResolver{client: client, model: gm}, nil
}

func (r *AuthorResolver) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *AuthorResolver) ExtractAuthorAugmented(ctx context.Context, title, snippet string) (domain.AuthorGuess, error) {
	resp, err := r.model.GenerateContent(ctx, genai.Text(buildPrompt(title, snippet)))
	if err != nil {
		if isQuotaError(err) {
			return domain.AuthorGuess{}, domain.WrapError(domain.ErrRateLimited, "gemini generate", err)
		}
		return domain.AuthorGuess{}, fmt.Errorf("gemini generate: %w", err)
	}
	text, err := firstText(resp)
	if err != nil {
		return domain.AuthorGuess{}, err
	}

	var answer struct {
		Author     *string  `json:"author"`
		Confidence string   `json:"confidence"`
		Variants   []string `json:"variants"`
	}
	if err := json.Unmarshal([]byte(jsonObject(text)), &answer); err != nil {
		return domain.AuthorGuess{}, fmt.Errorf("parse gemini author json: %w", err)
	}
	guess := domain.AuthorGuess{
		Variants:   answer.Variants,
		Confidence: domain.ParseConfidence(answer.Confidence),
	}
	if answer.Author != nil {
		guess.Author = strings.TrimSpace(*answer.Author)
	}
	return guess, nil
}

func buildPrompt(title, snippet string) string {
	return `Who is the author of the book titled "` + title + `"?
Use your knowledge of published books. The reader's review below may help disambiguate.
Return strict JSON object with keys:
author (string or null), confidence ("high", "medium" or "low"), variants (array of other spellings of the name).
Use null if you do not know the book.

Review excerpt:
` + snippet
}

func firstText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from gemini")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("empty content returned from gemini")
	}
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("unexpected response format from gemini")
	}
	return b.String(), nil
}

func jsonObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func isQuotaError(err error) bool {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPCode() == http.StatusTooManyRequests {
			return true
		}
		if st := apiErr.GRPCStatus(); st != nil && st.Code() == codes.ResourceExhausted {
			return true
		}
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code == http.StatusTooManyRequests {
		return true
	}
	return strings.Contains(err.Error(), "RESOURCE_EXHAUSTED")
}
