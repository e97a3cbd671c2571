package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/bookbot/internal/core/domain"
	"github.com/kirillkom/bookbot/internal/infrastructure/resilience"
)

func generateServer(t *testing.T, capture *string, response string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if capture != nil {
			*capture, _ = payload["prompt"].(string)
		}
		out, _ := json.Marshal(map[string]string{"response": response})
		_, _ = w.Write(out)
	}))
}

func TestExtractTitleParsesAnswer(t *testing.T) {
	var prompt string
	server := generateServer(t, &prompt, "```json\n{\"title\":\"1984\",\"confidence\":\"high\",\"variants\":[\"Nineteen Eighty-Four\"]}\n```")
	defer server.Close()

	extractor := NewExtractor(New(server.URL, "qwen-small", Options{}))
	got, err := extractor.ExtractTitle(context.Background(), `Just read "1984" by George Orwell`, "orwell novel")
	if err != nil {
		t.Fatalf("ExtractTitle() error = %v", err)
	}
	if got.Title != "1984" || got.Confidence != domain.ConfidenceHigh || len(got.Variants) != 1 {
		t.Fatalf("unexpected guess: %+v", got)
	}
	if !strings.Contains(prompt, "orwell novel") || !strings.Contains(prompt, `"1984"`) {
		t.Fatalf("prompt misses review or hint: %s", prompt)
	}
}

func TestExtractAuthorNullAnswer(t *testing.T) {
	server := generateServer(t, nil, `{"author":null,"confidence":"low"}`)
	defer server.Close()

	got, err := NewExtractor(New(server.URL, "m", Options{})).ExtractAuthor(context.Background(), "text", "Dune")
	if err != nil {
		t.Fatalf("ExtractAuthor() error = %v", err)
	}
	if !got.Empty() || got.Confidence != domain.ConfidenceLow {
		t.Fatalf("unexpected guess: %+v", got)
	}
}

func TestMalformedJSONIsError(t *testing.T) {
	server := generateServer(t, nil, "I think it's Dune")
	defer server.Close()

	if _, err := NewExtractor(New(server.URL, "m", Options{})).ExtractTitle(context.Background(), "x", ""); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestQuotaResponseIsRateLimited(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
	})
	_, err := NewExtractor(New(server.URL, "m", Options{ResilienceExecutor: exec})).ExtractTitle(context.Background(), "x", "")
	if !domain.IsKind(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("quota errors must not be retried, got %d calls", calls.Load())
	}
}

func TestServerErrorIncludesBodyAndIsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewExtractor(New(server.URL, "m", Options{})).ExtractAuthor(context.Background(), "x", "Dune")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}
