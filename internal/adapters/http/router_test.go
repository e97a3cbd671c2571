package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/bookbot/internal/core/domain"
)

type resolverFake struct {
	outcome domain.Outcome
	err     error
	got     domain.Review
}

func (f *resolverFake) Resolve(_ context.Context, review domain.Review) (domain.Outcome, error) {
	f.got = review
	return f.outcome, f.err
}

type isbnFake struct {
	meta *domain.BookMetadata
	err  error
}

func (f isbnFake) LookupISBN(context.Context, string) (*domain.BookMetadata, error) {
	return f.meta, f.err
}

type flowFake struct {
	session *domain.ConfirmationSession
	prompt  domain.Prompt
	err     error
	calls   []string
}

func (f *flowFake) Active(context.Context, string) (*domain.ConfirmationSession, bool) {
	return f.session, f.session != nil
}

func (f *flowFake) SelectCandidate(_ context.Context, _ string, _ int) (domain.Prompt, error) {
	f.calls = append(f.calls, "select")
	return f.prompt, f.err
}

func (f *flowFake) RequestISBN(context.Context, string) (domain.Prompt, error) {
	f.calls = append(f.calls, "isbn")
	return f.prompt, f.err
}

func (f *flowFake) RequestManual(context.Context, string) (domain.Prompt, error) {
	f.calls = append(f.calls, "manual")
	return f.prompt, f.err
}

func (f *flowFake) Cancel(context.Context, string) (domain.Prompt, error) {
	f.calls = append(f.calls, "cancel")
	return f.prompt, f.err
}

func (f *flowFake) HandleText(_ context.Context, _ string, text string) (domain.Prompt, error) {
	f.calls = append(f.calls, "text:"+text)
	return f.prompt, f.err
}

func (f *flowFake) Sweep(context.Context, time.Time) int { return 0 }

func newTestHandler(resolver *resolverFake, isbn isbnFake, flow *flowFake) http.Handler {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("bookbot_up 1\n"))
	})
	return NewRouter(resolver, isbn, flow, metrics, nil).Handler()
}

func postJSON(t *testing.T, h http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func TestResolveReturnsOutcomeAndPrompt(t *testing.T) {
	resolver := &resolverFake{outcome: domain.Outcome{
		Kind:  domain.OutcomeAutoResolved,
		Entry: &domain.CatalogEntry{ID: "b1", Title: "1984"},
	}}
	h := newTestHandler(resolver, isbnFake{}, &flowFake{})

	res := postJSON(t, h, "/v1/reviews/resolve", map[string]string{"user_id": "u1", "text": "1984 by Orwell", "hint": "1984"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var got resolveResponse
	if err := json.Unmarshal(res.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Outcome.Kind != domain.OutcomeAutoResolved || got.Prompt.Kind != domain.PromptFinalized {
		t.Fatalf("unexpected response: %+v", got)
	}
	if resolver.got.Hint != "1984" || resolver.got.UserID != "u1" {
		t.Fatalf("unexpected review passed: %+v", resolver.got)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestResolveValidatesBody(t *testing.T) {
	h := newTestHandler(&resolverFake{}, isbnFake{}, &flowFake{})
	res := postJSON(t, h, "/v1/reviews/resolve", map[string]string{"user_id": "u1"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestResolveMapsDomainErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.WrapError(domain.ErrSessionActive, "resolve", errors.New("open")), http.StatusConflict},
		{domain.WrapError(domain.ErrRateLimited, "resolve", errors.New("429")), http.StatusTooManyRequests},
		{domain.WrapError(domain.ErrTemporary, "resolve", errors.New("db")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		h := newTestHandler(&resolverFake{err: tc.err}, isbnFake{}, &flowFake{})
		res := postJSON(t, h, "/v1/reviews/resolve", map[string]string{"user_id": "u1", "text": "x"})
		if res.Code != tc.want {
			t.Fatalf("error %v: expected %d, got %d", tc.err, tc.want, res.Code)
		}
	}
}

func TestLookupISBNInvalidIs400(t *testing.T) {
	h := newTestHandler(&resolverFake{}, isbnFake{err: domain.WrapError(domain.ErrInvalidInput, "isbn", errors.New("checksum"))}, &flowFake{})
	req := httptest.NewRequest(http.MethodGet, "/v1/isbn/123", nil)
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSessionReplyDispatchesAction(t *testing.T) {
	flow := &flowFake{prompt: domain.Prompt{Kind: domain.PromptAskISBN}}
	h := newTestHandler(&resolverFake{}, isbnFake{}, flow)

	res := postJSON(t, h, "/v1/sessions/u1/reply", map[string]string{"action": "isbn"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	res = postJSON(t, h, "/v1/sessions/u1/reply", map[string]string{"text": "2"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if strings.Join(flow.calls, ",") != "isbn,text:2" {
		t.Fatalf("unexpected calls: %v", flow.calls)
	}

	res = postJSON(t, h, "/v1/sessions/u1/reply", map[string]string{"action": "dance"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown action, got %d", res.Code)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	h := newTestHandler(&resolverFake{}, isbnFake{}, &flowFake{})
	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/u1", nil)
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestMetricsAndHealthz(t *testing.T) {
	h := newTestHandler(&resolverFake{}, isbnFake{}, &flowFake{})
	for _, path := range []string{"/healthz", "/metrics"} {
		res := httptest.NewRecorder()
		h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, path, nil))
		if res.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, res.Code)
		}
	}
}

func TestRecoverMiddlewareReturns500(t *testing.T) {
	h := chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), requestIDMiddleware, recoverMiddleware)

	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/isbn/x", nil))
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "request_id") {
		t.Fatalf("expected request id in body: %s", res.Body.String())
	}
}

func TestResolveRejectsOversizedBody(t *testing.T) {
	resolver := &resolverFake{}
	h := newTestHandler(resolver, isbnFake{}, &flowFake{})

	text := strings.Repeat("a", maxRequestBodyBytes+1)
	res := postJSON(t, h, "/v1/reviews/resolve", map[string]string{"user_id": "u1", "text": text})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if resolver.got.UserID != "" {
		t.Fatalf("resolver must not be called for oversized body")
	}
}
