package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/bookbot/internal/core/domain"
)

type alerterFake struct {
	mu     sync.Mutex
	alerts []domain.Alert
}

func (f *alerterFake) Alert(_ context.Context, alert domain.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
	return nil
}

func get(t *testing.T, f *Fetcher, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	return f.Do(req)
}

func TestFetcherRetriesThrottledThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	f := New(server.Client(), Config{Delay: time.Millisecond, MaxRetries: 3, InitialBackoff: time.Millisecond}, nil, nil)
	resp, err := get(t, f, server.URL)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
	if f.State().ConsecutiveRetries != 0 {
		t.Fatalf("retry counter should reset after success")
	}
}

func TestFetcherRaisesRateLimitedAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	alerter := &alerterFake{}
	f := New(server.Client(), Config{Source: "googlebooks", Delay: time.Millisecond, MaxRetries: 2, InitialBackoff: time.Millisecond}, alerter, nil)
	_, err := get(t, f, server.URL)
	if !domain.IsKind(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 1 call plus 2 retries, got %d", calls.Load())
	}
	if len(alerter.alerts) != 1 || alerter.alerts[0].Source != "googlebooks" {
		t.Fatalf("unexpected alerts: %+v", alerter.alerts)
	}
	if f.State().ConsecutiveRetries != 3 {
		t.Fatalf("ConsecutiveRetries = %d, want 3", f.State().ConsecutiveRetries)
	}
}

func TestFetcherPassesOtherStatusesThrough(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	f := New(server.Client(), Config{Delay: time.Millisecond, MaxRetries: 3, InitialBackoff: time.Millisecond}, nil, nil)
	resp, err := get(t, f, server.URL)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if calls.Load() != 1 {
		t.Fatalf("5xx must not be retried here, got %d calls", calls.Load())
	}
}

func TestFetcherSpacesConcurrentCalls(t *testing.T) {
	var (
		mu    sync.Mutex
		times []time.Time
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		times = append(times, time.Now())
		mu.Unlock()
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	const delay = 40 * time.Millisecond
	f := New(server.Client(), Config{Delay: delay, MaxRetries: 0, InitialBackoff: time.Millisecond}, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := get(t, f, server.URL)
			if err == nil {
				resp.Body.Close()
			}
		}()
	}
	wg.Wait()

	if len(times) != 4 {
		t.Fatalf("expected 4 requests, got %d", len(times))
	}
	first, last := times[0], times[0]
	for _, ts := range times {
		if ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
	}
	// Four calls need at least three full intervals; allow scheduler jitter.
	if span := last.Sub(first); span < 3*delay-10*time.Millisecond {
		t.Fatalf("calls too close together: span %v", span)
	}
}

func TestFetcherCancelledDuringBackoffIsNotRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	alerter := &alerterFake{}
	f := New(server.Client(), Config{Source: "googlebooks", Delay: time.Millisecond, MaxRetries: 3, InitialBackoff: time.Second}, alerter, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	_, err = f.Do(req)
	if err == nil {
		t.Fatalf("expected error")
	}
	if domain.IsKind(err, domain.ErrRateLimited) {
		t.Fatalf("cancellation must not read as rate limited: %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if len(alerter.alerts) != 0 {
		t.Fatalf("expected no alerts, got %+v", alerter.alerts)
	}
}
