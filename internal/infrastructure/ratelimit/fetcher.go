// Package ratelimit spaces outbound provider calls and retries throttled
// responses with exponential backoff.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/bookbot/internal/core/domain"
	"github.com/kirillkom/bookbot/internal/core/ports"
	"github.com/kirillkom/bookbot/internal/infrastructure/resilience"
)

const (
	DefaultDelay          = 200 * time.Millisecond
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = time.Second
)

type Config struct {
	// Source names the provider in logs and alerts.
	Source         string
	Delay          time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	OnRetry        resilience.RetryObserver
}

// State is shared by every caller of one Fetcher.
type State struct {
	LastRequest        time.Time
	ConsecutiveRetries int
}

// Recorder receives one observation per HTTP exchange.
type Recorder interface {
	RecordProviderCall(source, status string)
}

// ThrottledError is a provider response with status 429.
type ThrottledError struct {
	Status string
}

func (e *ThrottledError) Error() string {
	return "provider throttled: " + e.Status
}

// Fetcher is an HTTP doer with a single global minimum interval between
// requests. It retries only 429 responses; other statuses are returned to
// the caller untouched.
type Fetcher struct {
	client   ports.HTTPDoer
	limiter  *rate.Limiter
	executor *resilience.Executor
	alerter  ports.Alerter
	recorder Recorder
	source   string

	mu    sync.Mutex
	state State
	now   func() time.Time
}

func New(client ports.HTTPDoer, cfg Config, alerter ports.Alerter, recorder Recorder) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultInitialBackoff
	}
	if cfg.Source == "" {
		cfg.Source = "provider"
	}
	return &Fetcher{
		client:   client,
		limiter:  rate.NewLimiter(rate.Every(cfg.Delay), 1),
		executor: resilience.NewExecutor(resilience.ExponentialConfig(cfg.MaxRetries, cfg.InitialBackoff)).WithRetryObserver(cfg.OnRetry),
		alerter:  alerter,
		recorder: recorder,
		source:   cfg.Source,
		now:      time.Now,
	}
}

func (f *Fetcher) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	resp, err := resilience.Do(ctx, f.executor, f.source+".fetch", func(ctx context.Context) (*http.Response, error) {
		return f.attempt(ctx, req)
	}, classifyFetchError)
	if err == nil {
		return resp, nil
	}
	// A caller giving up mid-backoff has not exhausted the retries.
	if ctxErr := ctx.Err(); ctxErr != nil {
		f.record("cancelled")
		return nil, fmt.Errorf("%s fetch: %w", f.source, ctxErr)
	}

	var throttled *ThrottledError
	if errors.As(err, &throttled) {
		f.record("rate_limited")
		slog.Error("rate_limit_exceeded", "source", f.source, "url", req.URL.Redacted(), "retries", f.State().ConsecutiveRetries)
		f.alert(ctx, err)
		return nil, domain.WrapError(domain.ErrRateLimited, f.source+" fetch", err)
	}
	return nil, err
}

// State returns a snapshot of the limiter bookkeeping.
func (f *Fetcher) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Fetcher) attempt(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for %s slot: %w", f.source, err)
	}
	f.mu.Lock()
	f.state.LastRequest = f.now()
	f.mu.Unlock()

	attemptReq, err := cloneRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(attemptReq)
	if err != nil {
		f.record("error")
		return nil, fmt.Errorf("%s request: %w", f.source, err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		f.mu.Lock()
		f.state.ConsecutiveRetries++
		f.mu.Unlock()
		f.record("throttled")
		return nil, &ThrottledError{Status: resp.Status}
	}

	f.mu.Lock()
	f.state.ConsecutiveRetries = 0
	f.mu.Unlock()
	f.record(statusClass(resp.StatusCode))
	return resp, nil
}

func (f *Fetcher) alert(ctx context.Context, cause error) {
	if f.alerter == nil {
		return
	}
	alert := domain.Alert{
		Kind:    "rate_limit_exceeded",
		Source:  f.source,
		Message: cause.Error(),
		At:      f.now().UTC(),
	}
	if err := f.alerter.Alert(ctx, alert); err != nil {
		slog.Warn("alert_delivery_failed", "source", f.source, "error", err)
	}
}

func (f *Fetcher) record(status string) {
	if f.recorder != nil {
		f.recorder.RecordProviderCall(f.source, status)
	}
}

func cloneRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	out := req.Clone(ctx)
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
		out.Body = body
	}
	return out, nil
}

func classifyFetchError(err error) resilience.ErrorClassification {
	var throttled *ThrottledError
	if errors.As(err, &throttled) {
		return resilience.Throttled
	}
	return resilience.Ignored
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	default:
		return "ok"
	}
}
