package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/bookbot/internal/core/domain"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	return rec.Body.String()
}

func TestMiddlewareCountsRequests(t *testing.T) {
	m := New("bookbot-test")
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	body := scrape(t, m)
	want := `bookbot_http_requests_total{method="GET",path="/healthz",service="bookbot-test",status="418"} 1`
	if !strings.Contains(body, want) {
		t.Fatalf("metrics output missing %q:\n%s", want, body)
	}
}

func TestResolutionCollectors(t *testing.T) {
	m := New("bookbot-test")
	m.RecordCascadeStrategy("title_author", "hit")
	m.RecordOutcome(domain.OutcomeAutoResolved, true)
	m.RecordSessionTransition("", string(domain.StateShowingOptions))
	m.SetActiveSessions(3)
	m.RecordProviderCall("googlebooks", "429")
	m.RecordRetry("googlebooks", 1, 2*time.Second, errors.New("throttled"))

	body := scrape(t, m)
	for _, want := range []string{
		`bookbot_cascade_strategy_total{service="bookbot-test",status="hit",strategy="title_author"} 1`,
		`bookbot_resolver_outcomes_total{degraded="true",kind="auto_resolved",service="bookbot-test"} 1`,
		`bookbot_session_transitions_total{from="none",service="bookbot-test",to="showing_options"} 1`,
		`bookbot_session_active{service="bookbot-test"} 3`,
		`bookbot_provider_calls_total{service="bookbot-test",source="googlebooks",status="429"} 1`,
		`bookbot_resilience_retries_total{operation="googlebooks",service="bookbot-test"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
