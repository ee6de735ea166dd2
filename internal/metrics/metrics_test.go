package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLedgerCounters(t *testing.T) {
	m := New()
	m.TransactionsAdded(12, true)
	m.TransactionsAdded(1, false)
	m.TransactionsDeleted(3)

	if got := testutil.ToFloat64(m.txAdded.WithLabelValues("true")); got != 12 {
		t.Fatalf("recurring added = %v", got)
	}
	if got := testutil.ToFloat64(m.txAdded.WithLabelValues("false")); got != 1 {
		t.Fatalf("single added = %v", got)
	}
	if got := testutil.ToFloat64(m.txDeleted); got != 3 {
		t.Fatalf("deleted = %v", got)
	}
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/spaces/{spaceID}/summary", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/spaces/abc/summary", nil))

	got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/spaces/{spaceID}/summary", "418"))
	if got != 1 {
		t.Fatalf("request counter = %v", got)
	}

	rr = httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), "ledger_http_requests_total") {
		t.Fatalf("metrics output missing counter")
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.TransactionsAdded(1, false)
	m.TransactionsDeleted(1)
	m.AssistantHops(2)

	called := false
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Fatalf("expected next handler to run")
	}
}
