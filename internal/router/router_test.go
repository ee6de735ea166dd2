package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/GregMSThompson/household-ledger/internal/errs"
	"github.com/GregMSThompson/household-ledger/internal/handlers"
	"github.com/GregMSThompson/household-ledger/internal/metrics"
	"github.com/GregMSThompson/household-ledger/internal/middleware"
	"github.com/GregMSThompson/household-ledger/internal/models"
	"github.com/GregMSThompson/household-ledger/internal/response"
	"github.com/GregMSThompson/household-ledger/pkg/logger"
)

type headerVerifier struct{}

func (headerVerifier) Verify(r *http.Request) (models.Identity, error) {
	uid := r.Header.Get("X-Test-UID")
	if uid == "" {
		return models.Identity{}, errs.NewUnauthenticatedError("missing uid")
	}
	return models.Identity{UID: uid}, nil
}

func newTestRouter(m *metrics.Metrics) http.Handler {
	return newTestRouterWithOrigins(m, []string{"https://app.example.com"})
}

func newTestRouterWithOrigins(m *metrics.Metrics, origins []string) http.Handler {
	log := logger.New("error", logger.NewTestHandler)
	rh := response.New(log)
	deps := &handlers.Deps{Log: log, ResponseHandler: rh}
	return NewRouter(deps, middleware.NewMiddleware(headerVerifier{}, rh), m, origins)
}

func serve(h http.Handler, method, target, body, uid string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if uid != "" {
		req.Header.Set("X-Test-UID", uid)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	h := newTestRouter(metrics.New())

	if rec := serve(h, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
	rec := serve(h, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ledger_http_requests_total") {
		t.Fatalf("metrics status = %d body = %.200s", rec.Code, rec.Body.String())
	}
}

func TestMetricsDisabled(t *testing.T) {
	h := newTestRouter(nil)
	if rec := serve(h, http.MethodGet, "/metrics", "", ""); rec.Code != http.StatusUnauthorized && rec.Code != http.StatusNotFound {
		t.Fatalf("metrics should not be served, got %d", rec.Code)
	}
}

func TestRoutesRequireAuth(t *testing.T) {
	h := newTestRouter(nil)
	for _, target := range []string{"/spaces/my", "/spaces/s1/transactions", "/spaces/s1/summary"} {
		if rec := serve(h, http.MethodGet, target, "", ""); rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s status = %d, want 401", target, rec.Code)
		}
	}
}

func TestSpaceRoutesResolve(t *testing.T) {
	h := newTestRouter(nil)

	// both fail validation before reaching a service
	rec := serve(h, http.MethodPut, "/spaces/active", `{}`, "u1")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("PUT /spaces/active status = %d, want 400", rec.Code)
	}
	rec = serve(h, http.MethodGet, "/spaces/s1/transactions?from=yesterday", "", "u1")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("GET transactions status = %d, want 400", rec.Code)
	}
}

func TestAssistantNotMountedWithoutService(t *testing.T) {
	h := newTestRouter(nil)
	rec := serve(h, http.MethodPost, "/spaces/s1/assistant", `{"message":"hi"}`, "u1")
	if rec.Code != http.StatusNotFound && rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("assistant status = %d, want 404", rec.Code)
	}
}

func TestCORSPreflightSkipsAuth(t *testing.T) {
	h := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodOptions, "/spaces/s1/transactions", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "content-type, x-telegram-init-data")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("preflight status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("allow origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != http.MethodPost {
		t.Fatalf("allow methods = %q", got)
	}
	if got := strings.ToLower(rec.Header().Get("Access-Control-Allow-Headers")); !strings.Contains(got, "x-telegram-init-data") {
		t.Fatalf("allow headers = %q", got)
	}
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	h := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodOptions, "/spaces/my", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}
