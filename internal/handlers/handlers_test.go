package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/GregMSThompson/household-ledger/internal/middleware"
	"github.com/GregMSThompson/household-ledger/internal/models"
	"github.com/GregMSThompson/household-ledger/pkg/helpers"
)

type stubResponseHandler struct {
	writeSuccessCalled bool
	writeSuccessStatus int
	writeSuccessData   any

	handleErrorCalled bool
	handleError       error
}

func (s *stubResponseHandler) WriteSuccess(w http.ResponseWriter, r *http.Request, status int, data any) {
	s.writeSuccessCalled = true
	s.writeSuccessStatus = status
	s.writeSuccessData = data
	w.WriteHeader(status)
}

func (s *stubResponseHandler) WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.WriteHeader(status)
}

func (s *stubResponseHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	s.handleErrorCalled = true
	s.handleError = err
	w.WriteHeader(http.StatusInternalServerError)
}

// newRequest builds a request carrying a test logger and the caller's uid.
func newRequest(method, target string, body io.Reader, uid string) *http.Request {
	req := httptest.NewRequest(method, target, body)
	ctx := helpers.TestCtx()
	if uid != "" {
		ctx = context.WithValue(ctx, middleware.UIDKey, uid)
		ctx = context.WithValue(ctx, middleware.IdentityKey, models.Identity{UID: uid, FirstName: "Test"})
	}
	return req.WithContext(ctx)
}

// withChiParams injects chi URL parameters given as key, value pairs.
func withChiParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

func requireSuccess(t *testing.T, resp *stubResponseHandler, status int) {
	t.Helper()
	if resp.handleErrorCalled {
		t.Fatalf("unexpected error: %v", resp.handleError)
	}
	if !resp.writeSuccessCalled || resp.writeSuccessStatus != status {
		t.Fatalf("expected WriteSuccess with %d, got called=%v status=%d", status, resp.writeSuccessCalled, resp.writeSuccessStatus)
	}
}
