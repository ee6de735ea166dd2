package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/GregMSThompson/household-ledger/pkg/logger"
)

func TestLoggerMiddlewareAttachesRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(logger.NewCloudRunHandlerTo(&buf, slog.LevelInfo))
	m := NewLoggerMiddleware(base)

	h := m.LoggerMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusCreated)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/spaces/s1/transactions", nil))

	out := buf.String()
	if !strings.Contains(out, "inside handler") || !strings.Contains(out, "/spaces/s1/transactions") {
		t.Fatalf("request logger not used: %s", out)
	}
	if !strings.Contains(out, "request completed") || !strings.Contains(out, `"status":201`) {
		t.Fatalf("completion not logged: %s", out)
	}
}
