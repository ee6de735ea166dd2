package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/GregMSThompson/household-ledger/internal/errs"
	"github.com/GregMSThompson/household-ledger/pkg/helpers"
	"github.com/GregMSThompson/household-ledger/pkg/logger"
)

func newRequest() *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	return req.WithContext(helpers.TestCtx())
}

func TestHandleErrorStatusCodes(t *testing.T) {
	h := New(slog.New(logger.NewTestHandler(slog.LevelInfo)))

	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unauthenticated", errs.NewUnauthenticatedError("no"), http.StatusUnauthorized, "unauthenticated"},
		{"forbidden", errs.NewForbiddenError("no"), http.StatusForbidden, "forbidden"},
		{"not found", errs.NewNotFoundError("gone"), http.StatusNotFound, "not_found"},
		{"wrapped not found", fmt.Errorf("load: %w", errs.NewNotFoundError("gone")), http.StatusNotFound, "not_found"},
		{"exists", errs.NewAlreadyExistsError("dup"), http.StatusConflict, "already_exists"},
		{"conflict", errs.NewConflictError("last owner"), http.StatusConflict, "conflict"},
		{"validation", errs.NewValidationError("bad"), http.StatusBadRequest, "invalid_input"},
		{"database", errs.NewDatabaseError("read", "boom", errors.New("io")), http.StatusInternalServerError, "internal_error"},
		{"transient", errs.NewExternalServiceError("vertex", "slow", true, nil), http.StatusServiceUnavailable, "service_unavailable"},
		{"permanent", errs.NewExternalServiceError("vertex", "down", false, nil), http.StatusBadGateway, "service_unavailable"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.HandleError(rr, newRequest(), tc.err)

			if rr.Code != tc.status {
				t.Fatalf("status = %d, want %d", rr.Code, tc.status)
			}
			var body ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Code != tc.code {
				t.Fatalf("code = %q, want %q", body.Code, tc.code)
			}
		})
	}
}

func TestHandleErrorListsValidationProblems(t *testing.T) {
	h := New(slog.New(logger.NewTestHandler(slog.LevelInfo)))
	rr := httptest.NewRecorder()

	h.HandleError(rr, newRequest(), errs.NewValidationErrors([]string{"amount must be positive", "date is required"}))

	var body ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Problems) != 2 || body.Problems[1] != "date is required" {
		t.Fatalf("unexpected problems: %+v", body.Problems)
	}
}

func TestWriteSuccessEnvelope(t *testing.T) {
	h := New(slog.New(logger.NewTestHandler(slog.LevelInfo)))
	rr := httptest.NewRecorder()

	h.WriteSuccess(rr, newRequest(), http.StatusCreated, map[string]string{"id": "t1"})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	var body struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !body.Success || body.Data["id"] != "t1" {
		t.Fatalf("unexpected body: %+v", body)
	}
}
