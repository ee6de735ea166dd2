package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"

	"github.com/GregMSThompson/household-ledger/internal/dto"
	"github.com/GregMSThompson/household-ledger/internal/errs"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads the request body into v. Malformed or empty bodies are
// validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errs.NewValidationError("request body is required")
		}
		return errs.NewValidationError("invalid request body: " + err.Error())
	}
	return nil
}

func spaceID(r *http.Request) string {
	return chi.URLParam(r, "spaceID")
}

// dateParam parses an optional YYYY-MM-DD query parameter.
func dateParam(r *http.Request, name string) (*civil.Date, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	d, err := civil.ParseDate(raw)
	if err != nil {
		return nil, errs.NewValidationError(name + " must be YYYY-MM-DD")
	}
	return &d, nil
}

// monthParam parses an optional YYYY-MM query parameter, defaulting to the
// month containing today.
func monthParam(r *http.Request, today civil.Date) (dto.Month, error) {
	raw := r.URL.Query().Get("month")
	if raw == "" {
		return dto.MonthOf(today), nil
	}
	return dto.ParseMonth(raw)
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errs.NewValidationError(name + " must be an integer")
	}
	return n, nil
}
