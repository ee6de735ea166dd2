package dto

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/GregMSThompson/household-ledger/internal/errs"
	"github.com/GregMSThompson/household-ledger/internal/models"
	"github.com/GregMSThompson/household-ledger/pkg/helpers"
)

func TestDraftValidateAppliesDefaults(t *testing.T) {
	var draft TransactionDraft
	body := `{"type":"EXPENSE","amount":500,"date":"2024-03-01","category":" Groceries "}`
	if err := json.Unmarshal([]byte(body), &draft); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	tpl, err := draft.Validate()
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if tpl.Status != models.StatusActual || tpl.Recurrence != models.RecurrenceNone || !tpl.IncludeInBalance {
		t.Fatalf("defaults not applied: %+v", tpl)
	}
	if tpl.Category != "Groceries" {
		t.Fatalf("category not trimmed: %q", tpl.Category)
	}
	if !tpl.Amount.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("amount = %s", tpl.Amount)
	}
	if tpl.Date != (civil.Date{Year: 2024, Month: 3, Day: 1}) {
		t.Fatalf("date = %s", tpl.Date)
	}
}

func TestDraftValidateCollectsAllProblems(t *testing.T) {
	draft := TransactionDraft{
		Amount:     helpers.Ptr(decimal.NewFromInt(-5)),
		Recurrence: helpers.Ptr(models.RecurrenceMonthly),
	}

	_, err := draft.Validate()
	var valErr *errs.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}

	wants := []string{"type is required", "amount must be greater than zero", "date is required", "category is required", "recurrenceEndDate is required"}
	for _, want := range wants {
		if !strings.Contains(valErr.Message, want) {
			t.Fatalf("missing %q in %q", want, valErr.Message)
		}
	}
	if len(valErr.Problems) != len(wants) {
		t.Fatalf("expected %d problems, got %v", len(wants), valErr.Problems)
	}
}

func TestDraftRejectsNonNumericAmount(t *testing.T) {
	var draft TransactionDraft
	if err := json.Unmarshal([]byte(`{"amount":"lots"}`), &draft); err == nil {
		t.Fatalf("expected decode error for non-numeric amount")
	}
}

func TestPatchValidate(t *testing.T) {
	if err := (TransactionPatch{}).Validate(); err == nil {
		t.Fatalf("expected error for empty patch")
	}
	if err := (TransactionPatch{Recurrence: helpers.Ptr(models.RecurrenceWeekly)}).Validate(); err == nil {
		t.Fatalf("expected error when making a row recurring")
	}
	if err := (TransactionPatch{Status: helpers.Ptr(models.StatusActual)}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIsSelfReference(t *testing.T) {
	for _, v := range []string{"@me", "Мои", " я ", "мои транзакции"} {
		if !IsSelfReference(v) {
			t.Fatalf("expected %q to be a self reference", v)
		}
	}
	if IsSelfReference("Anna") {
		t.Fatalf("name should not be a self reference")
	}
}

func TestFilterValidate(t *testing.T) {
	from := civil.Date{Year: 2024, Month: 2, Day: 1}
	to := civil.Date{Year: 2024, Month: 1, Day: 1}
	if err := (TransactionFilter{From: &from, To: &to}).Validate(); err == nil {
		t.Fatalf("expected error for inverted range")
	}
	if err := (TransactionFilter{Order: "sideways"}).Validate(); err == nil {
		t.Fatalf("expected error for bad order")
	}
}

func TestMonth(t *testing.T) {
	m, err := ParseMonth("2024-02")
	if err != nil {
		t.Fatalf("ParseMonth: %v", err)
	}
	if m.Days() != 29 || m.Last().String() != "2024-02-29" || m.String() != "2024-02" {
		t.Fatalf("unexpected month values: %d %s %s", m.Days(), m.Last(), m)
	}
	if _, err := ParseMonth("2024-13"); err == nil {
		t.Fatalf("expected error for invalid month")
	}
}
