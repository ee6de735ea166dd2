package dto

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/GregMSThompson/household-ledger/internal/errs"
	"github.com/GregMSThompson/household-ledger/internal/models"
	"github.com/GregMSThompson/household-ledger/pkg/helpers"
)

const maxDescriptionLength = 500

// TransactionDraft is a partially filled transaction as it arrives from a
// form or the assistant. Nothing reads its fields directly; Validate is the
// only way to get a template out of it.
type TransactionDraft struct {
	Type              *models.TransactionType   `json:"type"`
	Amount            *decimal.Decimal          `json:"amount"`
	Date              *civil.Date               `json:"date"`
	Category          *string                   `json:"category"`
	Status            *models.TransactionStatus `json:"status"`
	Recurrence        *models.Recurrence        `json:"recurrence"`
	RecurrenceEndDate *civil.Date               `json:"recurrenceEndDate"`
	IncludeInBalance  *bool                     `json:"includeInBalance"`
	Description       *string                   `json:"description"`
}

// TransactionTemplate is a validated draft, ready for expansion.
type TransactionTemplate struct {
	Type              models.TransactionType
	Amount            decimal.Decimal
	Date              civil.Date
	Category          string
	Status            models.TransactionStatus
	Recurrence        models.Recurrence
	RecurrenceEndDate *civil.Date
	IncludeInBalance  bool
	Description       string
}

// Validate applies defaults (ACTUAL, NONE, included in balance) and reports
// every problem at once as a *errs.ValidationError.
func (d TransactionDraft) Validate() (TransactionTemplate, error) {
	var problems []string
	tpl := TransactionTemplate{
		Status:           helpers.ValueOr(d.Status, models.StatusActual),
		Recurrence:       helpers.ValueOr(d.Recurrence, models.RecurrenceNone),
		IncludeInBalance: helpers.ValueOr(d.IncludeInBalance, true),
		Description:      strings.TrimSpace(helpers.Value(d.Description)),
	}

	switch {
	case d.Type == nil:
		problems = append(problems, "type is required")
	case !d.Type.Valid():
		problems = append(problems, "type must be INCOME or EXPENSE")
	default:
		tpl.Type = *d.Type
	}

	switch {
	case d.Amount == nil:
		problems = append(problems, "amount is required")
	case !d.Amount.IsPositive():
		problems = append(problems, "amount must be greater than zero")
	default:
		tpl.Amount = *d.Amount
	}

	switch {
	case d.Date == nil:
		problems = append(problems, "date is required")
	case !d.Date.IsValid():
		problems = append(problems, "date is not a valid calendar day")
	default:
		tpl.Date = *d.Date
	}

	tpl.Category = strings.TrimSpace(helpers.Value(d.Category))
	if tpl.Category == "" {
		problems = append(problems, "category is required")
	}

	if !tpl.Status.Valid() {
		problems = append(problems, "status must be ACTUAL or PLANNED")
	}
	if !tpl.Recurrence.Valid() {
		problems = append(problems, "recurrence is not supported")
	}
	if tpl.Recurrence != models.RecurrenceNone {
		switch {
		case d.RecurrenceEndDate == nil:
			problems = append(problems, "recurrenceEndDate is required when recurrence is set")
		case !d.RecurrenceEndDate.IsValid():
			problems = append(problems, "recurrenceEndDate is not a valid calendar day")
		default:
			tpl.RecurrenceEndDate = d.RecurrenceEndDate
		}
	}
	if len(tpl.Description) > maxDescriptionLength {
		problems = append(problems, "description is too long")
	}

	if len(problems) > 0 {
		return TransactionTemplate{}, errs.NewValidationErrors(problems)
	}
	return tpl, nil
}

// TransactionPatch updates a single stored row. Unset fields are left alone.
type TransactionPatch struct {
	Type             *models.TransactionType   `json:"type"`
	Amount           *decimal.Decimal          `json:"amount"`
	Date             *civil.Date               `json:"date"`
	Category         *string                   `json:"category"`
	Status           *models.TransactionStatus `json:"status"`
	Recurrence       *models.Recurrence        `json:"recurrence"`
	IncludeInBalance *bool                     `json:"includeInBalance"`
	Description      *string                   `json:"description"`
}

func (p TransactionPatch) Validate() error {
	var problems []string
	if p.Type != nil && !p.Type.Valid() {
		problems = append(problems, "type must be INCOME or EXPENSE")
	}
	if p.Amount != nil && !p.Amount.IsPositive() {
		problems = append(problems, "amount must be greater than zero")
	}
	if p.Date != nil && !p.Date.IsValid() {
		problems = append(problems, "date is not a valid calendar day")
	}
	if p.Category != nil && strings.TrimSpace(*p.Category) == "" {
		problems = append(problems, "category cannot be empty")
	}
	if p.Status != nil && !p.Status.Valid() {
		problems = append(problems, "status must be ACTUAL or PLANNED")
	}
	if p.Recurrence != nil && *p.Recurrence != models.RecurrenceNone {
		problems = append(problems, "stored transactions cannot be made recurring; add a new recurring transaction instead")
	}
	if p.Description != nil && len(strings.TrimSpace(*p.Description)) > maxDescriptionLength {
		problems = append(problems, "description is too long")
	}
	if p.Type == nil && p.Amount == nil && p.Date == nil && p.Category == nil && p.Status == nil &&
		p.Recurrence == nil && p.IncludeInBalance == nil && p.Description == nil {
		problems = append(problems, "patch has no fields")
	}
	if len(problems) > 0 {
		return errs.NewValidationErrors(problems)
	}
	return nil
}

// Apply copies the set fields onto tx. Category resolution is done by the
// caller since it needs the store.
func (p TransactionPatch) Apply(tx *models.Transaction, now time.Time) {
	helpers.Deref(&tx.Type, p.Type)
	helpers.Deref(&tx.Amount, p.Amount)
	helpers.Deref(&tx.Date, p.Date)
	helpers.Deref(&tx.Status, p.Status)
	helpers.Deref(&tx.Recurrence, p.Recurrence)
	helpers.Deref(&tx.IncludeInBalance, p.IncludeInBalance)
	if p.Description != nil {
		tx.Description = strings.TrimSpace(*p.Description)
	}
	if p.Recurrence != nil {
		tx.RecurrenceEndDate = nil
	}
	tx.UpdatedAt = now
}

// AddedBySelf selects transactions authored by the caller.
const AddedBySelf = "@me"

var selfAliases = map[string]bool{
	AddedBySelf:      true,
	"me":             true,
	"я":              true,
	"мои":            true,
	"моё":            true,
	"мое":            true,
	"мои транзакции": true,
}

// IsSelfReference reports whether an addedBy filter means "mine".
func IsSelfReference(addedBy string) bool {
	return selfAliases[strings.ToLower(strings.TrimSpace(addedBy))]
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// TransactionFilter narrows a list. Stores honour From, To, Type and Status;
// the remaining fields are applied in the ledger.
type TransactionFilter struct {
	From     *civil.Date
	To       *civil.Date
	Category string
	Type     *models.TransactionType
	Status   *models.TransactionStatus
	AddedBy  string
	Order    SortOrder
	Limit    int
}

func (f TransactionFilter) Validate() error {
	var problems []string
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		problems = append(problems, "to must not be before from")
	}
	if f.Type != nil && !f.Type.Valid() {
		problems = append(problems, "type must be INCOME or EXPENSE")
	}
	if f.Status != nil && !f.Status.Valid() {
		problems = append(problems, "status must be ACTUAL or PLANNED")
	}
	if f.Order != "" && f.Order != SortAsc && f.Order != SortDesc {
		problems = append(problems, "order must be asc or desc")
	}
	if f.Limit < 0 {
		problems = append(problems, "limit must not be negative")
	}
	if len(problems) > 0 {
		return errs.NewValidationErrors(problems)
	}
	return nil
}

// InRange reports whether d falls inside the filter's inclusive date range.
func (f TransactionFilter) InRange(d civil.Date) bool {
	if f.From != nil && d.Before(*f.From) {
		return false
	}
	if f.To != nil && d.After(*f.To) {
		return false
	}
	return true
}

type DeleteManyRequest struct {
	IDs []string `json:"ids"`
}
