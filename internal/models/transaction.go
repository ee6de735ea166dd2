package models

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

type TransactionStatus string

const (
	StatusActual  TransactionStatus = "ACTUAL"
	StatusPlanned TransactionStatus = "PLANNED"
)

func (s TransactionStatus) Valid() bool {
	return s == StatusActual || s == StatusPlanned
}

type Recurrence string

const (
	RecurrenceNone     Recurrence = "NONE"
	RecurrenceDaily    Recurrence = "DAILY"
	RecurrenceWeekly   Recurrence = "WEEKLY"
	RecurrenceMonthly  Recurrence = "MONTHLY"
	RecurrenceYearly   Recurrence = "YEARLY"
	RecurrenceWeekdays Recurrence = "WEEKDAYS"
	RecurrenceWeekends Recurrence = "WEEKENDS"
)

var RecurrenceList = []string{
	string(RecurrenceNone),
	string(RecurrenceDaily),
	string(RecurrenceWeekly),
	string(RecurrenceMonthly),
	string(RecurrenceYearly),
	string(RecurrenceWeekdays),
	string(RecurrenceWeekends),
}

func (r Recurrence) Valid() bool {
	for _, v := range RecurrenceList {
		if string(r) == v {
			return true
		}
	}
	return false
}

// Transaction is one materialized ledger row. Recurring templates are
// expanded before storage, so stored rows normally carry RecurrenceNone.
type Transaction struct {
	TransactionID     string            `json:"transactionId"`
	SpaceID           string            `json:"spaceId"`
	Type              TransactionType   `json:"type"`
	Amount            decimal.Decimal   `json:"amount"`
	Date              civil.Date        `json:"date"`
	CategoryID        string            `json:"categoryId,omitempty"`
	Category          string            `json:"category"`
	Status            TransactionStatus `json:"status"`
	Recurrence        Recurrence        `json:"recurrence"`
	RecurrenceEndDate *civil.Date       `json:"recurrenceEndDate,omitempty"`
	IncludeInBalance  bool              `json:"includeInBalance"`
	Description       string            `json:"description,omitempty"`
	AddedBy           string            `json:"addedBy"`
	AddedByName       string            `json:"addedByName,omitempty"`
	Seq               int64             `json:"seq"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// Signed returns the amount with income positive and expense negative.
func (t *Transaction) Signed() decimal.Decimal {
	if t.Type == Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}

// PendingOn reports whether a planned transaction is due for confirmation.
func (t *Transaction) PendingOn(today civil.Date) bool {
	return t.Status == StatusPlanned && !t.Date.After(today)
}

// Less orders transactions by date, then insertion sequence, then id.
func Less(a, b *Transaction) bool {
	if a.Date != b.Date {
		return a.Date.Before(b.Date)
	}
	if a.Seq != b.Seq {
		return a.Seq < b.Seq
	}
	return a.TransactionID < b.TransactionID
}
