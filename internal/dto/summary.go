package dto

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/GregMSThompson/household-ledger/internal/errs"
	"github.com/GregMSThompson/household-ledger/internal/models"
)

// Month is a calendar month, written as YYYY-MM on the wire.
type Month struct {
	Year  int
	Month time.Month
}

func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, errs.NewValidationError("month must be YYYY-MM")
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

func MonthOf(d civil.Date) Month {
	return Month{Year: d.Year, Month: d.Month}
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) First() civil.Date {
	return civil.Date{Year: m.Year, Month: m.Month, Day: 1}
}

func (m Month) Last() civil.Date {
	return civil.Date{Year: m.Year, Month: m.Month, Day: m.Days()}
}

func (m Month) Days() int {
	return time.Date(m.Year, m.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

type CashGap struct {
	Date   civil.Date      `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

type Summary struct {
	Month            string          `json:"month"`
	Income           decimal.Decimal `json:"income"`
	Expense          decimal.Decimal `json:"expense"`
	Balance          decimal.Decimal `json:"balance"`
	ProjectedBalance decimal.Decimal `json:"projectedBalance"`
	CashGap          *CashGap        `json:"cashGap"`
	AvgDailyIncome   decimal.Decimal `json:"avgDailyIncome"`
	AvgDailyExpense  decimal.Decimal `json:"avgDailyExpense"`
}

type Balance struct {
	Date    civil.Date      `json:"date"`
	Balance decimal.Decimal `json:"balance"`
}

// CalendarEntry is a transaction shown on a calendar day. Recurring is set
// when the day was matched through the transaction's rule rather than its
// own date.
type CalendarEntry struct {
	*models.Transaction
	Recurring bool `json:"recurring"`
}

type CalendarDay struct {
	Date         civil.Date      `json:"date"`
	Entries      []CalendarEntry `json:"entries"`
	Income       decimal.Decimal `json:"income"`
	Expense      decimal.Decimal `json:"expense"`
	EndOfDay     decimal.Decimal `json:"endOfDayBalance"`
	PendingCount int             `json:"pendingCount"`
}

type Calendar struct {
	Month string        `json:"month"`
	Days  []CalendarDay `json:"days"`
}
