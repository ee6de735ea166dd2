package services

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/GregMSThompson/household-ledger/internal/dto"
	"github.com/GregMSThompson/household-ledger/internal/models"
	"github.com/GregMSThompson/household-ledger/internal/recurrence"
)

type aggregationStore interface {
	memberGetter
	transactionLister
}

type aggregationService struct {
	store    aggregationStore
	location *time.Location
	clockNow func() time.Time
}

// NewAggregationService derives summaries on demand. loc decides which
// calendar day "today" is.
func NewAggregationService(store aggregationStore, loc *time.Location) *aggregationService {
	if loc == nil {
		loc = time.UTC
	}
	return &aggregationService{
		store:    store,
		location: loc,
		clockNow: time.Now,
	}
}

func (s *aggregationService) Today() civil.Date {
	return civil.DateOf(s.clockNow().In(s.location))
}

func (s *aggregationService) Summarize(ctx context.Context, uid, spaceID string, month dto.Month) (dto.Summary, error) {
	txs, err := s.load(ctx, uid, spaceID)
	if err != nil {
		return dto.Summary{}, err
	}
	return Summarize(txs, month, s.Today()), nil
}

// PendingConfirmations lists planned transactions whose day has come.
func (s *aggregationService) PendingConfirmations(ctx context.Context, uid, spaceID string) ([]*models.Transaction, error) {
	txs, err := s.load(ctx, uid, spaceID)
	if err != nil {
		return nil, err
	}
	return PendingConfirmations(txs, s.Today()), nil
}

// BalanceAt is the signed total of every balance-included transaction on
// or before date.
func (s *aggregationService) BalanceAt(ctx context.Context, uid, spaceID string, date civil.Date) (dto.Balance, error) {
	txs, err := s.load(ctx, uid, spaceID)
	if err != nil {
		return dto.Balance{}, err
	}
	return dto.Balance{Date: date, Balance: BalanceAt(txs, date)}, nil
}

// OnDate returns the transactions effective on date: rows dated that day
// plus rows whose recurrence rule lands on it.
func (s *aggregationService) OnDate(ctx context.Context, uid, spaceID string, date civil.Date) ([]dto.CalendarEntry, error) {
	txs, err := s.load(ctx, uid, spaceID)
	if err != nil {
		return nil, err
	}
	return EffectiveOn(txs, date), nil
}

func (s *aggregationService) Calendar(ctx context.Context, uid, spaceID string, month dto.Month) (dto.Calendar, error) {
	txs, err := s.load(ctx, uid, spaceID)
	if err != nil {
		return dto.Calendar{}, err
	}
	return BuildCalendar(txs, month, s.Today()), nil
}

func (s *aggregationService) load(ctx context.Context, uid, spaceID string) ([]*models.Transaction, error) {
	if _, err := requireMember(ctx, s.store, uid, spaceID); err != nil {
		return nil, err
	}
	txs, err := s.store.ListTransactions(ctx, spaceID, dto.TransactionFilter{})
	if err != nil {
		return nil, err
	}
	SortTransactions(txs, dto.SortAsc)
	return txs, nil
}

// Summarize computes month totals and walks the space-wide running balance.
// The stored IncludeInBalance flag is respected for every status.
//
//   - Income and Expense cover only days inside month.
//   - CashGap is the first point where the running balance is negative on
//     a day that is today or later.
//   - ProjectedBalance is the running balance after the last transaction
//     dated on or before the month's last day.
//   - Balance is the running balance after every transaction.
func Summarize(txs []*models.Transaction, month dto.Month, today civil.Date) dto.Summary {
	first, last := month.First(), month.Last()
	included := includedInBalance(txs)

	income, expense := decimal.Zero, decimal.Zero
	running, projected := decimal.Zero, decimal.Zero
	var gap *dto.CashGap

	for _, tx := range included {
		if !tx.Date.Before(first) && !tx.Date.After(last) {
			if tx.Type == models.Income {
				income = income.Add(tx.Amount)
			} else {
				expense = expense.Add(tx.Amount)
			}
		}

		running = running.Add(tx.Signed())
		if gap == nil && running.IsNegative() && !tx.Date.Before(today) {
			gap = &dto.CashGap{Date: tx.Date, Amount: running}
		}
		if !tx.Date.After(last) {
			projected = running
		}
	}

	days := decimal.NewFromInt(int64(month.Days()))
	return dto.Summary{
		Month:            month.String(),
		Income:           income,
		Expense:          expense,
		Balance:          running,
		ProjectedBalance: projected,
		CashGap:          gap,
		AvgDailyIncome:   income.Div(days).Round(2),
		AvgDailyExpense:  expense.Div(days).Round(2),
	}
}

func PendingConfirmations(txs []*models.Transaction, today civil.Date) []*models.Transaction {
	out := make([]*models.Transaction, 0)
	for _, tx := range txs {
		if tx.PendingOn(today) {
			out = append(out, tx)
		}
	}
	SortTransactions(out, dto.SortAsc)
	return out
}

func BalanceAt(txs []*models.Transaction, date civil.Date) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		if tx.IncludeInBalance && !tx.Date.After(date) {
			total = total.Add(tx.Signed())
		}
	}
	return total
}

func EffectiveOn(txs []*models.Transaction, date civil.Date) []dto.CalendarEntry {
	out := make([]dto.CalendarEntry, 0)
	for _, tx := range txs {
		if recurrence.OccursOn(tx.Date, date, tx.Recurrence) {
			out = append(out, dto.CalendarEntry{Transaction: tx, Recurring: tx.Date != date})
		}
	}
	return out
}

// BuildCalendar lays out month day by day. Day totals and end-of-day
// balances use stored rows only; rule matches are shown but not counted.
func BuildCalendar(txs []*models.Transaction, month dto.Month, today civil.Date) dto.Calendar {
	included := includedInBalance(txs)
	first := month.First()

	running := decimal.Zero
	next := 0
	for next < len(included) && included[next].Date.Before(first) {
		running = running.Add(included[next].Signed())
		next++
	}

	days := make([]dto.CalendarDay, 0, month.Days())
	for d := first; !d.After(month.Last()); d = d.AddDays(1) {
		day := dto.CalendarDay{
			Date:    d,
			Entries: EffectiveOn(txs, d),
			Income:  decimal.Zero,
			Expense: decimal.Zero,
		}
		for next < len(included) && included[next].Date == d {
			tx := included[next]
			if tx.Type == models.Income {
				day.Income = day.Income.Add(tx.Amount)
			} else {
				day.Expense = day.Expense.Add(tx.Amount)
			}
			running = running.Add(tx.Signed())
			next++
		}
		for _, e := range day.Entries {
			if !e.Recurring && e.PendingOn(today) {
				day.PendingCount++
			}
		}
		day.EndOfDay = running
		days = append(days, day)
	}

	return dto.Calendar{Month: month.String(), Days: days}
}

// includedInBalance returns the balance-included rows sorted by (date, seq).
func includedInBalance(txs []*models.Transaction) []*models.Transaction {
	sorted := append([]*models.Transaction(nil), txs...)
	SortTransactions(sorted, dto.SortAsc)
	out := sorted[:0]
	for _, tx := range sorted {
		if tx.IncludeInBalance {
			out = append(out, tx)
		}
	}
	return out
}
