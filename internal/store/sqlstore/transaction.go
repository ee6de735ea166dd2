package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/GregMSThompson/household-ledger/internal/dto"
	"github.com/GregMSThompson/household-ledger/internal/errs"
	"github.com/GregMSThompson/household-ledger/internal/models"
)

const transactionSelect = `
SELECT t.seq, t.transaction_id, t.space_id, t.type, t.amount, t.date, t.category_id,
       COALESCE(c.name, t.category_label), t.status, t.recurrence, t.recurrence_end_date,
       t.include_in_balance, t.description, t.added_by, t.added_by_name, t.created_at, t.updated_at
FROM transactions t
LEFT JOIN categories c ON c.category_id = t.category_id`

// CreateTransactions writes every row in one transaction. Seq is the
// autoincrement key, so rows of one call keep their order.
func (s *Store) CreateTransactions(ctx context.Context, txs []*models.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	return s.withTx(ctx, "create", "failed to create transactions", func(tx *sql.Tx) error {
		for _, t := range txs {
			res, err := tx.ExecContext(ctx, `
INSERT INTO transactions (transaction_id, space_id, type, amount, date, category_id, category_label,
    status, recurrence, recurrence_end_date, include_in_balance, description, added_by, added_by_name,
    created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				t.TransactionID, t.SpaceID, string(t.Type), t.Amount.String(), t.Date.String(),
				nullString(t.CategoryID), t.Category, string(t.Status), recurrenceOf(t),
				endDate(t), t.IncludeInBalance, t.Description, t.AddedBy, t.AddedByName,
				formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
			)
			if err != nil {
				return err
			}
			seq, err := res.LastInsertId()
			if err != nil {
				return err
			}
			t.Seq = seq
		}
		return nil
	})
}

func (s *Store) GetTransaction(ctx context.Context, transactionID string) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, transactionSelect+` WHERE t.transaction_id = ?`, transactionID)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NewNotFoundError("transaction not found")
		}
		return nil, errs.NewDatabaseError("read", "failed to get transaction", err)
	}
	return t, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, t *models.Transaction) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE transactions SET type = ?, amount = ?, date = ?, category_id = ?, category_label = ?, status = ?,
    recurrence = ?, recurrence_end_date = ?, include_in_balance = ?, description = ?, updated_at = ?
WHERE space_id = ? AND transaction_id = ?`,
		string(t.Type), t.Amount.String(), t.Date.String(), nullString(t.CategoryID), t.Category,
		string(t.Status), recurrenceOf(t), endDate(t), t.IncludeInBalance, t.Description,
		formatTime(t.UpdatedAt), t.SpaceID, t.TransactionID,
	)
	if err != nil {
		return errs.NewDatabaseError("update", "failed to update transaction", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errs.NewNotFoundError("transaction not found")
	}
	return nil
}

func (s *Store) DeleteTransactions(ctx context.Context, spaceID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.withTx(ctx, "delete", "failed to delete transactions", func(tx *sql.Tx) error {
		args := append([]any{spaceID}, stringArgs(ids)...)
		_, err := tx.ExecContext(ctx,
			`DELETE FROM transactions WHERE space_id = ? AND transaction_id IN (`+placeholders(len(ids))+`)`, args...)
		return err
	})
}

// ListTransactions applies every store-level filter in SQL, ordered by date
// then insertion.
func (s *Store) ListTransactions(ctx context.Context, spaceID string, f dto.TransactionFilter) ([]*models.Transaction, error) {
	where := []string{"t.space_id = ?"}
	args := []any{spaceID}
	if f.From != nil {
		where = append(where, "t.date >= ?")
		args = append(args, f.From.String())
	}
	if f.To != nil {
		where = append(where, "t.date <= ?")
		args = append(args, f.To.String())
	}
	if f.Type != nil {
		where = append(where, "t.type = ?")
		args = append(args, string(*f.Type))
	}
	if f.Status != nil {
		where = append(where, "t.status = ?")
		args = append(args, string(*f.Status))
	}

	rows, err := s.db.QueryContext(ctx,
		transactionSelect+` WHERE `+strings.Join(where, " AND ")+` ORDER BY t.date, t.seq`, args...)
	if err != nil {
		return nil, errs.NewDatabaseError("read", "failed to list transactions", err)
	}
	defer rows.Close()

	var out []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, errs.NewDatabaseError("read", "failed to parse transaction data", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewDatabaseError("read", "failed to list transactions", err)
	}
	return out, nil
}

// ClearSpace deletes every transaction and category of the space.
func (s *Store) ClearSpace(ctx context.Context, spaceID string) error {
	return s.withTx(ctx, "delete", "failed to clear space", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE space_id = ?`, spaceID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE space_id = ?`, spaceID)
		return err
	})
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		t                  models.Transaction
		typ, amount, date  string
		categoryID, end    sql.NullString
		status, recurrence string
		created, updated   string
	)
	if err := row.Scan(&t.Seq, &t.TransactionID, &t.SpaceID, &typ, &amount, &date, &categoryID,
		&t.Category, &status, &recurrence, &end, &t.IncludeInBalance, &t.Description,
		&t.AddedBy, &t.AddedByName, &created, &updated); err != nil {
		return nil, err
	}

	var err error
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	if t.Date, err = civil.ParseDate(date); err != nil {
		return nil, err
	}
	if end.Valid {
		d, err := civil.ParseDate(end.String)
		if err != nil {
			return nil, err
		}
		t.RecurrenceEndDate = &d
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	t.Type = models.TransactionType(typ)
	t.Status = models.TransactionStatus(status)
	t.Recurrence = models.Recurrence(recurrence)
	t.CategoryID = categoryID.String
	return &t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func recurrenceOf(t *models.Transaction) string {
	if t.Recurrence == "" {
		return string(models.RecurrenceNone)
	}
	return string(t.Recurrence)
}

func endDate(t *models.Transaction) sql.NullString {
	if t.RecurrenceEndDate == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.RecurrenceEndDate.String(), Valid: true}
}
