// Package sqlstore is the single-file SQLite backend. It exposes the same
// method set as the Firestore store and is selected with STORE_BACKEND=sqlite.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/GregMSThompson/household-ledger/internal/errs"
)

// Fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store persists users, spaces, categories, transactions and assistant
// transcripts in one SQLite database. Transactions reference their category
// by id, so a rename is visible everywhere without rewriting rows.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at path and migrates it.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	dsn := DSN(path)
	if err := RunMigrations(dsn); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection serializes writers; every transaction body uses its tx.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// DSN enables foreign keys and a busy timeout on every connection.
func DSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn in a transaction, committing on success.
func (s *Store) withTx(ctx context.Context, op, message string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.NewDatabaseError(op, "failed to begin transaction", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return dbError(err, op, message)
	}
	if err := tx.Commit(); err != nil {
		return errs.NewDatabaseError(op, "failed to commit transaction", err)
	}
	return nil
}

// dbError passes typed errors through and wraps everything else.
func dbError(err error, op, message string) error {
	if err == nil {
		return nil
	}
	if isTyped(err) {
		return err
	}
	return errs.NewDatabaseError(op, message, err)
}

func isTyped(err error) bool {
	var (
		notFound   *errs.NotFoundError
		forbidden  *errs.ForbiddenError
		conflict   *errs.ConflictError
		validation *errs.ValidationError
		exists     *errs.AlreadyExistsError
	)
	return errors.As(err, &notFound) || errors.As(err, &forbidden) || errors.As(err, &conflict) ||
		errors.As(err, &validation) || errors.As(err, &exists)
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

type rowScanner interface {
	Scan(dest ...any) error
}
