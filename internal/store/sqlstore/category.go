package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/GregMSThompson/household-ledger/internal/errs"
	"github.com/GregMSThompson/household-ledger/internal/models"
)

const categoryColumns = `category_id, space_id, name, type, color, icon, created_at`

func (s *Store) ListCategories(ctx context.Context, spaceID string) ([]*models.Category, error) {
	return listCategories(ctx, s.db,
		`SELECT `+categoryColumns+` FROM categories WHERE space_id = ? ORDER BY created_at, rowid`, spaceID)
}

func (s *Store) GetCategory(ctx context.Context, spaceID, categoryID string) (*models.Category, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE space_id = ? AND category_id = ?`, spaceID, categoryID)
	c, err := scanCategory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NewNotFoundError("category not found")
		}
		return nil, errs.NewDatabaseError("read", "failed to get category", err)
	}
	return c, nil
}

func (s *Store) CreateCategory(ctx context.Context, c *models.Category) error {
	if err := insertCategory(ctx, s.db, c); err != nil {
		return errs.NewDatabaseError("create", "failed to create category", err)
	}
	return nil
}

// UpdateCategory saves c. Linked rows follow the rename through the join;
// their stored label is refreshed too, as are unlinked rows still carrying
// oldName, so the name survives a later delete. Unlinked rows are never
// relinked.
func (s *Store) UpdateCategory(ctx context.Context, c *models.Category, oldName string) error {
	return s.withTx(ctx, "update", "failed to update category", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE categories SET name = ?, type = ?, color = ?, icon = ? WHERE space_id = ? AND category_id = ?`,
			c.Name, string(c.Type), c.Color, c.Icon, c.SpaceID, c.CategoryID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return errs.NewNotFoundError("category not found")
		}
		if c.Name == oldName {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE transactions SET category_label = ? WHERE space_id = ? AND category_id = ?`,
			c.Name, c.SpaceID, c.CategoryID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE transactions SET category_label = ?
			 WHERE space_id = ? AND category_id IS NULL AND category_label = ?`,
			c.Name, c.SpaceID, oldName)
		return err
	})
}

// DeleteCategory unlinks referencing transactions; they keep their label.
func (s *Store) DeleteCategory(ctx context.Context, spaceID, categoryID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM categories WHERE space_id = ? AND category_id = ?`, spaceID, categoryID); err != nil {
		return errs.NewDatabaseError("delete", "failed to delete category", err)
	}
	return nil
}

// ResolveCategory returns the oldest category matching candidate's name and
// type, or creates candidate. Lookup and insert share one transaction.
func (s *Store) ResolveCategory(ctx context.Context, candidate *models.Category) (*models.Category, bool, error) {
	var (
		resolved *models.Category
		created  bool
	)
	err := s.withTx(ctx, "create", "failed to resolve category", func(tx *sql.Tx) error {
		existing, err := listCategories(ctx, tx,
			`SELECT `+categoryColumns+` FROM categories WHERE space_id = ? AND type = ? ORDER BY created_at, rowid`,
			candidate.SpaceID, string(candidate.Type))
		if err != nil {
			return err
		}
		if match := models.MatchCategory(existing, candidate.Name, candidate.Type); match != nil {
			resolved = match
			return nil
		}
		if err := insertCategory(ctx, tx, candidate); err != nil {
			return err
		}
		resolved, created = candidate, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return resolved, created, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertCategory(ctx context.Context, db execer, c *models.Category) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO categories (`+categoryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.CategoryID, c.SpaceID, c.Name, string(c.Type), c.Color, c.Icon, formatTime(c.CreatedAt))
	return err
}

func listCategories(ctx context.Context, q queryer, query string, args ...any) ([]*models.Category, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.NewDatabaseError("read", "failed to list categories", err)
	}
	defer rows.Close()

	var out []*models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, errs.NewDatabaseError("read", "failed to parse category data", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewDatabaseError("read", "failed to list categories", err)
	}
	return out, nil
}

func scanCategory(row rowScanner) (*models.Category, error) {
	var (
		c       models.Category
		typ     string
		created string
	)
	if err := row.Scan(&c.CategoryID, &c.SpaceID, &c.Name, &typ, &c.Color, &c.Icon, &created); err != nil {
		return nil, err
	}
	t, err := parseTime(created)
	if err != nil {
		return nil, err
	}
	c.Type = models.TransactionType(typ)
	c.CreatedAt = t
	return &c, nil
}
