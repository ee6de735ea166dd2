package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/GregMSThompson/household-ledger/internal/errs"
	"github.com/GregMSThompson/household-ledger/internal/models"
)

const (
	spaceColumns      = `space_id, name, invite_token, created_at`
	membershipColumns = `space_id, uid, role, joined_at`
)

func (s *Store) GetSpace(ctx context.Context, spaceID string) (*models.Space, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+spaceColumns+` FROM spaces WHERE space_id = ?`, spaceID)
	return getSpace(row)
}

func (s *Store) GetSpaceByInviteToken(ctx context.Context, token string) (*models.Space, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+spaceColumns+` FROM spaces WHERE invite_token = ?`, token)
	return getSpace(row)
}

func getSpace(row *sql.Row) (*models.Space, error) {
	var (
		sp      models.Space
		created string
	)
	if err := row.Scan(&sp.SpaceID, &sp.Name, &sp.InviteToken, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NewNotFoundError("space not found")
		}
		return nil, errs.NewDatabaseError("read", "failed to get space", err)
	}
	t, err := parseTime(created)
	if err != nil {
		return nil, errs.NewDatabaseError("read", "failed to parse space data", err)
	}
	sp.CreatedAt = t
	return &sp, nil
}

func (s *Store) SetInviteToken(ctx context.Context, spaceID, token string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE spaces SET invite_token = ? WHERE space_id = ?`, token, spaceID)
	if err != nil {
		return errs.NewDatabaseError("update", "failed to set invite token", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errs.NewNotFoundError("space not found")
	}
	return nil
}

func (s *Store) GetMembership(ctx context.Context, spaceID, uid string) (*models.Membership, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE space_id = ? AND uid = ?`, spaceID, uid)
	m, err := scanMembership(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NewNotFoundError("membership not found")
		}
		return nil, errs.NewDatabaseError("read", "failed to get membership", err)
	}
	return m, nil
}

func (s *Store) ListMembershipsByUser(ctx context.Context, uid string) ([]*models.Membership, error) {
	return listMemberships(ctx, s.db, `SELECT `+membershipColumns+` FROM memberships WHERE uid = ? ORDER BY joined_at`, uid)
}

func (s *Store) ListMembers(ctx context.Context, spaceID string) ([]*models.Membership, error) {
	return listMemberships(ctx, s.db, `SELECT `+membershipColumns+` FROM memberships WHERE space_id = ? ORDER BY joined_at`, spaceID)
}

// UpdateMembers reads the member set and applies fn's changes in one
// transaction.
func (s *Store) UpdateMembers(ctx context.Context, spaceID string, fn models.MemberMutation) error {
	return s.withTx(ctx, "update", "failed to update members", func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM spaces WHERE space_id = ?`, spaceID).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errs.NewNotFoundError("space not found")
			}
			return err
		}
		current, err := listMemberships(ctx, tx,
			`SELECT `+membershipColumns+` FROM memberships WHERE space_id = ? ORDER BY joined_at`, spaceID)
		if err != nil {
			return err
		}

		upsert, remove, err := fn(current)
		if err != nil {
			return err
		}
		for _, m := range upsert {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO memberships (`+membershipColumns+`) VALUES (?, ?, ?, ?)
				 ON CONFLICT (space_id, uid) DO UPDATE SET role = excluded.role`,
				spaceID, m.UID, string(m.Role), formatTime(m.JoinedAt),
			); err != nil {
				return err
			}
		}
		for _, uid := range remove {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM memberships WHERE space_id = ? AND uid = ?`, spaceID, uid); err != nil {
				return err
			}
		}
		return nil
	})
}

// CreateSpaceIfNoMembership creates the space, its owner and the owner's
// active-space pointer unless the owner already belongs to any space.
func (s *Store) CreateSpaceIfNoMembership(ctx context.Context, space *models.Space, owner *models.Membership) (bool, error) {
	var created bool
	err := s.withTx(ctx, "create", "failed to create space", func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM memberships WHERE uid = ?`, owner.UID).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO spaces (`+spaceColumns+`) VALUES (?, ?, ?, ?)`,
			space.SpaceID, space.Name, space.InviteToken, formatTime(space.CreatedAt),
		); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO memberships (`+membershipColumns+`) VALUES (?, ?, ?, ?)`,
			space.SpaceID, owner.UID, string(owner.Role), formatTime(owner.JoinedAt),
		); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET active_space_id = ? WHERE uid = ?`, space.SpaceID, owner.UID,
		); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listMemberships(ctx context.Context, q queryer, query string, args ...any) ([]*models.Membership, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.NewDatabaseError("read", "failed to list memberships", err)
	}
	defer rows.Close()

	var out []*models.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, errs.NewDatabaseError("read", "failed to parse membership data", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewDatabaseError("read", "failed to list memberships", err)
	}
	return out, nil
}

func scanMembership(row rowScanner) (*models.Membership, error) {
	var (
		m      models.Membership
		role   string
		joined string
	)
	if err := row.Scan(&m.SpaceID, &m.UID, &role, &joined); err != nil {
		return nil, err
	}
	t, err := parseTime(joined)
	if err != nil {
		return nil, err
	}
	m.Role = models.Role(role)
	m.JoinedAt = t
	return &m, nil
}
