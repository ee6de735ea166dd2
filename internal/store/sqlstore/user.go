package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/GregMSThompson/household-ledger/internal/errs"
	"github.com/GregMSThompson/household-ledger/internal/models"
)

const userColumns = `uid, name, avatar, active_space_id, created_at, updated_at`

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		user.UID, user.Name, user.Avatar, user.ActiveSpaceID, formatTime(user.CreatedAt), formatTime(user.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.NewAlreadyExistsError("user already exists")
		}
		return errs.NewDatabaseError("create", "failed to create user", err)
	}
	return nil
}

func (s *Store) UpdateUserProfile(ctx context.Context, uid, name, avatar string, at time.Time) error {
	return s.updateUser(ctx, `UPDATE users SET name = ?, avatar = ?, updated_at = ? WHERE uid = ?`,
		name, avatar, formatTime(at), uid)
}

// SetActiveSpace records the user's selected space. An empty spaceID clears
// the selection.
func (s *Store) SetActiveSpace(ctx context.Context, uid, spaceID string) error {
	return s.updateUser(ctx, `UPDATE users SET active_space_id = ?, updated_at = ? WHERE uid = ?`,
		spaceID, formatTime(time.Now()), uid)
}

func (s *Store) updateUser(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errs.NewDatabaseError("update", "failed to update user", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errs.NewNotFoundError("user not found")
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, uid string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE uid = ?`, uid)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NewNotFoundError("user not found")
		}
		return nil, errs.NewDatabaseError("read", "failed to get user", err)
	}
	return user, nil
}

// GetUsers returns the users that exist among uids, keyed by uid.
func (s *Store) GetUsers(ctx context.Context, uids []string) (map[string]*models.User, error) {
	out := make(map[string]*models.User, len(uids))
	if len(uids) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE uid IN (`+placeholders(len(uids))+`)`,
		stringArgs(uids)...)
	if err != nil {
		return nil, errs.NewDatabaseError("read", "failed to get users", err)
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, errs.NewDatabaseError("read", "failed to parse user data", err)
		}
		out[user.UID] = user
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewDatabaseError("read", "failed to get users", err)
	}
	return out, nil
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u                models.User
		created, updated string
	)
	if err := row.Scan(&u.UID, &u.Name, &u.Avatar, &u.ActiveSpaceID, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if u.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &u, nil
}
