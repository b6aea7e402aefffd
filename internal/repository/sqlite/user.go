package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/listmirror/internal/apperror"
	"github.com/sakif/listmirror/internal/model"
	"github.com/sakif/listmirror/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// InsertUser records a user if absent. The id comes from the provider, so a
// second registration of the same account is a no-op. INSERT OR IGNORE keeps
// the existing row (and its watermark) untouched.
func (db *DB) InsertUser(ctx context.Context, user *model.User) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (id, username, email) VALUES (?, ?, ?)`,
		user.ID, user.Username, user.Email,
	)
	if err != nil {
		return apperror.Store(fmt.Sprintf("insert user %d", user.ID), err)
	}
	return nil
}

// GetUserByID returns apperror.ErrNotFound when no user exists with that id.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	var (
		u          model.User
		lastSynced sql.NullInt64
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, username, email, last_synced FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Username, &u.Email, &lastSynced)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("user", fmt.Sprintf("%d", id))
	}
	if err != nil {
		return nil, apperror.Store(fmt.Sprintf("get user %d", id), err)
	}
	if lastSynced.Valid {
		t := time.Unix(lastSynced.Int64, 0).UTC()
		u.LastSynced = &t
	}
	return &u, nil
}

// UpdateLastSynced advances the user's watermark. Stored as unix seconds.
func (db *DB) UpdateLastSynced(ctx context.Context, userID int64, at time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET last_synced = ? WHERE id = ?`,
		at.Unix(), userID,
	)
	if err != nil {
		return apperror.Store(fmt.Sprintf("update watermark for user %d", userID), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperror.Store("reading watermark update result", err)
	}
	if n == 0 {
		return apperror.NotFound("user", fmt.Sprintf("%d", userID))
	}
	return nil
}
