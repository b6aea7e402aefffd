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

var _ repository.SessionRepository = (*DB)(nil)

// InsertSession records a fresh session. Sessions are insert-only; a repeat
// login creates a new row rather than touching old ones.
func (db *DB) InsertSession(ctx context.Context, session *model.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, access_token, dc, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		session.ID, session.UserID, session.AccessToken, session.DC, session.CreatedAt,
	)
	if err != nil {
		return apperror.Store(fmt.Sprintf("insert session for user %d", session.UserID), err)
	}
	return nil
}

func (db *DB) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var s model.Session
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, access_token, dc, created_at FROM sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.UserID, &s.AccessToken, &s.DC, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("session", id)
	}
	if err != nil {
		return nil, apperror.Store(fmt.Sprintf("get session %s", id), err)
	}
	return &s, nil
}

// LatestSessionForList resolves list → owning user → newest session in one
// query. A user can hold several sessions; the newest one is "the" active
// session by definition, so the consistency rule is explicit here rather than
// implicit in call order.
func (db *DB) LatestSessionForList(ctx context.Context, listID string) (*model.Session, error) {
	var s model.Session
	err := db.conn.QueryRowContext(ctx,
		`SELECT s.id, s.user_id, s.access_token, s.dc, s.created_at
		 FROM sessions s
		 JOIN lists l ON l.user_id = s.user_id
		 WHERE l.id = ?
		 ORDER BY s.created_at DESC, s.rowid DESC
		 LIMIT 1`, listID,
	).Scan(&s.ID, &s.UserID, &s.AccessToken, &s.DC, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("session for list", listID)
	}
	if err != nil {
		return nil, apperror.Store(fmt.Sprintf("resolve session for list %s", listID), err)
	}
	return &s, nil
}
