package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/listmirror/internal/apperror"
	"github.com/sakif/listmirror/internal/model"
	"github.com/sakif/listmirror/internal/repository"
)

var _ repository.ListRepository = (*DB)(nil)

// InsertList records a list the first time it is seen. INSERT OR IGNORE makes
// a re-run of the surrounding operation harmless; the original row (and its
// webhook id) wins.
func (db *DB) InsertList(ctx context.Context, list *model.List) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO lists (id, user_id, webhook_id) VALUES (?, ?, ?)`,
		list.ID, list.UserID, list.WebhookID,
	)
	if err != nil {
		return apperror.Store(fmt.Sprintf("insert list %s", list.ID), err)
	}
	return nil
}

func (db *DB) GetListByID(ctx context.Context, id string) (*model.List, error) {
	var l model.List
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, webhook_id FROM lists WHERE id = ?`, id,
	).Scan(&l.ID, &l.UserID, &l.WebhookID)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("list", id)
	}
	if err != nil {
		return nil, apperror.Store(fmt.Sprintf("get list %s", id), err)
	}
	return &l, nil
}
