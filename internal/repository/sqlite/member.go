package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/listmirror/internal/apperror"
	"github.com/sakif/listmirror/internal/model"
	"github.com/sakif/listmirror/internal/repository"
)

var _ repository.MemberRepository = (*DB)(nil)

// InsertMemberIfAbsent inserts the member unless (email, list) already
// exists. RowsAffected distinguishes a fresh insert from a no-op, which the
// sync report uses to list only newly observed members.
func (db *DB) InsertMemberIfAbsent(ctx context.Context, member *model.Member) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO members (email, full_name, list_id, campaign_id)
		 VALUES (?, ?, ?, ?)`,
		member.Email, member.FullName, member.ListID, member.CampaignID,
	)
	if err != nil {
		return false, apperror.Store(fmt.Sprintf("insert member %s", member.Email), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperror.Store("reading member insert result", err)
	}
	return n > 0, nil
}

func (db *DB) GetMember(ctx context.Context, listID, email string) (*model.Member, error) {
	var m model.Member
	err := db.conn.QueryRowContext(ctx,
		`SELECT email, full_name, list_id, campaign_id
		 FROM members WHERE list_id = ? AND email = ?`, listID, email,
	).Scan(&m.Email, &m.FullName, &m.ListID, &m.CampaignID)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("member", email)
	}
	if err != nil {
		return nil, apperror.Store(fmt.Sprintf("get member %s", email), err)
	}
	return &m, nil
}

func (db *DB) UpdateMemberName(ctx context.Context, listID, email, fullName string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE members SET full_name = ? WHERE list_id = ? AND email = ?`,
		fullName, listID, email,
	)
	if err != nil {
		return apperror.Store(fmt.Sprintf("update member %s", email), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperror.Store("reading member update result", err)
	}
	if n == 0 {
		return apperror.NotFound("member", email)
	}
	return nil
}
