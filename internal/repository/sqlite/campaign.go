package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/listmirror/internal/apperror"
	"github.com/sakif/listmirror/internal/model"
	"github.com/sakif/listmirror/internal/repository"
)

var _ repository.CampaignRepository = (*DB)(nil)

// UpsertCampaign inserts or updates a campaign row.
//
// The sync path inserts campaigns before their merge fields exist, so the
// incoming tags can be empty; the CASE expressions make sure an empty tag
// never overwrites one that populate already resolved.
func (db *DB) UpsertCampaign(ctx context.Context, campaign *model.Campaign) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO campaigns (id, title, list_id, user_id, video_tag, image_tag)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title     = excluded.title,
			list_id   = excluded.list_id,
			user_id   = excluded.user_id,
			video_tag = CASE WHEN excluded.video_tag = '' THEN campaigns.video_tag ELSE excluded.video_tag END,
			image_tag = CASE WHEN excluded.image_tag = '' THEN campaigns.image_tag ELSE excluded.image_tag END`,
		campaign.ID, campaign.Title, campaign.ListID, campaign.UserID,
		campaign.VideoTag, campaign.ImageTag,
	)
	if err != nil {
		return apperror.Store(fmt.Sprintf("upsert campaign %s", campaign.ID), err)
	}
	return nil
}

func (db *DB) GetCampaignByID(ctx context.Context, id string) (*model.Campaign, error) {
	var c model.Campaign
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, title, list_id, user_id, video_tag, image_tag
		 FROM campaigns WHERE id = ?`, id,
	).Scan(&c.ID, &c.Title, &c.ListID, &c.UserID, &c.VideoTag, &c.ImageTag)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("campaign", id)
	}
	if err != nil {
		return nil, apperror.Store(fmt.Sprintf("get campaign %s", id), err)
	}
	return &c, nil
}

func (db *DB) CampaignsByListID(ctx context.Context, listID string) ([]model.Campaign, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, title, list_id, user_id, video_tag, image_tag
		 FROM campaigns WHERE list_id = ?`, listID,
	)
	if err != nil {
		return nil, apperror.Store(fmt.Sprintf("list campaigns for list %s", listID), err)
	}
	defer rows.Close()

	var campaigns []model.Campaign
	for rows.Next() {
		var c model.Campaign
		if err := rows.Scan(&c.ID, &c.Title, &c.ListID, &c.UserID, &c.VideoTag, &c.ImageTag); err != nil {
			return nil, apperror.Store("scanning campaign row", err)
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Store("iterating campaign rows", err)
	}
	return campaigns, nil
}
