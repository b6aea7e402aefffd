package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sakif/listmirror/internal/apperror"
	"github.com/sakif/listmirror/internal/config"
	"github.com/sakif/listmirror/internal/model"
	"github.com/sakif/listmirror/internal/repository"
)

// CampaignReport is the per-campaign outcome of one sync pass: the campaign
// and the members this pass observed for the first time.
type CampaignReport struct {
	CampaignID string         `json:"campaignId"`
	Title      string         `json:"title"`
	NewMembers []model.Member `json:"newMembers"`
}

// SyncService runs one reconciliation pass per call: list remote campaigns
// changed since the user's watermark, mirror the new ones, pull their members
// and report what was newly observed.
type SyncService struct {
	store  repository.Store
	api    MarketingAPI
	cfg    *config.Config
	logger *slog.Logger

	// now is swappable so tests can pin the watermark instant.
	now func() time.Time
}

func NewSyncService(store repository.Store, api MarketingAPI, cfg *config.Config, logger *slog.Logger) *SyncService {
	return &SyncService{
		store:  store,
		api:    api,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Sync performs one full or incremental reconciliation pass for a session.
//
// The new watermark is written BEFORE the first remote request, set to the
// instant the pass started. The trade is deliberate: items changing while
// the pass runs may be missed until a later change touches them again, but
// items this pass already began to process are never re-reported, and a
// crash mid-pass cannot be silently forgotten on retry.
//
// There is no wrapping transaction. Any remote or store failure aborts the
// rest of the pass and surfaces to the caller; inserts already committed
// stay. Every insert is idempotent, so retrying a failed sync is safe.
// Two concurrent passes for the same user are not excluded; the watermark
// is last-writer-wins.
func (s *SyncService) Sync(ctx context.Context, sessionID string) ([]CampaignReport, error) {
	sess, err := resolveSession(ctx, s.store, sessionID)
	if err != nil {
		return nil, err
	}
	tok := tokenOf(sess)

	user, err := s.store.GetUserByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	oldWatermark := user.LastSynced

	startedAt := s.now().UTC()
	if err := s.store.UpdateLastSynced(ctx, user.ID, startedAt); err != nil {
		return nil, err
	}

	campaigns, err := s.api.ListCampaigns(ctx, tok, oldWatermark)
	if err != nil {
		return nil, err
	}

	s.logger.Info("sync pass started",
		slog.Int64("userId", user.ID),
		slog.Int("campaigns", len(campaigns)),
	)

	reports := make([]CampaignReport, 0, len(campaigns))
	for _, remote := range campaigns {
		listID := remote.Recipients.ListID
		if listID == "" {
			// No list association means nothing to mirror and nothing to
			// propagate to. Skip and drop; never persist, never fail the pass.
			s.logger.Warn("skipping campaign without list", slog.String("campaignId", remote.ID))
			continue
		}

		known := true
		if _, err := s.store.GetCampaignByID(ctx, remote.ID); err != nil {
			if !errors.Is(err, apperror.ErrNotFound) {
				return nil, err
			}
			known = false
		}

		if !known {
			if _, err := ensureList(ctx, s.store, s.api, tok, user.ID, listID, s.cfg.WebhookURL, s.logger); err != nil {
				return nil, err
			}
			if err := s.store.UpsertCampaign(ctx, &model.Campaign{
				ID:     remote.ID,
				Title:  remote.Settings.Title,
				ListID: listID,
				UserID: user.ID,
			}); err != nil {
				return nil, err
			}
		}

		// A campaign seen for the first time gets the full member list to
		// backfill; a known one only needs members changed since the old
		// watermark.
		since := oldWatermark
		if !known {
			since = nil
		}
		members, err := s.api.ListMembers(ctx, tok, listID, since)
		if err != nil {
			return nil, err
		}

		newMembers := []model.Member{}
		for _, m := range members {
			member := model.Member{
				Email:      m.EmailAddress,
				FullName:   m.FullName,
				ListID:     listID,
				CampaignID: remote.ID,
			}
			inserted, err := s.store.InsertMemberIfAbsent(ctx, &member)
			if err != nil {
				return nil, err
			}
			if inserted {
				newMembers = append(newMembers, member)
			}
		}

		reports = append(reports, CampaignReport{
			CampaignID: remote.ID,
			Title:      remote.Settings.Title,
			NewMembers: newMembers,
		})
	}

	s.logger.Info("sync pass finished",
		slog.Int64("userId", user.ID),
		slog.Int("reported", len(reports)),
	)
	return reports, nil
}
