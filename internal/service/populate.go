package service

import (
	"context"
	"log/slog"

	"github.com/sakif/listmirror/internal/apperror"
	"github.com/sakif/listmirror/internal/config"
	"github.com/sakif/listmirror/internal/mailchimp"
	"github.com/sakif/listmirror/internal/model"
	"github.com/sakif/listmirror/internal/repository"
)

// MergeFieldTags is the pair of server-assigned tags resolved for a campaign.
type MergeFieldTags struct {
	VideoTag string `json:"video_tag"`
	ImageTag string `json:"image_tag"`
}

// PopulateService ensures a campaign's personalization fields exist on its
// list and pushes the placeholder values to every current member.
type PopulateService struct {
	store  repository.Store
	api    MarketingAPI
	cfg    *config.Config
	logger *slog.Logger
}

func NewPopulateService(store repository.Store, api MarketingAPI, cfg *config.Config, logger *slog.Logger) *PopulateService {
	return &PopulateService{
		store:  store,
		api:    api,
		cfg:    cfg,
		logger: logger,
	}
}

// Populate resolves (creating only if absent) the campaign's Video/ and
// Image/ merge fields, mirrors the campaign with its tags, and issues ONE
// batched write setting both fields for every member of the campaign's list.
//
// The campaign detail is fetched remotely, not from the mirror, so the list
// association reflects current remote truth. The final batch call returning
// success means the batch was ACCEPTED; per-member application is not
// inspected and not claimed.
func (s *PopulateService) Populate(ctx context.Context, sessionID, campaignID string) (*MergeFieldTags, error) {
	sess, err := resolveSession(ctx, s.store, sessionID)
	if err != nil {
		return nil, err
	}
	tok := tokenOf(sess)

	campaign, err := s.api.GetCampaign(ctx, tok, campaignID)
	if err != nil {
		return nil, err
	}
	listID := campaign.Recipients.ListID
	if listID == "" {
		return nil, apperror.ValidationFailed("campaign", "campaign has no list to populate")
	}

	videoField, err := s.api.GetOrCreateMergeField(ctx, tok, listID, VideoFieldPrefix+campaign.ID)
	if err != nil {
		return nil, err
	}
	imageField, err := s.api.GetOrCreateMergeField(ctx, tok, listID, ImageFieldPrefix+campaign.ID)
	if err != nil {
		return nil, err
	}

	created, err := ensureList(ctx, s.store, s.api, tok, sess.UserID, listID, s.cfg.WebhookURL, s.logger)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpsertCampaign(ctx, &model.Campaign{
		ID:       campaign.ID,
		Title:    campaign.Settings.Title,
		ListID:   listID,
		UserID:   sess.UserID,
		VideoTag: videoField.Tag,
		ImageTag: imageField.Tag,
	}); err != nil {
		return nil, err
	}

	members, err := s.api.ListMembers(ctx, tok, listID, nil)
	if err != nil {
		return nil, err
	}

	// Backfill the member mirror for a list we have never seen before; for a
	// known list the rows are already there (inserts stay idempotent anyway).
	if created {
		for _, m := range members {
			if _, err := s.store.InsertMemberIfAbsent(ctx, &model.Member{
				Email:      m.EmailAddress,
				FullName:   m.FullName,
				ListID:     listID,
				CampaignID: campaign.ID,
			}); err != nil {
				return nil, err
			}
		}
	}

	tagged := []model.Campaign{{VideoTag: videoField.Tag, ImageTag: imageField.Tag}}
	var ops []mailchimp.BatchOperation
	for _, m := range members {
		memberOps, err := memberFieldOps(listID, m.EmailAddress, tagged)
		if err != nil {
			return nil, err
		}
		ops = append(ops, memberOps...)
	}
	if len(ops) > 0 {
		if err := s.api.SubmitBatch(ctx, tok, ops); err != nil {
			return nil, err
		}
	}

	s.logger.Info("merge fields populated",
		slog.String("campaignId", campaign.ID),
		slog.String("listId", listID),
		slog.Int("members", len(members)),
	)
	return &MergeFieldTags{VideoTag: videoField.Tag, ImageTag: imageField.Tag}, nil
}
