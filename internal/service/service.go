// Package service contains the synchronization and merge-field-propagation
// engine: sync passes, merge-field population and webhook reconciliation.
// Services receive the store interfaces and the remote API as dependencies
// and hold no state between calls; every operation resolves its own token
// and reads the store fresh.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/listmirror/internal/apperror"
	"github.com/sakif/listmirror/internal/mailchimp"
	"github.com/sakif/listmirror/internal/model"
	"github.com/sakif/listmirror/internal/repository"
)

// Placeholder values written into every member's personalization fields.
const (
	PlaceholderVideoURL = "vimeo.com/226053498"
	PlaceholderImageURL = "s3.amazonaws.com/creare-websites-wpms-legacy/wp-content/uploads/sites/32/2016/03/01200959/canstockphoto22402523-arcos-creator.com_-1024x1024.jpg"
)

// Merge-field name prefixes; the campaign id is appended to scope a field
// pair to its campaign.
const (
	VideoFieldPrefix = "Video/"
	ImageFieldPrefix = "Image/"
)

// MarketingAPI is the remote surface the services need. mailchimp.Client
// implements it; tests substitute a mock.
type MarketingAPI interface {
	GetCampaign(ctx context.Context, tok mailchimp.Token, campaignID string) (*mailchimp.Campaign, error)
	ListCampaigns(ctx context.Context, tok mailchimp.Token, since *time.Time) ([]mailchimp.Campaign, error)
	ListMembers(ctx context.Context, tok mailchimp.Token, listID string, since *time.Time) ([]mailchimp.Member, error)
	GetOrCreateMergeField(ctx context.Context, tok mailchimp.Token, listID, name string) (*mailchimp.MergeField, error)
	InstallWebhook(ctx context.Context, tok mailchimp.Token, listID, callbackURL string) (string, error)
	SubmitBatch(ctx context.Context, tok mailchimp.Token, ops []mailchimp.BatchOperation) error
}

var _ MarketingAPI = (*mailchimp.Client)(nil)

// tokenOf converts a stored session into the remote credential.
func tokenOf(s *model.Session) mailchimp.Token {
	return mailchimp.Token{AccessToken: s.AccessToken, DC: s.DC}
}

// resolveSession looks up a session, mapping an unknown id to an
// authorization error: from the caller's point of view the failure is "you
// are not logged in", not "a row is missing".
func resolveSession(ctx context.Context, sessions repository.SessionRepository, sessionID string) (*model.Session, error) {
	sess, err := sessions.GetSession(ctx, sessionID)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.Unauthorized(fmt.Sprintf("no session with id %s", sessionID))
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// ensureList records a list locally on first sight: install the remote
// webhook, then insert the row with the returned webhook id. Reports whether
// the list was new. Webhook installation precedes the insert so a row never
// exists without its webhook; a crash in between re-installs on retry, which
// the provider tolerates.
func ensureList(
	ctx context.Context,
	store repository.ListRepository,
	api MarketingAPI,
	tok mailchimp.Token,
	userID int64,
	listID, webhookURL string,
	logger *slog.Logger,
) (bool, error) {
	_, err := store.GetListByID(ctx, listID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return false, err
	}

	webhookID, err := api.InstallWebhook(ctx, tok, listID, webhookURL)
	if err != nil {
		return false, err
	}
	if err := store.InsertList(ctx, &model.List{ID: listID, UserID: userID, WebhookID: webhookID}); err != nil {
		return false, err
	}

	logger.Info("list recorded and webhook installed",
		slog.String("listId", listID),
		slog.String("webhookId", webhookID),
	)
	return true, nil
}

// memberFieldOps builds the batched merge-field writes for one member across
// campaigns: one PATCH sub-operation per merge field, each setting the fixed
// placeholder value. Campaigns whose fields were never populated carry empty
// tags and contribute nothing.
func memberFieldOps(listID, email string, campaigns []model.Campaign) ([]mailchimp.BatchOperation, error) {
	var ops []mailchimp.BatchOperation
	for _, c := range campaigns {
		if c.VideoTag != "" {
			op, err := mailchimp.MemberMergePatch(listID, email, map[string]string{c.VideoTag: PlaceholderVideoURL})
			if err != nil {
				return nil, err
			}
			ops = append(ops, op)
		}
		if c.ImageTag != "" {
			op, err := mailchimp.MemberMergePatch(listID, email, map[string]string{c.ImageTag: PlaceholderImageURL})
			if err != nil {
				return nil, err
			}
			ops = append(ops, op)
		}
	}
	return ops, nil
}
