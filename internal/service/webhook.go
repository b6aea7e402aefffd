package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/listmirror/internal/apperror"
	"github.com/sakif/listmirror/internal/model"
	"github.com/sakif/listmirror/internal/repository"
)

// EventType is the kind of inbound webhook notification.
type EventType string

const (
	EventSubscribe EventType = "subscribe"
	EventProfile   EventType = "profile"
)

// Event is one asynchronous notification pushed by the provider when list
// membership data changes.
type Event struct {
	Type      EventType
	Email     string
	ListID    string
	FirstName string
	LastName  string
}

// FullName joins the name parts the way the member listing reports them.
func (e Event) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(e.FirstName) + " " + strings.TrimSpace(e.LastName))
}

// WebhookService reconciles inbound subscribe/profile events against the
// mirror and re-propagates merge-field values for the affected member.
type WebhookService struct {
	store  repository.Store
	api    MarketingAPI
	logger *slog.Logger
}

func NewWebhookService(store repository.Store, api MarketingAPI, logger *slog.Logger) *WebhookService {
	return &WebhookService{
		store:  store,
		api:    api,
		logger: logger,
	}
}

// Handle processes one event. The access token is resolved transitively:
// list → owning user → newest session; if that chain is broken the event
// fails with an authorization error rather than being dropped silently, so
// the caller decides whether to retry or discard.
func (s *WebhookService) Handle(ctx context.Context, event Event) error {
	sess, err := s.store.LatestSessionForList(ctx, event.ListID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.Unauthorized(fmt.Sprintf("no session resolvable for list %s", event.ListID))
		}
		return err
	}

	switch event.Type {
	case EventSubscribe:
		return s.handleSubscribe(ctx, sess, event)
	case EventProfile:
		return s.handleProfile(ctx, sess, event)
	default:
		return apperror.ValidationFailed("type", fmt.Sprintf("unknown event type %q", event.Type))
	}
}

// handleSubscribe mirrors the new member and writes the placeholder values
// for every locally known campaign on the list in one batch.
func (s *WebhookService) handleSubscribe(ctx context.Context, sess *model.Session, event Event) error {
	if _, err := s.store.InsertMemberIfAbsent(ctx, &model.Member{
		Email:    event.Email,
		FullName: event.FullName(),
		ListID:   event.ListID,
	}); err != nil {
		return err
	}

	s.logger.Info("subscriber mirrored",
		slog.String("email", event.Email),
		slog.String("listId", event.ListID),
	)
	return s.propagateFields(ctx, sess, event.ListID, event.Email)
}

// handleProfile updates the stored name and re-propagates merge-field values,
// but only when the name actually changed. A repeated delivery of the same
// profile event performs zero remote calls.
func (s *WebhookService) handleProfile(ctx context.Context, sess *model.Session, event Event) error {
	member, err := s.store.GetMember(ctx, event.ListID, event.Email)
	if err != nil {
		return err
	}

	name := event.FullName()
	if member.FullName == name {
		s.logger.Debug("profile event matches stored name, nothing to do",
			slog.String("email", event.Email),
		)
		return nil
	}

	if err := s.store.UpdateMemberName(ctx, event.ListID, event.Email, name); err != nil {
		return err
	}
	return s.propagateFields(ctx, sess, event.ListID, event.Email)
}

// propagateFields issues the same batched merge-field write primitive the
// populate path uses, covering this one member across every campaign known
// on the list. A list with no populated campaigns produces no batch at all.
func (s *WebhookService) propagateFields(ctx context.Context, sess *model.Session, listID, email string) error {
	campaigns, err := s.store.CampaignsByListID(ctx, listID)
	if err != nil {
		return err
	}

	ops, err := memberFieldOps(listID, email, campaigns)
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}
	return s.api.SubmitBatch(ctx, tokenOf(sess), ops)
}
