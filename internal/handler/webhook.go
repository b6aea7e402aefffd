package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/listmirror/internal/apperror"
	"github.com/sakif/listmirror/internal/service"
)

// EventProcessor applies one provider callback to local state.
type EventProcessor interface {
	Handle(ctx context.Context, event service.Event) error
}

// WebhookHandler receives provider event callbacks. The provider posts
// form-encoded bodies with bracketed keys, e.g. data[merges][FNAME].
type WebhookHandler struct {
	webhooks EventProcessor
	logger   *slog.Logger
}

func NewWebhookHandler(webhooks EventProcessor, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks, logger: logger}
}

// HandleEvent parses and dispatches one webhook callback.
//
// HTTP: POST /webhook
func (h *WebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, apperror.ValidationFailed("body", "malformed form body"))
		return
	}

	event, err := parseEvent(r.PostForm)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("webhook event",
		slog.String("type", string(event.Type)),
		slog.String("listId", event.ListID),
	)

	if err := h.webhooks.Handle(r.Context(), event); err != nil {
		h.logger.Error("webhook handling failed",
			slog.String("type", string(event.Type)),
			slog.String("listId", event.ListID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseEvent validates the bracketed form keys the provider sends. Every
// field of the contract must be present and non-blank, the name fields
// included: a profile event delivered without them would look like a rename
// to the empty string and clobber the stored member name.
func parseEvent(form map[string][]string) (service.Event, error) {
	get := func(key string) string {
		vals := form[key]
		if len(vals) == 0 {
			return ""
		}
		return strings.TrimSpace(vals[0])
	}

	eventType := get("type")
	if eventType == "" {
		return service.Event{}, apperror.ValidationFailed("type", "type is required")
	}
	email := get("data[email]")
	if email == "" {
		return service.Event{}, apperror.ValidationFailed("data[email]", "email is required")
	}
	listID := get("data[list_id]")
	if listID == "" {
		return service.Event{}, apperror.ValidationFailed("data[list_id]", "list id is required")
	}
	firstName := get("data[merges][FNAME]")
	if firstName == "" {
		return service.Event{}, apperror.ValidationFailed("data[merges][FNAME]", "merges FNAME is required")
	}
	lastName := get("data[merges][LNAME]")
	if lastName == "" {
		return service.Event{}, apperror.ValidationFailed("data[merges][LNAME]", "merges LNAME is required")
	}

	return service.Event{
		Type:      service.EventType(eventType),
		Email:     email,
		ListID:    listID,
		FirstName: firstName,
		LastName:  lastName,
	}, nil
}
