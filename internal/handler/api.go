package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/listmirror/internal/apperror"
	"github.com/sakif/listmirror/internal/mailchimp"
	"github.com/sakif/listmirror/internal/model"
	"github.com/sakif/listmirror/internal/repository"
	"github.com/sakif/listmirror/internal/service"
)

// sessionHeader carries the opaque session id on authenticated requests.
const sessionHeader = "session-id"

// RemoteGetter is the slice of the API client the passthrough listings need.
type RemoteGetter interface {
	Get(ctx context.Context, tok mailchimp.Token, path string) ([]byte, error)
}

// SyncRunner runs one reconciliation pass for a session.
type SyncRunner interface {
	Sync(ctx context.Context, sessionID string) ([]service.CampaignReport, error)
}

// FieldPopulator ensures a campaign's merge fields exist and fills them in.
type FieldPopulator interface {
	Populate(ctx context.Context, sessionID, campaignID string) (*service.MergeFieldTags, error)
}

// APIHandler serves the authenticated API surface: raw provider listings,
// sync passes and merge-field population.
type APIHandler struct {
	sessions repository.SessionRepository
	remote   RemoteGetter
	sync     SyncRunner
	populate FieldPopulator
	logger   *slog.Logger
}

func NewAPIHandler(
	sessions repository.SessionRepository,
	remote RemoteGetter,
	sync SyncRunner,
	populate FieldPopulator,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		sessions: sessions,
		remote:   remote,
		sync:     sync,
		populate: populate,
		logger:   logger,
	}
}

// token resolves the request's session header into a remote credential.
func (h *APIHandler) token(r *http.Request) (mailchimp.Token, error) {
	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		return mailchimp.Token{}, apperror.Unauthorized("session-id header is required")
	}
	sess, err := h.sessions.GetSession(r.Context(), sessionID)
	if errors.Is(err, apperror.ErrNotFound) {
		return mailchimp.Token{}, apperror.Unauthorized(fmt.Sprintf("no session with id %s", sessionID))
	}
	if err != nil {
		return mailchimp.Token{}, err
	}
	return tokenOf(sess), nil
}

func tokenOf(s *model.Session) mailchimp.Token {
	return mailchimp.Token{AccessToken: s.AccessToken, DC: s.DC}
}

// relay fetches a provider collection and passes the response through.
func (h *APIHandler) relay(w http.ResponseWriter, r *http.Request, path string) {
	tok, err := h.token(r)
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := h.remote.Get(r.Context(), tok, path)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// HandleLists relays the provider's list collection.
//
// HTTP: GET /lists
func (h *APIHandler) HandleLists(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, "lists")
}

// HandleCampaigns relays the provider's campaign collection.
//
// HTTP: GET /campaigns
func (h *APIHandler) HandleCampaigns(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, "campaigns")
}

// HandleMembers relays one list's member collection.
//
// HTTP: GET /get_members/{listID}
func (h *APIHandler) HandleMembers(w http.ResponseWriter, r *http.Request) {
	listID := chi.URLParam(r, "listID")
	h.relay(w, r, fmt.Sprintf("lists/%s/members", listID))
}

// HandleSync runs one reconciliation pass for the caller's session and
// returns the per-campaign report of newly observed members.
//
// HTTP: POST /sync
func (h *APIHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		writeError(w, apperror.Unauthorized("session-id header is required"))
		return
	}

	reports, err := h.sync.Sync(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("sync failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaigns": reports})
}

// HandlePopulate ensures a campaign's merge fields exist and pushes the
// placeholder values to all members of its list.
//
// HTTP: POST /populate_merge_fields/{campaignID}
func (h *APIHandler) HandlePopulate(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		writeError(w, apperror.Unauthorized("session-id header is required"))
		return
	}
	campaignID := chi.URLParam(r, "campaignID")
	if campaignID == "" {
		writeError(w, apperror.ValidationFailed("campaign_id", "campaign id is required"))
		return
	}

	tags, err := h.populate.Populate(r.Context(), sessionID, campaignID)
	if err != nil {
		h.logger.Error("populate failed",
			slog.String("campaignId", campaignID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}
