package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/listmirror/internal/auth"
)

// SessionRegistrar turns OAuth authorization codes into sessions and checks
// existing session ids.
type SessionRegistrar interface {
	Register(ctx context.Context, code string) (string, error)
	Validate(ctx context.Context, sessionID string) (bool, error)
}

// AuthHandler serves the OAuth login flow and session validation: HandleIndex
// hands the client the provider login URL, HandleCallback receives the
// authorization code and registers a session, HandleValidate checks that a
// session id is still known.
type AuthHandler struct {
	provider *auth.MailchimpProvider
	sessions SessionRegistrar
	logger   *slog.Logger
}

func NewAuthHandler(provider *auth.MailchimpProvider, sessions SessionRegistrar, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		provider: provider,
		sessions: sessions,
		logger:   logger,
	}
}

// HandleIndex returns the login URL to start the OAuth flow.
//
// HTTP: GET /
//
// The state is random per request and stored in a short-lived cookie; the
// callback verifies the provider echoed it back, which blocks CSRF-initiated
// flows.
func (h *AuthHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{
		"login_url": h.provider.AuthURL(state),
	})
}

// HandleCallback completes the OAuth flow.
//
// HTTP: GET /auth/token?code=xxx&state=yyy
//
// The code is exchanged for an access token and account metadata, the user
// and session rows are written, and the opaque session id goes back to the
// client. The token itself never leaves the server.
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "code query param missing in callback",
		})
		return
	}

	// The state cookie is set when the login URL is issued; a callback arriving
	// without it did not start here and is rejected outright, never exchanged.
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "missing OAuth state",
		})
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid OAuth state",
		})
		return
	}
	// State cookies are single use.
	http.SetCookie(w, &http.Cookie{Name: "oauth_state", Value: "", Path: "/", MaxAge: -1})

	sessionID, err := h.sessions.Register(r.Context(), code)
	if err != nil {
		h.logger.Error("session registration failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"session_id": sessionID})
}

// HandleValidate reports whether a session id resolves.
//
// HTTP: GET /validate_session?session_id=xxx
func (h *AuthHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "session_id query param is required",
		})
		return
	}

	ok, err := h.sessions.Validate(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "invalid session code",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "valid"})
}
