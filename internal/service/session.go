package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rs/xid"

	"github.com/sakif/listmirror/internal/apperror"
	"github.com/sakif/listmirror/internal/auth"
	"github.com/sakif/listmirror/internal/model"
	"github.com/sakif/listmirror/internal/repository"
)

// SessionService turns a completed OAuth authorization into a stored session:
// exchange the code, record the account on first sight, hand back an opaque
// session identifier that maps to the access credential.
type SessionService struct {
	provider *auth.MailchimpProvider
	store    repository.Store
	logger   *slog.Logger
}

func NewSessionService(provider *auth.MailchimpProvider, store repository.Store, logger *slog.Logger) *SessionService {
	return &SessionService{
		provider: provider,
		store:    store,
		logger:   logger,
	}
}

// Register completes the OAuth flow for an authorization code and returns the
// new session id. The user row is inserted only if the account has never
// registered before; sessions are always appended.
func (s *SessionService) Register(ctx context.Context, code string) (string, error) {
	accessToken, account, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("registering session: %w", err)
	}

	if err := s.store.InsertUser(ctx, &model.User{
		ID:       account.UserID,
		Username: account.AccountName,
		Email:    account.Login.Email,
	}); err != nil {
		return "", err
	}

	session := &model.Session{
		ID:          xid.New().String(),
		UserID:      account.UserID,
		AccessToken: accessToken,
		DC:          account.DC,
	}
	if err := s.store.InsertSession(ctx, session); err != nil {
		return "", err
	}

	s.logger.Info("session registered",
		slog.String("sessionId", session.ID),
		slog.Int64("userId", account.UserID),
		slog.String("dc", account.DC),
	)
	return session.ID, nil
}

// Validate reports whether a session id resolves to a stored session.
func (s *SessionService) Validate(ctx context.Context, sessionID string) (bool, error) {
	_, err := resolveSession(ctx, s.store, sessionID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, apperror.ErrUnauthorized):
		return false, nil
	default:
		return false, err
	}
}
