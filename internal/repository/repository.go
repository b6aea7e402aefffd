// Package repository defines the store interfaces the services depend on.
// The sqlite subpackage implements all of them on a single DB type; services
// receive the interfaces and never see the concrete store.
//
// Every write here is idempotent on purpose: no transaction wraps the
// multi-step sequences in the services, so surviving a partial failure means
// each individual statement must be safe to repeat.
package repository

import (
	"context"
	"time"

	"github.com/sakif/listmirror/internal/model"
)

type UserRepository interface {
	// InsertUser records a user if no row with the same id exists yet.
	InsertUser(ctx context.Context, user *model.User) error
	// GetUserByID returns apperror.ErrNotFound when the user is unknown.
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	// UpdateLastSynced advances the user's sync watermark.
	UpdateLastSynced(ctx context.Context, userID int64, at time.Time) error
}

type SessionRepository interface {
	InsertSession(ctx context.Context, session *model.Session) error
	// GetSession returns apperror.ErrNotFound for unknown session ids.
	GetSession(ctx context.Context, id string) (*model.Session, error)
	// LatestSessionForList resolves the multi-hop join list → owning user →
	// newest session as ONE query, so the "which session is the active one"
	// rule lives in a single place. Returns apperror.ErrNotFound when the
	// list is unknown or the owner has no sessions left.
	LatestSessionForList(ctx context.Context, listID string) (*model.Session, error)
}

type ListRepository interface {
	InsertList(ctx context.Context, list *model.List) error
	// GetListByID returns apperror.ErrNotFound when the list has never been
	// recorded locally.
	GetListByID(ctx context.Context, id string) (*model.List, error)
}

type CampaignRepository interface {
	// UpsertCampaign inserts or updates a campaign. Empty merge-field tags on
	// the incoming record never clobber tags already stored.
	UpsertCampaign(ctx context.Context, campaign *model.Campaign) error
	GetCampaignByID(ctx context.Context, id string) (*model.Campaign, error)
	CampaignsByListID(ctx context.Context, listID string) ([]model.Campaign, error)
}

type MemberRepository interface {
	// InsertMemberIfAbsent inserts the member unless (email, list) already
	// exists; reports whether a row was actually written.
	InsertMemberIfAbsent(ctx context.Context, member *model.Member) (bool, error)
	GetMember(ctx context.Context, listID, email string) (*model.Member, error)
	UpdateMemberName(ctx context.Context, listID, email, fullName string) error
}

// Store bundles every repository; the sqlite DB satisfies it directly.
type Store interface {
	UserRepository
	SessionRepository
	ListRepository
	CampaignRepository
	MemberRepository
}
