package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/listmirror/internal/apperror"
	"github.com/sakif/listmirror/internal/model"
)

// seedListWithCampaigns prepares the usual webhook scenario: one user with a
// session, one recorded list, and populated campaigns carrying their tags.
func seedListWithCampaigns(t *testing.T, store *mockStore) {
	t.Helper()
	ctx := context.Background()
	seedSession(t, store, 7)
	require.NoError(t, store.InsertList(ctx, &model.List{ID: "L1", UserID: 7, WebhookID: "wh-1"}))
	require.NoError(t, store.UpsertCampaign(ctx, &model.Campaign{
		ID: "C1", Title: "One", ListID: "L1", UserID: 7, VideoTag: "v1", ImageTag: "i1",
	}))
	require.NoError(t, store.UpsertCampaign(ctx, &model.Campaign{
		ID: "C2", Title: "Two", ListID: "L1", UserID: 7, VideoTag: "v2", ImageTag: "i2",
	}))
}

func newWebhookService(store *mockStore, api *mockAPI) *WebhookService {
	return NewWebhookService(store, api, testLogger())
}

func TestWebhookUnresolvableListFailsWithAuthError(t *testing.T) {
	svc := newWebhookService(newMockStore(), newMockAPI())
	err := svc.Handle(context.Background(), Event{
		Type: EventSubscribe, Email: "a@b.com", ListID: "unknown-list",
	})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestWebhookUnknownEventType(t *testing.T) {
	store := newMockStore()
	seedListWithCampaigns(t, store)
	err := newWebhookService(store, newMockAPI()).Handle(context.Background(), Event{
		Type: "unsubscribe", Email: "a@b.com", ListID: "L1",
	})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

// The end-to-end subscribe scenario: a new member on a list with two
// populated campaigns gets one member row and one batch of four PATCH
// sub-operations (v1, i1, v2, i2).
func TestSubscribeEventEndToEnd(t *testing.T) {
	store := newMockStore()
	api := newMockAPI()
	seedListWithCampaigns(t, store)

	err := newWebhookService(store, api).Handle(context.Background(), Event{
		Type:      EventSubscribe,
		Email:     "a@b.com",
		ListID:    "L1",
		FirstName: "Jane",
		LastName:  "Doe",
	})
	require.NoError(t, err)

	// Exactly one member row, name joined from the event parts.
	member, err := store.GetMember(context.Background(), "L1", "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", member.FullName)
	assert.Len(t, store.members, 1)

	// One batch, four sub-operations, all PATCHing this member.
	require.Len(t, api.batches, 1)
	ops := api.batches[0]
	require.Len(t, ops, 4)

	values := decodeFieldValues(t, ops, "lists/L1/members/a@b.com")
	assert.Equal(t, PlaceholderVideoURL, values["v1"])
	assert.Equal(t, PlaceholderImageURL, values["i1"])
	assert.Equal(t, PlaceholderVideoURL, values["v2"])
	assert.Equal(t, PlaceholderImageURL, values["i2"])
}

// A replayed subscribe event is harmless: member insert is a no-op, the
// batch is re-issued with identical placeholder values.
func TestSubscribeEventReplay(t *testing.T) {
	store := newMockStore()
	api := newMockAPI()
	seedListWithCampaigns(t, store)
	svc := newWebhookService(store, api)

	event := Event{Type: EventSubscribe, Email: "a@b.com", ListID: "L1", FirstName: "Jane", LastName: "Doe"}
	require.NoError(t, svc.Handle(context.Background(), event))
	require.NoError(t, svc.Handle(context.Background(), event))

	assert.Len(t, store.members, 1)
}

func TestProfileEventUnknownMember(t *testing.T) {
	store := newMockStore()
	seedListWithCampaigns(t, store)

	err := newWebhookService(store, newMockAPI()).Handle(context.Background(), Event{
		Type: EventProfile, Email: "ghost@b.com", ListID: "L1", FirstName: "G", LastName: "Host",
	})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestProfileEventSameNameIsNoOp(t *testing.T) {
	store := newMockStore()
	api := newMockAPI()
	seedListWithCampaigns(t, store)
	_, err := store.InsertMemberIfAbsent(context.Background(), &model.Member{
		Email: "a@b.com", FullName: "Jane Doe", ListID: "L1",
	})
	require.NoError(t, err)

	err = newWebhookService(store, api).Handle(context.Background(), Event{
		Type: EventProfile, Email: "a@b.com", ListID: "L1", FirstName: "Jane", LastName: "Doe",
	})
	require.NoError(t, err)

	// Unchanged name: zero outbound merge-field requests.
	assert.Empty(t, api.batches)
	member, err := store.GetMember(context.Background(), "L1", "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", member.FullName)
}

func TestProfileEventNameChangeRepropagates(t *testing.T) {
	store := newMockStore()
	api := newMockAPI()
	seedListWithCampaigns(t, store)
	_, err := store.InsertMemberIfAbsent(context.Background(), &model.Member{
		Email: "a@b.com", FullName: "Jane Doe", ListID: "L1",
	})
	require.NoError(t, err)

	err = newWebhookService(store, api).Handle(context.Background(), Event{
		Type: EventProfile, Email: "a@b.com", ListID: "L1", FirstName: "Jane", LastName: "Smith",
	})
	require.NoError(t, err)

	// Name stored, exactly one batched write covering all campaigns on the
	// member's list.
	member, err := store.GetMember(context.Background(), "L1", "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "Jane Smith", member.FullName)

	require.Len(t, api.batches, 1)
	assert.Len(t, api.batches[0], 4)
}

// A subscribe on a list whose campaigns were never populated (no tags yet)
// mirrors the member but sends no batch.
func TestSubscribeWithoutPopulatedCampaigns(t *testing.T) {
	store := newMockStore()
	api := newMockAPI()
	ctx := context.Background()
	seedSession(t, store, 7)
	require.NoError(t, store.InsertList(ctx, &model.List{ID: "L1", UserID: 7, WebhookID: "wh-1"}))
	require.NoError(t, store.UpsertCampaign(ctx, &model.Campaign{ID: "C1", Title: "Bare", ListID: "L1", UserID: 7}))

	err := newWebhookService(store, api).Handle(ctx, Event{
		Type: EventSubscribe, Email: "a@b.com", ListID: "L1", FirstName: "Jane", LastName: "Doe",
	})
	require.NoError(t, err)

	assert.Len(t, store.members, 1)
	assert.Empty(t, api.batches)
}
