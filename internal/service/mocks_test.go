package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/sakif/listmirror/internal/apperror"
	"github.com/sakif/listmirror/internal/config"
	"github.com/sakif/listmirror/internal/mailchimp"
	"github.com/sakif/listmirror/internal/model"
	"github.com/sakif/listmirror/internal/repository"
)

// =========================================================================
// MOCK STORE
// =========================================================================
//
// In-memory implementation of repository.Store with the same semantics as
// the sqlite store: idempotent inserts, tag-preserving campaign upserts,
// newest-session resolution for lists.

type mockStore struct {
	users     map[int64]*model.User
	sessions  []*model.Session
	lists     map[string]*model.List
	campaigns map[string]*model.Campaign
	members   map[string]*model.Member // key: listID + "|" + email
}

var _ repository.Store = (*mockStore)(nil)

func newMockStore() *mockStore {
	return &mockStore{
		users:     make(map[int64]*model.User),
		lists:     make(map[string]*model.List),
		campaigns: make(map[string]*model.Campaign),
		members:   make(map[string]*model.Member),
	}
}

func memberKey(listID, email string) string { return listID + "|" + email }

func (m *mockStore) InsertUser(_ context.Context, user *model.User) error {
	if _, ok := m.users[user.ID]; ok {
		return nil
	}
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *mockStore) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", fmt.Sprintf("%d", id))
	}
	result := *u
	return &result, nil
}

func (m *mockStore) UpdateLastSynced(_ context.Context, userID int64, at time.Time) error {
	u, ok := m.users[userID]
	if !ok {
		return apperror.NotFound("user", fmt.Sprintf("%d", userID))
	}
	t := at
	u.LastSynced = &t
	return nil
}

func (m *mockStore) InsertSession(_ context.Context, session *model.Session) error {
	stored := *session
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	m.sessions = append(m.sessions, &stored)
	return nil
}

func (m *mockStore) GetSession(_ context.Context, id string) (*model.Session, error) {
	for _, s := range m.sessions {
		if s.ID == id {
			result := *s
			return &result, nil
		}
	}
	return nil, apperror.NotFound("session", id)
}

func (m *mockStore) LatestSessionForList(_ context.Context, listID string) (*model.Session, error) {
	list, ok := m.lists[listID]
	if !ok {
		return nil, apperror.NotFound("session for list", listID)
	}
	var candidates []*model.Session
	for _, s := range m.sessions {
		if s.UserID == list.UserID {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return nil, apperror.NotFound("session for list", listID)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})
	result := *candidates[0]
	return &result, nil
}

func (m *mockStore) InsertList(_ context.Context, list *model.List) error {
	if _, ok := m.lists[list.ID]; ok {
		return nil
	}
	stored := *list
	m.lists[list.ID] = &stored
	return nil
}

func (m *mockStore) GetListByID(_ context.Context, id string) (*model.List, error) {
	l, ok := m.lists[id]
	if !ok {
		return nil, apperror.NotFound("list", id)
	}
	result := *l
	return &result, nil
}

func (m *mockStore) UpsertCampaign(_ context.Context, campaign *model.Campaign) error {
	stored := *campaign
	if existing, ok := m.campaigns[campaign.ID]; ok {
		if stored.VideoTag == "" {
			stored.VideoTag = existing.VideoTag
		}
		if stored.ImageTag == "" {
			stored.ImageTag = existing.ImageTag
		}
	}
	m.campaigns[campaign.ID] = &stored
	return nil
}

func (m *mockStore) GetCampaignByID(_ context.Context, id string) (*model.Campaign, error) {
	c, ok := m.campaigns[id]
	if !ok {
		return nil, apperror.NotFound("campaign", id)
	}
	result := *c
	return &result, nil
}

func (m *mockStore) CampaignsByListID(_ context.Context, listID string) ([]model.Campaign, error) {
	var out []model.Campaign
	for _, c := range m.campaigns {
		if c.ListID == listID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStore) InsertMemberIfAbsent(_ context.Context, member *model.Member) (bool, error) {
	key := memberKey(member.ListID, member.Email)
	if _, ok := m.members[key]; ok {
		return false, nil
	}
	stored := *member
	m.members[key] = &stored
	return true, nil
}

func (m *mockStore) GetMember(_ context.Context, listID, email string) (*model.Member, error) {
	mem, ok := m.members[memberKey(listID, email)]
	if !ok {
		return nil, apperror.NotFound("member", email)
	}
	result := *mem
	return &result, nil
}

func (m *mockStore) UpdateMemberName(_ context.Context, listID, email, fullName string) error {
	mem, ok := m.members[memberKey(listID, email)]
	if !ok {
		return apperror.NotFound("member", email)
	}
	mem.FullName = fullName
	return nil
}

// =========================================================================
// MOCK REMOTE API
// =========================================================================

type memberListCall struct {
	listID string
	since  *time.Time
}

type mockAPI struct {
	campaigns     []mailchimp.Campaign
	membersByList map[string][]mailchimp.Member
	mergeFields   map[string][]mailchimp.MergeField // per list
	nextTag       int

	campaignSince []*time.Time
	memberCalls   []memberListCall
	fieldCreates  int
	webhooks      []string // list ids a webhook was installed on
	batches       [][]mailchimp.BatchOperation

	listCampaignsErr error
	submitBatchErr   error
}

var _ MarketingAPI = (*mockAPI)(nil)

func newMockAPI() *mockAPI {
	return &mockAPI{
		membersByList: make(map[string][]mailchimp.Member),
		mergeFields:   make(map[string][]mailchimp.MergeField),
	}
}

func (m *mockAPI) GetCampaign(_ context.Context, _ mailchimp.Token, campaignID string) (*mailchimp.Campaign, error) {
	for _, c := range m.campaigns {
		if c.ID == campaignID {
			result := c
			return &result, nil
		}
	}
	return nil, apperror.RemoteStatus("GET", "campaigns/"+campaignID, 404)
}

func (m *mockAPI) ListCampaigns(_ context.Context, _ mailchimp.Token, since *time.Time) ([]mailchimp.Campaign, error) {
	m.campaignSince = append(m.campaignSince, since)
	if m.listCampaignsErr != nil {
		return nil, m.listCampaignsErr
	}
	return m.campaigns, nil
}

func (m *mockAPI) ListMembers(_ context.Context, _ mailchimp.Token, listID string, since *time.Time) ([]mailchimp.Member, error) {
	m.memberCalls = append(m.memberCalls, memberListCall{listID: listID, since: since})
	return m.membersByList[listID], nil
}

func (m *mockAPI) GetOrCreateMergeField(_ context.Context, _ mailchimp.Token, listID, name string) (*mailchimp.MergeField, error) {
	for _, f := range m.mergeFields[listID] {
		if f.Name == name {
			result := f
			return &result, nil
		}
	}
	m.fieldCreates++
	m.nextTag++
	created := mailchimp.MergeField{Name: name, Tag: fmt.Sprintf("TAG%d", m.nextTag)}
	m.mergeFields[listID] = append(m.mergeFields[listID], created)
	return &created, nil
}

func (m *mockAPI) InstallWebhook(_ context.Context, _ mailchimp.Token, listID, _ string) (string, error) {
	m.webhooks = append(m.webhooks, listID)
	return "wh-" + listID, nil
}

func (m *mockAPI) SubmitBatch(_ context.Context, _ mailchimp.Token, ops []mailchimp.BatchOperation) error {
	if m.submitBatchErr != nil {
		return m.submitBatchErr
	}
	m.batches = append(m.batches, ops)
	return nil
}

// =========================================================================
// HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig() *config.Config {
	return &config.Config{
		WebhookURL:     "https://app.example.com/webhook",
		APIURLTemplate: "https://<dc>.api.mailchimp.com/3.0/",
	}
}

// seedSession registers a user and one session, returning the session id.
func seedSession(t *testing.T, store *mockStore, userID int64) string {
	t.Helper()
	ctx := context.Background()
	if err := store.InsertUser(ctx, &model.User{ID: userID, Username: "tester", Email: "t@example.com"}); err != nil {
		t.Fatal(err)
	}
	sess := &model.Session{
		ID:          fmt.Sprintf("sess-%d", userID),
		UserID:      userID,
		AccessToken: "tok",
		DC:          "us21",
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.InsertSession(ctx, sess); err != nil {
		t.Fatal(err)
	}
	return sess.ID
}
