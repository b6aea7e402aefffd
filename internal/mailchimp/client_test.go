package mailchimp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/listmirror/internal/apperror"
)

var testToken = Token{AccessToken: "test-token", DC: "us21"}

// newTestClient points a Client at an httptest server. The template carries
// no <dc> placeholder, so the token's shard is ignored, which is what we want
// for a local fake.
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL + "/")
}

// =========================================================================
// PAGINATION
// =========================================================================

func TestListCampaignsPaginates(t *testing.T) {
	const total = 2500

	all := make([]Campaign, total)
	for i := range all {
		all[i] = Campaign{
			ID:         fmt.Sprintf("c%04d", i),
			Settings:   CampaignSettings{Title: fmt.Sprintf("Campaign %d", i)},
			Recipients: CampaignRecipients{ListID: "L1"},
		}
	}

	var offsets []int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/campaigns", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.Equal(t, strconv.Itoa(PageSize), r.URL.Query().Get("count"))

		offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
		require.NoError(t, err)
		offsets = append(offsets, offset)

		end := offset + PageSize
		if end > total {
			end = total
		}
		json.NewEncoder(w).Encode(map[string]any{
			"campaigns":   all[offset:end],
			"total_items": total,
		})
	})

	client := newTestClient(t, handler)
	got, err := client.ListCampaigns(context.Background(), testToken, nil)
	require.NoError(t, err)

	// Exactly three sequential requests at offsets 0, 1000, 2000.
	assert.Equal(t, []int{0, 1000, 2000}, offsets)

	// Concatenation of pages equals the full set in server order.
	require.Len(t, got, total)
	for i, c := range got {
		assert.Equal(t, fmt.Sprintf("c%04d", i), c.ID)
	}
}

func TestListMembersEmptyCollection(t *testing.T) {
	requests := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		require.Equal(t, "/lists/L1/members", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"members":     []Member{},
			"total_items": 0,
		})
	})

	client := newTestClient(t, handler)
	got, err := client.ListMembers(context.Background(), testToken, "L1", nil)
	require.NoError(t, err)

	assert.Empty(t, got)
	assert.Equal(t, 1, requests, "an empty collection must cost exactly one request")
}

func TestListMembersSinceFilter(t *testing.T) {
	since := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	var gotSince string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSince = r.URL.Query().Get("since_last_changed")
		json.NewEncoder(w).Encode(map[string]any{
			"members":     []Member{{EmailAddress: "a@b.com", FullName: "Jane Doe"}},
			"total_items": 1,
		})
	})

	client := newTestClient(t, handler)
	got, err := client.ListMembers(context.Background(), testToken, "L1", &since)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "2024-05-01T12:00:00Z", gotSince)
}

// A remote total that keeps growing past the accumulated count must error out
// via the page cap rather than loop forever.
func TestPaginationGivesUpWhenTotalNeverReached(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Always report one more item than we return.
		json.NewEncoder(w).Encode(map[string]any{
			"members":     []Member{},
			"total_items": 1,
		})
	})

	client := newTestClient(t, handler)
	_, err := client.ListMembers(context.Background(), testToken, "L1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrRemote)
}

// =========================================================================
// MERGE FIELDS
// =========================================================================

func TestGetOrCreateMergeFieldIdempotent(t *testing.T) {
	creations := 0
	var fields []MergeField

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/lists/L1/merge-fields", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{"merge_fields": fields})
		case http.MethodPost:
			creations++
			var req struct {
				Name     string `json:"name"`
				Type     string `json:"type"`
				Tag      string `json:"tag"`
				Required bool   `json:"required"`
				Public   bool   `json:"public"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "text", req.Type)
			assert.False(t, req.Required)
			assert.False(t, req.Public)

			created := MergeField{Name: req.Name, Tag: fmt.Sprintf("TAG%d", creations)}
			fields = append(fields, created)
			json.NewEncoder(w).Encode(created)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	})

	client := newTestClient(t, handler)

	first, err := client.GetOrCreateMergeField(context.Background(), testToken, "L1", "Video/c1")
	require.NoError(t, err)
	second, err := client.GetOrCreateMergeField(context.Background(), testToken, "L1", "Video/c1")
	require.NoError(t, err)

	assert.Equal(t, 1, creations, "second call must not create remotely")
	assert.Equal(t, first.Tag, second.Tag)
}

// =========================================================================
// BATCHES
// =========================================================================

func TestSubmitBatchBodyShape(t *testing.T) {
	var decoded struct {
		Operations []BatchOperation `json:"operations"`
	}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/batches", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&decoded))
		w.WriteHeader(http.StatusOK)
	})

	client := newTestClient(t, handler)

	op, err := MemberMergePatch("L1", "a@b.com", map[string]string{"VTAG": "vimeo.com/226053498"})
	require.NoError(t, err)
	require.NoError(t, client.SubmitBatch(context.Background(), testToken, []BatchOperation{op}))

	require.Len(t, decoded.Operations, 1)
	got := decoded.Operations[0]
	assert.Equal(t, http.MethodPatch, got.Method)
	assert.Equal(t, "lists/L1/members/a@b.com", got.Path)

	// The sub-operation body is a JSON-encoded string, not a nested object.
	var body struct {
		MergeFields map[string]string `json:"merge_fields"`
	}
	require.NoError(t, json.Unmarshal([]byte(got.Body), &body))
	assert.Equal(t, "vimeo.com/226053498", body.MergeFields["VTAG"])
}

// =========================================================================
// ERRORS
// =========================================================================

func TestNonSuccessStatusIsRemoteError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	})

	client := newTestClient(t, handler)
	_, err := client.GetCampaign(context.Background(), testToken, "c1")
	require.Error(t, err)

	assert.ErrorIs(t, err, apperror.ErrRemote)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Message, "429")
}

func TestEndpointUsesRegionalShard(t *testing.T) {
	client := New("https://<dc>.api.mailchimp.com/3.0/")
	endpoint, err := client.endpoint(Token{AccessToken: "x", DC: "us21"}, "campaigns")
	require.NoError(t, err)
	assert.Equal(t, "https://us21.api.mailchimp.com/3.0/campaigns", endpoint)
}
