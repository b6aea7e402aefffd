package mailchimp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Member is a list subscriber as returned by the members collection endpoint.
type Member struct {
	EmailAddress string `json:"email_address"`
	FullName     string `json:"full_name"`
}

// MergeField is a personalization slot on a list. The server assigns the Tag;
// values are addressed by tag, lookups by name.
type MergeField struct {
	Tag  string `json:"tag"`
	Name string `json:"name"`
}

// ListMembers fetches the members of a list, paginating to the full set. A
// non-nil since restricts to members changed after that instant
// (since_last_changed); nil backfills the whole list.
func (c *Client) ListMembers(ctx context.Context, tok Token, listID string, since *time.Time) ([]Member, error) {
	return fetchAll(ctx, c, tok, fmt.Sprintf("lists/%s/members", listID), "since_last_changed", since,
		func(data []byte) ([]Member, int, error) {
			var page struct {
				Members    []Member `json:"members"`
				TotalItems int      `json:"total_items"`
			}
			if err := decodeInto(data, &page, "members page"); err != nil {
				return nil, 0, err
			}
			return page.Members, page.TotalItems, nil
		})
}

// GetOrCreateMergeField resolves the merge field with the given name on a
// list, creating it remotely only if absent.
//
// Idempotent by construction: the field listing is searched by name first, so
// calling this twice performs at most one creation and returns the same tag
// both times. The list holds at most one field per name.
func (c *Client) GetOrCreateMergeField(ctx context.Context, tok Token, listID, name string) (*MergeField, error) {
	path := fmt.Sprintf("lists/%s/merge-fields", listID)

	data, err := c.do(ctx, tok, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	var listing struct {
		MergeFields []MergeField `json:"merge_fields"`
	}
	if err := decodeInto(data, &listing, "merge fields"); err != nil {
		return nil, err
	}
	for _, field := range listing.MergeFields {
		if field.Name == name {
			return &field, nil
		}
	}

	body, err := json.Marshal(map[string]any{
		"name":     name,
		"type":     "text",
		"tag":      name,
		"required": false,
		"public":   false,
	})
	if err != nil {
		return nil, fmt.Errorf("mailchimp: encoding merge field body: %w", err)
	}
	data, err = c.do(ctx, tok, http.MethodPost, path, nil, body)
	if err != nil {
		return nil, err
	}
	var created MergeField
	if err := decodeInto(data, &created, "created merge field"); err != nil {
		return nil, err
	}
	return &created, nil
}

// InstallWebhook registers this deployment's webhook callback on a list and
// returns the server-assigned webhook id. Subscribed to subscribe and
// profile-change events from every source.
func (c *Client) InstallWebhook(ctx context.Context, tok Token, listID, callbackURL string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"url": callbackURL,
		"events": map[string]bool{
			"subscribe": true,
			"profile":   true,
		},
		"sources": map[string]bool{
			"user":  true,
			"admin": true,
			"api":   true,
		},
	})
	if err != nil {
		return "", fmt.Errorf("mailchimp: encoding webhook body: %w", err)
	}

	data, err := c.do(ctx, tok, http.MethodPost, fmt.Sprintf("lists/%s/webhooks", listID), nil, body)
	if err != nil {
		return "", err
	}
	var webhook struct {
		ID string `json:"id"`
	}
	if err := decodeInto(data, &webhook, "webhook"); err != nil {
		return "", err
	}
	return webhook.ID, nil
}
