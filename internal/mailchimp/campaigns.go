package mailchimp

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const campaignsPath = "campaigns"

// Campaign is the slice of the remote campaign object we care about. The API
// returns a much larger document; only these fields are unmarshaled.
type Campaign struct {
	ID         string             `json:"id"`
	Settings   CampaignSettings   `json:"settings"`
	Recipients CampaignRecipients `json:"recipients"`
}

type CampaignSettings struct {
	Title string `json:"title"`
}

type CampaignRecipients struct {
	// ListID can be empty for campaigns with no audience attached; callers
	// must skip those rather than persist them.
	ListID string `json:"list_id"`
}

// GetCampaign fetches one campaign's detail from the remote API. Callers that
// need current remote truth (merge-field population) use this instead of the
// local mirror.
func (c *Client) GetCampaign(ctx context.Context, tok Token, campaignID string) (*Campaign, error) {
	data, err := c.do(ctx, tok, http.MethodGet, fmt.Sprintf("%s/%s", campaignsPath, campaignID), nil, nil)
	if err != nil {
		return nil, err
	}
	var campaign Campaign
	if err := decodeInto(data, &campaign, "campaign"); err != nil {
		return nil, err
	}
	return &campaign, nil
}

// ListCampaigns fetches every campaign, paginating until the server-reported
// total is reached. A non-nil since restricts the listing to campaigns
// created after that instant (since_create_time); nil fetches everything.
func (c *Client) ListCampaigns(ctx context.Context, tok Token, since *time.Time) ([]Campaign, error) {
	return fetchAll(ctx, c, tok, campaignsPath, "since_create_time", since,
		func(data []byte) ([]Campaign, int, error) {
			var page struct {
				Campaigns  []Campaign `json:"campaigns"`
				TotalItems int        `json:"total_items"`
			}
			if err := decodeInto(data, &page, "campaigns page"); err != nil {
				return nil, 0, err
			}
			return page.Campaigns, page.TotalItems, nil
		})
}
