package model

// Member is a list subscriber. Email is unique within a list; inserts use
// insert-if-absent semantics so a re-run sync or a replayed webhook event
// never duplicates the row. CampaignID records which campaign's sync first
// observed the member and may be empty for webhook-inserted rows.
type Member struct {
	Email      string `json:"email"`
	FullName   string `json:"fullName"`
	ListID     string `json:"listId"`
	CampaignID string `json:"campaignId,omitempty"`
}
