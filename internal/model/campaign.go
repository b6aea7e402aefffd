package model

// Campaign mirrors a remote campaign. VideoTag/ImageTag are the merge-field
// tags resolved for this campaign; empty until the campaign's fields have
// been populated. A campaign always belongs to exactly one list and one user;
// remote campaigns with no list association are never persisted.
type Campaign struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ListID   string `json:"listId"`
	UserID   int64  `json:"userId"`
	VideoTag string `json:"videoTag"`
	ImageTag string `json:"imageTag"`
}
