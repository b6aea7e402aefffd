package model

// List is a remote mailing list we have seen at least once. A row is inserted
// the first time any operation encounters the list, together with the remote
// webhook installation, so WebhookID is always set.
type List struct {
	ID        string `json:"id"`
	UserID    int64  `json:"userId"`
	WebhookID string `json:"webhookId"`
}
