package model

import "time"

// Session maps an opaque session identifier to the access credential obtained
// during the OAuth exchange. Rows are insert-only: a user logging in again
// gets a fresh session, old ones are never updated. "The" active session for
// a user is the most recently created one.
type Session struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"userId"`
	AccessToken string    `json:"-"` // never serialized outward
	DC          string    `json:"-"` // regional shard, e.g. "us21"
	CreatedAt   time.Time `json:"createdAt"`
}
