// Package model defines the records mirrored from the marketing provider.
package model

import "time"

// User represents a Mailchimp account owner registered through the OAuth flow.
//
// The ID is Mailchimp's numeric account user id, not one we generate; the
// provider is the source of truth for identity, and reusing its id lets the
// webhook path join lists back to their owner without an extra mapping.
//
// LastSynced is the sync watermark: the instant the user's most recent sync
// pass STARTED. It is nil until the first sync. Nothing else touches it.
type User struct {
	ID         int64      `json:"id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	LastSynced *time.Time `json:"lastSynced,omitempty"`
}
