package model

import "time"

// Credential is the stored OAuth material for one user and platform.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired reports whether the access token is past its expiry at now.
// A zero ExpiresAt means the token does not expire.
func (c Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// ConnectionStatus is surfaced to the integration management UI.
type ConnectionStatus string

// Connection statuses.
const (
	StatusActive ConnectionStatus = "active"
	StatusError  ConnectionStatus = "error"
)

// Connection is a user's link to one platform.
type Connection struct {
	UserID       string
	Platform     Platform
	Industry     string
	Status       ConnectionStatus
	LastError    string
	LastSyncedAt time.Time
	// AccountIDs, when empty, are discovered through the adapter.
	AccountIDs []string
}
