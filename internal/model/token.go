package model

import "time"

// TokenData contains the data stored with a session token issued to a
// programmatic caller acting on behalf of an account.
type TokenData struct {
	AccountID string    `json:"account_id"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
