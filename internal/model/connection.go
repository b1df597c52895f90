package model

import "time"

// ConnectionStatus is the lifecycle state of a provider connection.
type ConnectionStatus string

const (
	StatusActive  ConnectionStatus = "active"
	StatusExpired ConnectionStatus = "expired"
	StatusRevoked ConnectionStatus = "revoked"
	StatusError   ConnectionStatus = "error"
)

// Valid reports whether s is one of the known statuses.
func (s ConnectionStatus) Valid() bool {
	switch s {
	case StatusActive, StatusExpired, StatusRevoked, StatusError:
		return true
	}
	return false
}

// Connection is a user's authorized link to a single job board. Token fields
// hold vault ciphertext and are never decoded outside the connection manager.
type Connection struct {
	ID                    string           `json:"id"`
	UserID                string           `json:"user_id"`
	ProviderID            string           `json:"provider_id"`
	Status                ConnectionStatus `json:"status"`
	EncryptedAccessToken  string           `json:"-"`
	EncryptedRefreshToken string           `json:"-"`
	TokenExpiresAt        *time.Time       `json:"token_expires_at,omitempty"`
	LastSyncAt            *time.Time       `json:"last_sync_at,omitempty"`
	ErrorMessage          string           `json:"error_message,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// HasRefreshToken reports whether a refresh token is stored.
func (c *Connection) HasRefreshToken() bool {
	return c.EncryptedRefreshToken != ""
}

// Usable reports whether the connection is active and its token has not
// expired at now. A nil expiry never expires.
func (c *Connection) Usable(now time.Time) bool {
	if c.Status != StatusActive {
		return false
	}
	return c.TokenExpiresAt == nil || c.TokenExpiresAt.After(now)
}

// ConnectionHealth is the per-provider health view returned to callers.
type ConnectionHealth struct {
	ConnectionID   string           `json:"connection_id"`
	ProviderID     string           `json:"provider_id"`
	ProviderName   string           `json:"provider_name"`
	IsConnected    bool             `json:"is_connected"`
	Status         ConnectionStatus `json:"status"`
	LastSyncAt     *time.Time       `json:"last_sync_at,omitempty"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	RequiresReauth bool             `json:"requires_reauth"`
}
