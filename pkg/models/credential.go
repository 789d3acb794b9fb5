package models

import (
	"strings"
	"time"
)

// Supported providers
const (
	ProviderGmail   = "gmail"
	ProviderOutlook = "outlook"
)

// Credential statuses
const (
	StatusEnabled  = "enabled"
	StatusDisabled = "disabled"
)

// Credential represents a verified sender mailbox with its OAuth token set
type Credential struct {
	Email         string    `db:"email"`
	Provider      string    `db:"provider"`       // "gmail" or "outlook"
	Status        string    `db:"status"`         // "enabled" or "disabled"
	DeliveryScore int       `db:"delivery_score"` // rolling count of delivered messages
	AccessToken   string    `db:"access_token"`
	RefreshToken  string    `db:"refresh_token"`
	TokenURI      string    `db:"token_uri"`
	ClientID      string    `db:"client_id"`
	ClientSecret  string    `db:"client_secret"`
	Scopes        string    `db:"scopes"`       // comma-separated granted scopes
	TokenExpiry   time.Time `db:"token_expiry"` // zero when the provider reported no expiry
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// ScopeList returns the granted scopes as a slice
func (c *Credential) ScopeList() []string {
	if c.Scopes == "" {
		return nil
	}
	return strings.Split(c.Scopes, ",")
}

// Enabled returns true if the mailbox may be used for sending
func (c *Credential) Enabled() bool {
	return c.Status == StatusEnabled
}
