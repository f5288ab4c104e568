package models

import "time"

// ConnectionMode tells whether a connection uses the user's own keys or the
// app-mediated OAuth flow.
type ConnectionMode string

const (
	ModeManual       ConnectionMode = "manual"
	ModeQuickConnect ConnectionMode = "quick_connect"
)

// ParseConnectionMode maps anything other than "quick_connect" to manual.
func ParseConnectionMode(s string) ConnectionMode {
	if ConnectionMode(s) == ModeQuickConnect {
		return ModeQuickConnect
	}
	return ModeManual
}

// Connection holds one user's credentials for one platform, optionally scoped
// to a brand. Credentials is vault ciphertext and is never decoded here.
type Connection struct {
	ID          string
	UserID      string
	BrandID     *string
	Platform    string
	Credentials string
	DisplayName *string
	Mode        ConnectionMode
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
