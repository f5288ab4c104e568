package platforms

import "slices"

// Platform identifiers.
const (
	X         = "x"
	Nostr     = "nostr"
	LinkedIn  = "linkedin"
	Bluesky   = "bluesky"
	Mastodon  = "mastodon"
	Facebook  = "facebook"
	Instagram = "instagram"
)

// QuickConnectMonthlyQuota is the app-wide monthly publish allowance shared by
// all quick-connect users of one platform.
const QuickConnectMonthlyQuota = 500

// Meta describes a platform. MaxMedia is the attachment ceiling (extra files
// are dropped); QuickConnectQuota is zero for platforms without quick connect.
type Meta struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	CharLimit         int    `json:"charLimit"`
	RequiresMedia     bool   `json:"requiresMedia,omitempty"`
	MaxMedia          int    `json:"maxMedia"`
	QuickConnect      bool   `json:"quickConnect,omitempty"`
	QuickConnectQuota int    `json:"quickConnectQuota,omitempty"`
}

var catalog = []Meta{
	{ID: X, Name: "X (Twitter)", CharLimit: 280, MaxMedia: 4, QuickConnect: true, QuickConnectQuota: QuickConnectMonthlyQuota},
	{ID: Nostr, Name: "Nostr", CharLimit: 500, MaxMedia: 4},
	{ID: LinkedIn, Name: "LinkedIn", CharLimit: 3000, MaxMedia: 0, QuickConnect: true, QuickConnectQuota: QuickConnectMonthlyQuota},
	{ID: Bluesky, Name: "Bluesky", CharLimit: 300, MaxMedia: 4},
	{ID: Mastodon, Name: "Mastodon", CharLimit: 500, MaxMedia: 4},
	{ID: Facebook, Name: "Facebook", CharLimit: 63206, MaxMedia: 0, QuickConnect: true, QuickConnectQuota: QuickConnectMonthlyQuota},
	{ID: Instagram, Name: "Instagram", CharLimit: 2200, RequiresMedia: true, MaxMedia: 1, QuickConnect: true, QuickConnectQuota: QuickConnectMonthlyQuota},
}

// Catalog returns all known platforms in display order.
func Catalog() []Meta {
	return slices.Clone(catalog)
}

// Describe returns metadata for id.
func Describe(id string) (Meta, bool) {
	for _, m := range catalog {
		if m.ID == id {
			return m, true
		}
	}
	return Meta{}, false
}

// IDs returns all platform identifiers.
func IDs() []string {
	out := make([]string, 0, len(catalog))
	for _, m := range catalog {
		out = append(out, m.ID)
	}
	return out
}

// QuickConnectQuotas returns platform -> monthly quota for quick-connect platforms.
func QuickConnectQuotas() map[string]int {
	out := make(map[string]int)
	for _, m := range catalog {
		if m.QuickConnect {
			out[m.ID] = m.QuickConnectQuota
		}
	}
	return out
}
