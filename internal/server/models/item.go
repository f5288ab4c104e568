// Package models defines the rows crosspost persists: content items, their
// per-platform variants, platform connections and the publish audit log.
package models

import "time"

// ItemStatus is the lifecycle state of a content item.
type ItemStatus string

const (
	ItemDraft     ItemStatus = "draft"
	ItemScheduled ItemStatus = "scheduled"
	ItemPublished ItemStatus = "published"
	ItemPartial   ItemStatus = "partial"
	ItemFailed    ItemStatus = "failed"
)

// Item is one logical post owned by a single user.
type Item struct {
	ID      string
	UserID  string
	BrandID *string
	Text    string
	Status  ItemStatus

	ScheduledAt *time.Time
	PublishedAt *time.Time

	// MediaPaths are storage references relative to the media root.
	MediaPaths []string
	Tags       []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DueItem identifies a scheduled item whose time has come.
type DueItem struct {
	ID     string
	UserID string
}
