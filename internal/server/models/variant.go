package models

import "time"

// VariantStatus is the delivery state of one variant.
type VariantStatus string

const (
	VariantPending   VariantStatus = "pending"
	VariantPublished VariantStatus = "published"
	VariantFailed    VariantStatus = "failed"
)

// Variant is an item's adaptation for a single platform plus its delivery
// outcome. Only the publish orchestrator mutates it.
type Variant struct {
	ID          string
	ItemID      string
	Platform    string
	AdaptedText string
	CharCount   int
	Status      VariantStatus

	PlatformPostID *string
	PlatformURL    *string
	ErrorMessage   *string
	PublishedAt    *time.Time

	CreatedAt time.Time
}
