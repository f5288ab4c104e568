// Package variants persists per-platform item variants and their delivery state.
package variants

import (
	"context"
	"time"

	"github.com/dmitrijs2005/crosspost/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, v *models.Variant) error
	// ListByItem returns variants in creation order.
	ListByItem(ctx context.Context, itemID string) ([]*models.Variant, error)
	MarkPublished(ctx context.Context, id string, postID, postURL *string, at time.Time) error
	MarkFailed(ctx context.Context, id, message string) error
}
