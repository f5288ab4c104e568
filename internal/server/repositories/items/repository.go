// Package items persists content items.
package items

import (
	"context"
	"time"

	"github.com/dmitrijs2005/crosspost/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, item *models.Item) error
	// GetForOwner returns common.ErrNotFound when the item is absent or owned by someone else.
	GetForOwner(ctx context.Context, id, userID string) (*models.Item, error)
	ListDue(ctx context.Context, now time.Time) ([]models.DueItem, error)
	SetStatus(ctx context.Context, id string, status models.ItemStatus, publishedAt *time.Time, updatedAt time.Time) error
	Delete(ctx context.Context, id, userID string) error
}
