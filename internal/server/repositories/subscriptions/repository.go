// Package subscriptions reads user billing tiers.
package subscriptions

import (
	"context"

	"github.com/dmitrijs2005/crosspost/internal/server/models"
)

type Repository interface {
	// GetByUser returns common.ErrNotFound when the user has no subscription row.
	GetByUser(ctx context.Context, userID string) (*models.Subscription, error)
	Upsert(ctx context.Context, s *models.Subscription) error
}
