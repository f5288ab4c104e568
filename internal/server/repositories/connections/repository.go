// Package connections persists per-user platform connections. Credentials are
// stored exactly as handed over: vault ciphertext.
package connections

import (
	"context"

	"github.com/dmitrijs2005/crosspost/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, c *models.Connection) error
	GetForOwner(ctx context.Context, id, userID string) (*models.Connection, error)
	// ListForScope returns the user's active connections usable for brandID:
	// brand-less ones always, brand-scoped ones only when brandID matches.
	ListForScope(ctx context.Context, userID string, brandID *string) ([]*models.Connection, error)
	// FindExact matches user, platform and brand exactly (NULL brand included).
	FindExact(ctx context.Context, userID, platform string, brandID *string) (*models.Connection, error)
	UpdateCredentials(ctx context.Context, id, credentials string, mode models.ConnectionMode) error
	UpdateDisplayName(ctx context.Context, id, displayName string) error
	Delete(ctx context.Context, id, userID string) error
}
