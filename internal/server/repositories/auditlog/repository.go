// Package auditlog stores the append-only publish log. Rows are never
// updated or deleted here; deleting an item cascades in the schema.
package auditlog

import (
	"context"

	"github.com/dmitrijs2005/crosspost/internal/server/models"
)

type Repository interface {
	Append(ctx context.Context, e *models.AuditEntry) error
	ListByItem(ctx context.Context, itemID string) ([]*models.AuditEntry, error)
}
