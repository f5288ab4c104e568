// Package usage reads the counters the quota guard needs and records AI
// adaptation usage per calendar month.
package usage

import (
	"context"
	"time"

	"github.com/dmitrijs2005/crosspost/internal/server/models"
)

type Repository interface {
	// Current aggregates the counters for userID. monthStart bounds the
	// posts-this-month count and month keys the adaptation counter.
	Current(ctx context.Context, userID string, monthStart time.Time, month string) (*models.Usage, error)
	IncrementAdaptations(ctx context.Context, userID, month string, n int) error
}
