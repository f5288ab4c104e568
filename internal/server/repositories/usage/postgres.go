package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/crosspost/internal/dbx"
	"github.com/dmitrijs2005/crosspost/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Current(ctx context.Context, userID string, monthStart time.Time, month string) (*models.Usage, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM items WHERE user_id = $1 AND created_at >= $2),
			(SELECT COALESCE(SUM(adaptations_count), 0) FROM ai_usage WHERE user_id = $1 AND month = $3),
			(SELECT COUNT(*) FROM brands WHERE user_id = $1),
			(SELECT COUNT(*) FROM connections WHERE user_id = $1)`

	u := &models.Usage{Month: month}
	err := r.db.QueryRowContext(ctx, query, userID, monthStart, month).Scan(
		&u.PostsThisMonth, &u.AdaptationsThisMonth, &u.BrandsCount, &u.PlatformsCount,
	)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) IncrementAdaptations(ctx context.Context, userID, month string, n int) error {
	query := `
		INSERT INTO ai_usage (user_id, month, adaptations_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, month)
		DO UPDATE SET adaptations_count = ai_usage.adaptations_count + EXCLUDED.adaptations_count`

	if _, err := r.db.ExecContext(ctx, query, userID, month, n); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
