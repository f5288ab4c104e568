package subscriptions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/crosspost/internal/common"
	"github.com/dmitrijs2005/crosspost/internal/dbx"
	"github.com/dmitrijs2005/crosspost/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByUser(ctx context.Context, userID string) (*models.Subscription, error) {
	query := `SELECT user_id, tier, status, current_period_end FROM subscriptions WHERE user_id = $1`

	var (
		s   models.Subscription
		end sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&s.UserID, &s.Tier, &s.Status, &end)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	s.CurrentPeriodEnd = dbx.TimePtr(end)
	return &s, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, s *models.Subscription) error {
	query := `
		INSERT INTO subscriptions (user_id, tier, status, current_period_end)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id)
		DO UPDATE SET tier = EXCLUDED.tier, status = EXCLUDED.status,
			current_period_end = EXCLUDED.current_period_end`

	if _, err := r.db.ExecContext(ctx, query, s.UserID, s.Tier, s.Status, dbx.NullTime(s.CurrentPeriodEnd)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
