package variants

import (
	"context"
	"database/sql"
	"fmt"
	"time"

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

func (r *PostgresRepository) Create(ctx context.Context, v *models.Variant) error {
	query := `
		INSERT INTO variants (id, item_id, platform, adapted_text, char_count, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	if err := r.db.QueryRowContext(ctx, query,
		v.ID, v.ItemID, v.Platform, v.AdaptedText, v.CharCount, string(v.Status),
	).Scan(&v.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByItem(ctx context.Context, itemID string) ([]*models.Variant, error) {
	query := `
		SELECT id, item_id, platform, adapted_text, char_count, status,
		       platform_post_id, platform_url, error_message, published_at, created_at
		FROM variants
		WHERE item_id = $1
		ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Variant
	for rows.Next() {
		var (
			v                   models.Variant
			status              string
			postID, url, errMsg sql.NullString
			publishedAt         sql.NullTime
		)
		if err := rows.Scan(
			&v.ID, &v.ItemID, &v.Platform, &v.AdaptedText, &v.CharCount, &status,
			&postID, &url, &errMsg, &publishedAt, &v.CreatedAt,
		); err != nil {
			return nil, err
		}
		v.Status = models.VariantStatus(status)
		v.PlatformPostID = dbx.StringPtr(postID)
		v.PlatformURL = dbx.StringPtr(url)
		v.ErrorMessage = dbx.StringPtr(errMsg)
		v.PublishedAt = dbx.TimePtr(publishedAt)
		result = append(result, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkPublished stores the external identifiers and clears any earlier error.
func (r *PostgresRepository) MarkPublished(ctx context.Context, id string, postID, postURL *string, at time.Time) error {
	query := `
		UPDATE variants
		SET status = 'published', published_at = $2, platform_post_id = $3,
		    platform_url = $4, error_message = NULL
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, at, dbx.NullString(postID), dbx.NullString(postURL))
	return checkOne(res, err)
}

func (r *PostgresRepository) MarkFailed(ctx context.Context, id, message string) error {
	query := `UPDATE variants SET status = 'failed', error_message = $2 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, message)
	return checkOne(res, err)
}

func checkOne(res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
