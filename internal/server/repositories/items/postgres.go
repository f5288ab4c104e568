package items

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/crosspost/internal/common"
	"github.com/dmitrijs2005/crosspost/internal/dbx"
	"github.com/dmitrijs2005/crosspost/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func marshalList(v []string) ([]byte, error) {
	if v == nil {
		v = []string{}
	}
	return json.Marshal(v)
}

func (r *PostgresRepository) Create(ctx context.Context, item *models.Item) error {
	media, err := marshalList(item.MediaPaths)
	if err != nil {
		return err
	}
	tags, err := marshalList(item.Tags)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO items (id, user_id, brand_id, text, status, scheduled_at, media_paths, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	err = r.db.QueryRowContext(ctx, query,
		item.ID, item.UserID, dbx.NullString(item.BrandID), item.Text, string(item.Status),
		dbx.NullTime(item.ScheduledAt), media, tags,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetForOwner(ctx context.Context, id, userID string) (*models.Item, error) {
	if !dbx.ValidID(id) {
		return nil, common.ErrNotFound
	}

	query := `
		SELECT id, user_id, brand_id, text, status, scheduled_at, published_at,
		       media_paths, tags, created_at, updated_at
		FROM items
		WHERE id = $1 AND user_id = $2`

	var (
		item                     models.Item
		brandID                  sql.NullString
		status                   string
		scheduledAt, publishedAt sql.NullTime
		media, tags              []byte
	)
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(
		&item.ID, &item.UserID, &brandID, &item.Text, &status, &scheduledAt, &publishedAt,
		&media, &tags, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	item.BrandID = dbx.StringPtr(brandID)
	item.Status = models.ItemStatus(status)
	item.ScheduledAt = dbx.TimePtr(scheduledAt)
	item.PublishedAt = dbx.TimePtr(publishedAt)

	if len(media) > 0 {
		if err := json.Unmarshal(media, &item.MediaPaths); err != nil {
			return nil, fmt.Errorf("decode media_paths: %w", err)
		}
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &item.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	return &item, nil
}

// ListDue returns scheduled items whose scheduled_at is at or before now,
// oldest first.
func (r *PostgresRepository) ListDue(ctx context.Context, now time.Time) ([]models.DueItem, error) {
	query := `
		SELECT id, user_id FROM items
		WHERE status = 'scheduled' AND scheduled_at <= $1
		ORDER BY scheduled_at, id`

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.DueItem
	for rows.Next() {
		var d models.DueItem
		if err := rows.Scan(&d.ID, &d.UserID); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SetStatus writes the aggregate status. published_at is only touched when
// publishedAt is non-nil.
func (r *PostgresRepository) SetStatus(ctx context.Context, id string, status models.ItemStatus, publishedAt *time.Time, updatedAt time.Time) error {
	query := `
		UPDATE items
		SET status = $2, published_at = COALESCE($3, published_at), updated_at = $4
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, string(status), dbx.NullTime(publishedAt), updatedAt)
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

// Delete removes an owned item; variants and audit entries go with it.
func (r *PostgresRepository) Delete(ctx context.Context, id, userID string) error {
	if !dbx.ValidID(id) {
		return common.ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1 AND user_id = $2`, id, userID)
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
