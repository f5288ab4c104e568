package connections

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

const selectColumns = `id, user_id, brand_id, platform, credentials, display_name,
		connection_mode, is_active, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanConnection(s scanner) (*models.Connection, error) {
	var (
		c                    models.Connection
		brandID, displayName sql.NullString
		mode                 string
	)
	if err := s.Scan(&c.ID, &c.UserID, &brandID, &c.Platform, &c.Credentials, &displayName,
		&mode, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.BrandID = dbx.StringPtr(brandID)
	c.DisplayName = dbx.StringPtr(displayName)
	c.Mode = models.ParseConnectionMode(mode)
	return &c, nil
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.Connection) error {
	query := `
		INSERT INTO connections (id, user_id, brand_id, platform, credentials, display_name, connection_mode, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		c.ID, c.UserID, dbx.NullString(c.BrandID), c.Platform, c.Credentials,
		dbx.NullString(c.DisplayName), string(c.Mode), c.Active,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.Connection, error) {
	c, err := scanConnection(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) GetForOwner(ctx context.Context, id, userID string) (*models.Connection, error) {
	if !dbx.ValidID(id) {
		return nil, common.ErrNotFound
	}
	query := `SELECT ` + selectColumns + ` FROM connections WHERE id = $1 AND user_id = $2`
	return r.getOne(ctx, query, id, userID)
}

func (r *PostgresRepository) FindExact(ctx context.Context, userID, platform string, brandID *string) (*models.Connection, error) {
	query := `SELECT ` + selectColumns + ` FROM connections
		WHERE user_id = $1 AND platform = $2 AND brand_id IS NOT DISTINCT FROM $3
		ORDER BY created_at
		LIMIT 1`
	return r.getOne(ctx, query, userID, platform, dbx.NullString(brandID))
}

// ListForScope orders brand-scoped rows before brand-less ones so callers can
// keep the first connection seen per platform.
func (r *PostgresRepository) ListForScope(ctx context.Context, userID string, brandID *string) ([]*models.Connection, error) {
	query := `SELECT ` + selectColumns + ` FROM connections
		WHERE user_id = $1 AND is_active AND (brand_id IS NULL OR brand_id = $2)
		ORDER BY brand_id NULLS LAST, created_at`

	rows, err := r.db.QueryContext(ctx, query, userID, dbx.NullString(brandID))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) UpdateCredentials(ctx context.Context, id, credentials string, mode models.ConnectionMode) error {
	query := `UPDATE connections SET credentials = $2, connection_mode = $3, updated_at = now() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, credentials, string(mode))
	return checkOne(res, err)
}

func (r *PostgresRepository) UpdateDisplayName(ctx context.Context, id, displayName string) error {
	query := `UPDATE connections SET display_name = $2, updated_at = now() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, displayName)
	return checkOne(res, err)
}

func (r *PostgresRepository) Delete(ctx context.Context, id, userID string) error {
	if !dbx.ValidID(id) {
		return common.ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM connections WHERE id = $1 AND user_id = $2`, id, userID)
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
