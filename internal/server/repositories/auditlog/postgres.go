package auditlog

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/crosspost/internal/dbx"
	"github.com/dmitrijs2005/crosspost/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, e *models.AuditEntry) error {
	query := `
		INSERT INTO audit_log (id, user_id, item_id, platform, action, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.UserID, e.ItemID, e.Platform, string(e.Action), e.Detail, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByItem(ctx context.Context, itemID string) ([]*models.AuditEntry, error) {
	query := `
		SELECT id, user_id, item_id, platform, action, detail, created_at
		FROM audit_log
		WHERE item_id = $1
		ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.AuditEntry
	for rows.Next() {
		var (
			e      models.AuditEntry
			action string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.ItemID, &e.Platform, &action, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = models.AuditAction(action)
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
