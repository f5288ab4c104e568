package brands

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/crosspost/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Owned(ctx context.Context, id, userID string) (bool, error) {
	if !dbx.ValidID(id) {
		return false, nil
	}

	var ok bool
	query := `SELECT EXISTS (SELECT 1 FROM brands WHERE id = $1 AND user_id = $2)`
	if err := r.db.QueryRowContext(ctx, query, id, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}
