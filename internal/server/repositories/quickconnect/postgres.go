package quickconnect

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

// Increment adds one to (platform, month) atomically.
func (r *PostgresRepository) Increment(ctx context.Context, platform, month string) error {
	query := `
		INSERT INTO quick_connect_usage (platform, month, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (platform, month)
		DO UPDATE SET count = quick_connect_usage.count + 1`

	if _, err := r.db.ExecContext(ctx, query, platform, month); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListMonth(ctx context.Context, month string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT platform, count FROM quick_connect_usage WHERE month = $1`, month)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			platform string
			n        int
		)
		if err := rows.Scan(&platform, &n); err != nil {
			return nil, err
		}
		out[platform] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
