package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/crosspost/internal/common"
	"github.com/dmitrijs2005/crosspost/internal/server/repositories/repomanager"
)

// UsageService records metered work done by collaborators outside the
// publish flow.
type UsageService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	now         func() time.Time
}

func NewUsageService(db *sql.DB, m repomanager.RepositoryManager) *UsageService {
	return &UsageService{db: db, repomanager: m, now: time.Now}
}

// RecordAdaptation adds n AI adaptations to the user's current month.
func (s *UsageService) RecordAdaptation(ctx context.Context, userID string, n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: adaptation count must be positive", common.ErrValidation)
	}
	return s.repomanager.Usage(s.db).IncrementAdaptations(ctx, userID, common.MonthKey(s.now()), n)
}
