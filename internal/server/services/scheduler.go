package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/crosspost/internal/logging"
	"github.com/dmitrijs2005/crosspost/internal/server/repositories/repomanager"
)

type itemPublisher interface {
	Publish(ctx context.Context, itemID, userID string) (*PublishResult, error)
}

// DueResult is the outcome for one scheduled item.
type DueResult struct {
	ItemID    string `json:"itemId"`
	OK        bool   `json:"ok"`
	Published int    `json:"published,omitempty"`
	Total     int    `json:"total,omitempty"`
	Error     string `json:"error,omitempty"`
}

type DueSummary struct {
	OK        bool        `json:"ok"`
	Processed int         `json:"processed"`
	Results   []DueResult `json:"results"`
}

// Scheduler publishes scheduled items whose time has come, one at a time.
type Scheduler struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	publisher   itemPublisher
	log         logging.Logger
	now         func() time.Time
}

func NewScheduler(db *sql.DB, m repomanager.RepositoryManager, p itemPublisher, log logging.Logger) *Scheduler {
	return &Scheduler{
		db:          db,
		repomanager: m,
		publisher:   p,
		log:         log.With("module", "scheduler"),
		now:         time.Now,
	}
}

// RunDue publishes every due item. A failure for one item is recorded in its
// result and does not stop the run; only listing due items can fail the call.
func (s *Scheduler) RunDue(ctx context.Context) (*DueSummary, error) {
	due, err := s.repomanager.Items(s.db).ListDue(ctx, s.now().UTC())
	if err != nil {
		return nil, err
	}

	summary := &DueSummary{OK: true, Processed: len(due), Results: make([]DueResult, 0, len(due))}
	for _, d := range due {
		res, err := s.publisher.Publish(ctx, d.ID, d.UserID)
		if err != nil {
			s.log.Warn(ctx, "scheduled publish failed", "item_id", d.ID, "error", err)
			summary.Results = append(summary.Results, DueResult{ItemID: d.ID, Error: err.Error()})
			continue
		}
		summary.Results = append(summary.Results, DueResult{
			ItemID:    d.ID,
			OK:        true,
			Published: res.Published,
			Total:     res.Total,
		})
	}

	if len(due) > 0 {
		s.log.Info(ctx, "scheduled run finished", "processed", len(due))
	}
	return summary, nil
}
