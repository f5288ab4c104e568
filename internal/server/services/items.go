package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/crosspost/internal/common"
	"github.com/dmitrijs2005/crosspost/internal/dbx"
	"github.com/dmitrijs2005/crosspost/internal/logging"
	"github.com/dmitrijs2005/crosspost/internal/platforms"
	"github.com/dmitrijs2005/crosspost/internal/server/billing"
	"github.com/dmitrijs2005/crosspost/internal/server/models"
	"github.com/dmitrijs2005/crosspost/internal/server/repositories/repomanager"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// emptyText stands in for a blank source text.
const emptyText = "(empty)"

// CreateItemRequest composes an item and selects the platforms it goes to.
type CreateItemRequest struct {
	Text        string     `json:"originalText"`
	BrandID     *string    `json:"brandId,omitempty"`
	Platforms   []string   `json:"platforms"`
	MediaPaths  []string   `json:"mediaPaths,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
}

func (r CreateItemRequest) Validate() error {
	known := make([]any, 0, len(platforms.IDs()))
	for _, id := range platforms.IDs() {
		known = append(known, id)
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Platforms, validation.Each(validation.In(known...).Error("unknown platform"))),
		validation.Field(&r.MediaPaths, validation.Each(validation.Required)),
	)
}

type VariantView struct {
	ID          string               `json:"id"`
	Platform    string               `json:"platform"`
	AdaptedText string               `json:"adaptedText"`
	CharCount   int                  `json:"charCount"`
	Status      models.VariantStatus `json:"status"`
}

type ItemView struct {
	ID          string            `json:"id"`
	BrandID     *string           `json:"brandId,omitempty"`
	Text        string            `json:"originalText"`
	Status      models.ItemStatus `json:"status"`
	ScheduledAt *time.Time        `json:"scheduledAt,omitempty"`
	MediaPaths  []string          `json:"mediaPaths"`
	Tags        []string          `json:"tags"`
	CreatedAt   time.Time         `json:"createdAt"`
	Variants    []VariantView     `json:"variants"`
}

// ActivityEntry is one audit log record as shown to the item's owner.
type ActivityEntry struct {
	Platform  string             `json:"platform"`
	Action    models.AuditAction `json:"action"`
	Detail    string             `json:"detail"`
	CreatedAt time.Time          `json:"createdAt"`
}

// ItemService composes items and covers item operations outside publishing.
type ItemService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	guard       quotaChecker
	log         logging.Logger
	now         func() time.Time
}

func NewItemService(db *sql.DB, m repomanager.RepositoryManager, guard quotaChecker, log logging.Logger) *ItemService {
	return &ItemService{
		db:          db,
		repomanager: m,
		guard:       guard,
		log:         log.With("module", "items"),
		now:         time.Now,
	}
}

// normalizePlatforms lowercases ids and drops duplicates, keeping the first
// occurrence.
func normalizePlatforms(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.ToLower(strings.TrimSpace(id))
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Create stores a new item with one pending variant per selected platform.
// The item is scheduled when ScheduledAt is set and a draft otherwise.
// Quota denial yields common.ErrQuotaExceeded, bad input common.ErrValidation.
func (s *ItemService) Create(ctx context.Context, userID string, req CreateItemRequest) (*ItemView, error) {
	decision, err := s.guard.Check(ctx, userID, billing.ActionPost)
	if err != nil {
		return nil, err
	}
	if err := decision.Err(); err != nil {
		return nil, err
	}

	req.Platforms = normalizePlatforms(req.Platforms)
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	if err := ensureBrand(ctx, s.repomanager.Brands(s.db), userID, req.BrandID); err != nil {
		return nil, err
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		text = emptyText
	}

	item := &models.Item{
		ID:         uuid.NewString(),
		UserID:     userID,
		BrandID:    req.BrandID,
		Text:       text,
		Status:     models.ItemDraft,
		MediaPaths: req.MediaPaths,
		Tags:       req.Tags,
	}
	if req.ScheduledAt != nil {
		at := req.ScheduledAt.UTC()
		item.ScheduledAt = &at
		item.Status = models.ItemScheduled
	}

	variants := make([]*models.Variant, 0, len(req.Platforms))
	for _, p := range req.Platforms {
		variants = append(variants, &models.Variant{
			ID:          uuid.NewString(),
			ItemID:      item.ID,
			Platform:    p,
			AdaptedText: text,
			CharCount:   utf8.RuneCountInString(text),
			Status:      models.VariantPending,
		})
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Items(tx).Create(ctx, item); err != nil {
			return err
		}
		for _, v := range variants {
			if err := s.repomanager.Variants(tx).Create(ctx, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "item created", "item_id", item.ID, "status", string(item.Status), "platforms", len(variants))
	return newItemView(item, variants), nil
}

func newItemView(item *models.Item, variants []*models.Variant) *ItemView {
	v := &ItemView{
		ID:          item.ID,
		BrandID:     item.BrandID,
		Text:        item.Text,
		Status:      item.Status,
		ScheduledAt: item.ScheduledAt,
		MediaPaths:  item.MediaPaths,
		Tags:        item.Tags,
		CreatedAt:   item.CreatedAt,
		Variants:    make([]VariantView, 0, len(variants)),
	}
	if v.MediaPaths == nil {
		v.MediaPaths = []string{}
	}
	if v.Tags == nil {
		v.Tags = []string{}
	}
	for _, x := range variants {
		v.Variants = append(v.Variants, VariantView{
			ID:          x.ID,
			Platform:    x.Platform,
			AdaptedText: x.AdaptedText,
			CharCount:   x.CharCount,
			Status:      x.Status,
		})
	}
	return v
}

// Activity returns the publish log of an owned item, oldest first.
func (s *ItemService) Activity(ctx context.Context, userID, itemID string) ([]ActivityEntry, error) {
	if _, err := s.repomanager.Items(s.db).GetForOwner(ctx, itemID, userID); err != nil {
		return nil, err
	}
	entries, err := s.repomanager.AuditLog(s.db).ListByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	out := make([]ActivityEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, ActivityEntry{Platform: e.Platform, Action: e.Action, Detail: e.Detail, CreatedAt: e.CreatedAt})
	}
	return out, nil
}

// Delete removes the item with its variants and audit entries.
func (s *ItemService) Delete(ctx context.Context, userID, itemID string) error {
	return s.repomanager.Items(s.db).Delete(ctx, itemID, userID)
}
