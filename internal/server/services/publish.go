// Package services contains server-side business logic: the publish
// orchestrator, the scheduled trigger, connection management and usage
// recording.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/crosspost/internal/common"
	"github.com/dmitrijs2005/crosspost/internal/cryptox"
	"github.com/dmitrijs2005/crosspost/internal/dbx"
	"github.com/dmitrijs2005/crosspost/internal/logging"
	"github.com/dmitrijs2005/crosspost/internal/platforms"
	"github.com/dmitrijs2005/crosspost/internal/server/lock"
	"github.com/dmitrijs2005/crosspost/internal/server/media"
	"github.com/dmitrijs2005/crosspost/internal/server/models"
	"github.com/dmitrijs2005/crosspost/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Variant failure messages stored on the variant row.
const (
	msgNoConnection     = "No connection for platform."
	msgUnsupported      = "Platform not supported."
	msgDecryptFailed    = "Failed to decrypt credentials."
	msgUnknownError     = "Unknown error"
	msgMediaUnavailable = "Media unavailable: %v"
)

// PlatformOutcome is the per-variant entry of a publish run.
type PlatformOutcome struct {
	Platform string `json:"platform"`
	Success  bool   `json:"success"`
	PostURL  string `json:"postUrl,omitempty"`
	Error    string `json:"error,omitempty"`
}

// PublishResult summarises a publish run. OK is true whenever the run
// completed; individual platform failures are reported in Results.
type PublishResult struct {
	OK        bool              `json:"ok"`
	Published int               `json:"published"`
	Total     int               `json:"total"`
	Results   []PlatformOutcome `json:"results"`
}

// PublishService delivers an item's variants to their platforms and records
// the outcome of each attempt.
type PublishService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	vault       *cryptox.Vault
	registry    *platforms.Registry
	media       media.Resolver
	locker      lock.Locker
	concurrency int
	log         logging.Logger
	now         func() time.Time
}

func NewPublishService(db *sql.DB, m repomanager.RepositoryManager, vault *cryptox.Vault,
	registry *platforms.Registry, resolver media.Resolver, log logging.Logger) *PublishService {
	return &PublishService{
		db:          db,
		repomanager: m,
		vault:       vault,
		registry:    registry,
		media:       resolver,
		locker:      lock.Nop{},
		concurrency: 1,
		log:         log.With("module", "publish"),
		now:         time.Now,
	}
}

// WithConcurrency sets how many variants are delivered at once. Values below
// one mean sequential.
func (s *PublishService) WithConcurrency(n int) *PublishService {
	if n < 1 {
		n = 1
	}
	s.concurrency = n
	return s
}

// WithLocker makes concurrent runs for the same item fail fast with
// common.ErrPublishInProgress.
func (s *PublishService) WithLocker(l lock.Locker) *PublishService {
	if l == nil {
		l = lock.Nop{}
	}
	s.locker = l
	return s
}

// Publish delivers every variant of itemID owned by userID. It returns
// common.ErrNotFound for a missing or foreign item and common.ErrValidation
// when the item has no variants; anything a platform reports is data in the
// result.
func (s *PublishService) Publish(ctx context.Context, itemID, userID string) (*PublishResult, error) {
	release, err := s.locker.Acquire(ctx, "item:"+itemID)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return nil, common.ErrPublishInProgress
		}
		return nil, fmt.Errorf("acquire item lock: %w", err)
	}
	defer release()

	item, err := s.repomanager.Items(s.db).GetForOwner(ctx, itemID, userID)
	if err != nil {
		return nil, err
	}

	variants, err := s.repomanager.Variants(s.db).ListByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if len(variants) == 0 {
		return nil, fmt.Errorf("%w: no platforms selected for this item", common.ErrValidation)
	}

	conns, err := s.repomanager.Connections(s.db).ListForScope(ctx, userID, item.BrandID)
	if err != nil {
		return nil, err
	}
	byPlatform := make(map[string]*models.Connection, len(conns))
	for _, c := range conns {
		if _, seen := byPlatform[c.Platform]; !seen {
			byPlatform[c.Platform] = c
		}
	}

	// Publishers run to completion once started; only storage failures stop
	// the remaining variants.
	runCtx := context.WithoutCancel(ctx)

	var mediaPaths []string
	var mediaErr error
	if len(item.MediaPaths) > 0 {
		mediaPaths, mediaErr = s.media.Resolve(runCtx, item.MediaPaths)
	}

	now := s.now().UTC()
	outcomes := make([]PlatformOutcome, len(variants))

	// A storage failure stops dispatch of the variants not yet started.
	// Deliveries already in flight keep runCtx so they can still be recorded.
	var stopped atomic.Bool
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, v := range variants {
		g.Go(func() error {
			if stopped.Load() {
				return nil
			}
			out, err := s.publishVariant(runCtx, item, v, byPlatform[v.Platform], mediaPaths, mediaErr, now)
			if err != nil {
				stopped.Store(true)
				return err
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	published := 0
	for _, o := range outcomes {
		if o.Success {
			published++
		}
	}

	status := models.ItemPartial
	var publishedAt *time.Time
	switch published {
	case 0:
		status = models.ItemFailed
	case len(variants):
		status = models.ItemPublished
	}
	if published > 0 {
		publishedAt = &now
	}
	if err := s.repomanager.Items(s.db).SetStatus(runCtx, item.ID, status, publishedAt, now); err != nil {
		return nil, err
	}

	s.log.Info(ctx, "item publish finished",
		"item_id", item.ID, "status", string(status), "published", published, "total", len(variants))

	return &PublishResult{
		OK:        true,
		Published: published,
		Total:     len(variants),
		Results:   outcomes,
	}, nil
}

// publishVariant performs one delivery attempt and records it. The returned
// error is a storage failure; platform failures are in the outcome.
func (s *PublishService) publishVariant(ctx context.Context, item *models.Item, v *models.Variant,
	conn *models.Connection, mediaPaths []string, mediaErr error, now time.Time) (PlatformOutcome, error) {

	log := s.log.With("item_id", item.ID, "variant_id", v.ID, "platform", v.Platform)

	fail := func(variantMsg, auditDetail, resultErr string) (PlatformOutcome, error) {
		log.Warn(ctx, "variant failed", "reason", auditDetail)
		err := s.recordFailure(ctx, item, v, variantMsg, auditDetail, now)
		return PlatformOutcome{Platform: v.Platform, Error: resultErr}, err
	}

	publisher, known := s.registry.Lookup(v.Platform)
	switch {
	case conn == nil:
		return fail(msgNoConnection, "No connection", "Missing connection")
	case !known:
		return fail(msgUnsupported, "Unknown platform", "Unknown platform")
	}

	creds, err := s.vault.Decrypt(conn.Credentials, item.UserID)
	if err != nil {
		return fail(msgDecryptFailed, "Decrypt failed", "Invalid credentials")
	}
	defer common.WipeByteArray(creds)

	if mediaErr != nil {
		msg := fmt.Sprintf(msgMediaUnavailable, mediaErr)
		return fail(msg, msg, msg)
	}

	res := invokePublisher(ctx, publisher, platforms.Post{Text: v.AdaptedText, Media: mediaPaths}, creds)
	if !res.Success {
		msg := res.Error
		detail := res.Error
		if msg == "" {
			msg = msgUnknownError
			detail = "publish failed"
		}
		return fail(msg, detail, msg)
	}

	detail := "ok"
	switch {
	case res.PostURL != "":
		detail = res.PostURL
	case res.PostID != "":
		detail = res.PostID
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Variants(tx).MarkPublished(ctx, v.ID, optional(res.PostID), optional(res.PostURL), now); err != nil {
			return err
		}
		if err := s.repomanager.AuditLog(tx).Append(ctx, s.auditEntry(item, v.Platform, models.AuditPublish, detail, now)); err != nil {
			return err
		}
		if conn.Mode == models.ModeQuickConnect {
			return s.repomanager.QuickConnect(tx).Increment(ctx, v.Platform, common.MonthKey(now))
		}
		return nil
	})
	if err != nil {
		return PlatformOutcome{}, fmt.Errorf("record publish of variant %s: %w", v.ID, err)
	}

	log.Info(ctx, "variant published", "post_id", res.PostID)
	return PlatformOutcome{Platform: v.Platform, Success: true, PostURL: res.PostURL}, nil
}

func (s *PublishService) recordFailure(ctx context.Context, item *models.Item, v *models.Variant,
	variantMsg, auditDetail string, now time.Time) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Variants(tx).MarkFailed(ctx, v.ID, variantMsg); err != nil {
			return err
		}
		return s.repomanager.AuditLog(tx).Append(ctx, s.auditEntry(item, v.Platform, models.AuditError, auditDetail, now))
	})
	if err != nil {
		return fmt.Errorf("record failure of variant %s: %w", v.ID, err)
	}
	return nil
}

func (s *PublishService) auditEntry(item *models.Item, platform string, action models.AuditAction, detail string, now time.Time) *models.AuditEntry {
	return &models.AuditEntry{
		ID:        uuid.NewString(),
		UserID:    item.UserID,
		ItemID:    item.ID,
		Platform:  platform,
		Action:    action,
		Detail:    detail,
		CreatedAt: now,
	}
}

// invokePublisher turns a panicking publisher into a failed result.
func invokePublisher(ctx context.Context, p platforms.Publisher, post platforms.Post, creds []byte) (res platforms.PublishResult) {
	defer func() {
		if r := recover(); r != nil {
			res = platforms.PublishResult{Error: fmt.Sprint(r)}
		}
	}()
	return p.Publish(ctx, post, json.RawMessage(creds))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
