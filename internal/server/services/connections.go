package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/crosspost/internal/common"
	"github.com/dmitrijs2005/crosspost/internal/cryptox"
	"github.com/dmitrijs2005/crosspost/internal/logging"
	"github.com/dmitrijs2005/crosspost/internal/platforms"
	"github.com/dmitrijs2005/crosspost/internal/server/billing"
	"github.com/dmitrijs2005/crosspost/internal/server/models"
	"github.com/dmitrijs2005/crosspost/internal/server/repositories/brands"
	"github.com/dmitrijs2005/crosspost/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// ConnectRequest is a user's request to link a platform account.
type ConnectRequest struct {
	Platform    string          `json:"platform"`
	BrandID     *string         `json:"brandId,omitempty"`
	DisplayName string          `json:"displayName,omitempty"`
	Mode        string          `json:"connectionMode,omitempty"`
	Credentials json.RawMessage `json:"credentials"`
}

// ConnectionView is a connection without its credentials.
type ConnectionView struct {
	ID          string                `json:"id"`
	BrandID     *string               `json:"brandId,omitempty"`
	Platform    string                `json:"platform"`
	DisplayName *string               `json:"displayName,omitempty"`
	Mode        models.ConnectionMode `json:"connectionMode"`
	Active      bool                  `json:"isActive"`
	CreatedAt   time.Time             `json:"createdAt"`
}

func newConnectionView(c *models.Connection) *ConnectionView {
	return &ConnectionView{
		ID:          c.ID,
		BrandID:     c.BrandID,
		Platform:    c.Platform,
		DisplayName: c.DisplayName,
		Mode:        c.Mode,
		Active:      c.Active,
		CreatedAt:   c.CreatedAt,
	}
}

// ensureBrand rejects a brand id that does not belong to userID. A nil id
// means no brand.
func ensureBrand(ctx context.Context, repo brands.Repository, userID string, brandID *string) error {
	if brandID == nil {
		return nil
	}
	ok, err := repo.Owned(ctx, *brandID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: brand not found or access denied", common.ErrValidation)
	}
	return nil
}

// quotaChecker is the part of billing.Guard the connection flow needs.
type quotaChecker interface {
	Check(ctx context.Context, userID string, action billing.Action) (billing.Decision, error)
}

// ConnectionService creates, tests and removes platform connections.
// Credentials are encrypted for their owner before they reach storage.
type ConnectionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	vault       *cryptox.Vault
	registry    *platforms.Registry
	guard       quotaChecker
	log         logging.Logger
}

func NewConnectionService(db *sql.DB, m repomanager.RepositoryManager, vault *cryptox.Vault,
	registry *platforms.Registry, guard quotaChecker, log logging.Logger) *ConnectionService {
	return &ConnectionService{
		db:          db,
		repomanager: m,
		vault:       vault,
		registry:    registry,
		guard:       guard,
		log:         log.With("module", "connections"),
	}
}

// Connect validates and stores a new connection. Denied quota yields
// common.ErrQuotaExceeded and bad input common.ErrValidation.
func (s *ConnectionService) Connect(ctx context.Context, userID string, req ConnectRequest) (*ConnectionView, error) {
	decision, err := s.guard.Check(ctx, userID, billing.ActionPlatform)
	if err != nil {
		return nil, err
	}
	if err := decision.Err(); err != nil {
		return nil, err
	}
	if err := ensureBrand(ctx, s.repomanager.Brands(s.db), userID, req.BrandID); err != nil {
		return nil, err
	}

	platform := strings.ToLower(strings.TrimSpace(req.Platform))
	publisher, ok := s.registry.Lookup(platform)
	if !ok {
		return nil, fmt.Errorf("%w: invalid platform %q", common.ErrValidation, req.Platform)
	}
	if err := publisher.ValidateCredentials(req.Credentials); err != nil {
		return nil, err
	}

	creds := req.Credentials
	name := strings.TrimSpace(req.DisplayName)
	if p, ok := publisher.(platforms.Preparer); ok {
		prepared, suggested, err := p.PrepareCredentials(creds)
		if err != nil {
			return nil, err
		}
		creds = prepared
		if name == "" {
			name = suggested
		}
	}

	ct, err := s.vault.Encrypt(creds, userID)
	if err != nil {
		return nil, fmt.Errorf("encrypt credentials: %w", err)
	}

	c := &models.Connection{
		ID:          uuid.NewString(),
		UserID:      userID,
		BrandID:     req.BrandID,
		Platform:    platform,
		Credentials: ct,
		Mode:        models.ParseConnectionMode(req.Mode),
		Active:      true,
	}
	if name != "" {
		c.DisplayName = &name
	}
	if err := s.repomanager.Connections(s.db).Create(ctx, c); err != nil {
		return nil, err
	}

	s.log.Info(ctx, "connection created", "connection_id", c.ID, "platform", platform, "mode", string(c.Mode))
	return newConnectionView(c), nil
}

// Test checks the stored credentials against the platform and stores the
// display name it reports.
func (s *ConnectionService) Test(ctx context.Context, userID, connectionID string) (platforms.TestResult, error) {
	repo := s.repomanager.Connections(s.db)
	c, err := repo.GetForOwner(ctx, connectionID, userID)
	if err != nil {
		return platforms.TestResult{}, err
	}

	publisher, ok := s.registry.Lookup(c.Platform)
	if !ok {
		return platforms.TestResult{}, fmt.Errorf("%w: unknown platform %q", common.ErrValidation, c.Platform)
	}

	creds, err := s.vault.Decrypt(c.Credentials, userID)
	if err != nil {
		return platforms.TestResult{}, err
	}
	defer common.WipeByteArray(creds)

	res := publisher.TestConnection(ctx, creds)
	if res.Success && res.DisplayName != "" {
		if err := repo.UpdateDisplayName(ctx, c.ID, res.DisplayName); err != nil {
			return platforms.TestResult{}, err
		}
	}
	return res, nil
}

// SaveQuickConnect stores credentials obtained through app-mediated OAuth,
// replacing those of an existing connection with the same scope.
func (s *ConnectionService) SaveQuickConnect(ctx context.Context, userID string, brandID *string, platform string, creds json.RawMessage) (*ConnectionView, error) {
	if err := ensureBrand(ctx, s.repomanager.Brands(s.db), userID, brandID); err != nil {
		return nil, err
	}

	ct, err := s.vault.Encrypt(creds, userID)
	if err != nil {
		return nil, fmt.Errorf("encrypt credentials: %w", err)
	}

	repo := s.repomanager.Connections(s.db)
	existing, err := repo.FindExact(ctx, userID, platform, brandID)
	switch {
	case err == nil:
		if err := repo.UpdateCredentials(ctx, existing.ID, ct, models.ModeQuickConnect); err != nil {
			return nil, err
		}
		existing.Mode = models.ModeQuickConnect
		return newConnectionView(existing), nil
	case !errors.Is(err, common.ErrNotFound):
		return nil, err
	}

	c := &models.Connection{
		ID:          uuid.NewString(),
		UserID:      userID,
		BrandID:     brandID,
		Platform:    platform,
		Credentials: ct,
		Mode:        models.ModeQuickConnect,
		Active:      true,
	}
	if err := repo.Create(ctx, c); err != nil {
		return nil, err
	}
	s.log.Info(ctx, "quick connect saved", "connection_id", c.ID, "platform", platform)
	return newConnectionView(c), nil
}

// List returns the user's connections usable for brandID: brand-scoped ones
// first, then brand-less ones.
func (s *ConnectionService) List(ctx context.Context, userID string, brandID *string) ([]*ConnectionView, error) {
	conns, err := s.repomanager.Connections(s.db).ListForScope(ctx, userID, brandID)
	if err != nil {
		return nil, err
	}
	out := make([]*ConnectionView, 0, len(conns))
	for _, c := range conns {
		out = append(out, newConnectionView(c))
	}
	return out, nil
}

func (s *ConnectionService) Delete(ctx context.Context, userID, connectionID string) error {
	return s.repomanager.Connections(s.db).Delete(ctx, connectionID, userID)
}
