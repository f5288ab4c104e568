package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/crosspost/internal/common"
	"github.com/dmitrijs2005/crosspost/internal/platforms"
	"github.com/dmitrijs2005/crosspost/internal/server/models"
	"github.com/dmitrijs2005/crosspost/internal/server/repositories/repomanager"
)

// Action is a metered operation.
type Action string

const (
	ActionPost     Action = "post"
	ActionAdapt    Action = "adapt"
	ActionBrand    Action = "brand"
	ActionPlatform Action = "platform"
)

// ParseAction validates a user-supplied action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionPost, ActionAdapt, ActionBrand, ActionPlatform:
		return a, nil
	}
	return "", fmt.Errorf("%w: unknown action %q", common.ErrValidation, s)
}

type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Err converts a denial into an error wrapping common.ErrQuotaExceeded.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", common.ErrQuotaExceeded, d.Reason)
}

func allow() Decision { return Decision{Allowed: true} }

func deny(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// QuotaStatus is the app-wide quick-connect usage for one platform this month.
type QuotaStatus struct {
	Usage int `json:"usage"`
	Limit int `json:"limit"`
}

type Guard struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	selfHosted  bool
	now         func() time.Time
}

func NewGuard(db *sql.DB, m repomanager.RepositoryManager, selfHosted bool) *Guard {
	return &Guard{db: db, repomanager: m, selfHosted: selfHosted, now: time.Now}
}

// Tier resolves the user's tier. A missing subscription means free.
func (g *Guard) Tier(ctx context.Context, userID string) (Tier, error) {
	sub, err := g.repomanager.Subscriptions(g.db).GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return LookupTier(TierFree), nil
		}
		return Tier{}, err
	}
	return LookupTier(sub.Tier), nil
}

// SetTier moves userID onto an active subscription of tierID. It is the
// operator's path for self-managed billing.
func (g *Guard) SetTier(ctx context.Context, userID, tierID string) error {
	if _, ok := tiers[tierID]; !ok {
		return fmt.Errorf("%w: unknown tier %q", common.ErrValidation, tierID)
	}
	return g.repomanager.Subscriptions(g.db).Upsert(ctx, &models.Subscription{
		UserID: userID,
		Tier:   tierID,
		Status: "active",
	})
}

// Usage returns the current counters for userID.
func (g *Guard) Usage(ctx context.Context, userID string) (*models.Usage, error) {
	now := g.now()
	return g.repomanager.Usage(g.db).Current(ctx, userID, common.StartOfMonth(now), common.MonthKey(now))
}

// Check decides whether userID may perform action now. Self-hosted
// deployments are never limited.
func (g *Guard) Check(ctx context.Context, userID string, action Action) (Decision, error) {
	if g.selfHosted {
		return allow(), nil
	}

	tier, err := g.Tier(ctx, userID)
	if err != nil {
		return Decision{}, err
	}
	u, err := g.Usage(ctx, userID)
	if err != nil {
		return Decision{}, err
	}
	l := tier.Limits

	switch action {
	case ActionPost:
		if reached(u.PostsThisMonth, l.PostsPerMonth) {
			return deny("Post limit reached (%d/month). Upgrade to Pro for unlimited posts.", l.PostsPerMonth), nil
		}
	case ActionAdapt:
		if l.AIAdaptationsPerMonth == 0 {
			return deny("AI adaptation requires a Pro subscription. You can still edit texts manually."), nil
		}
		if reached(u.AdaptationsThisMonth, l.AIAdaptationsPerMonth) {
			return deny("AI adaptation limit reached (%d/month).", l.AIAdaptationsPerMonth), nil
		}
	case ActionBrand:
		if reached(u.BrandsCount, l.Brands) {
			return deny("Brand limit reached (%d). Upgrade for more brands.", l.Brands), nil
		}
	case ActionPlatform:
		if reached(u.PlatformsCount, l.Platforms) {
			return deny("Platform connection limit reached (%d). Upgrade for more platforms.", l.Platforms), nil
		}
	default:
		return Decision{}, fmt.Errorf("%w: unknown action %q", common.ErrValidation, action)
	}
	return allow(), nil
}

func reached(used, limit int) bool {
	return limit != Unlimited && used >= limit
}

// QuickConnectQuota reports this month's app-wide usage for every
// quick-connect platform, including those with no publishes yet.
func (g *Guard) QuickConnectQuota(ctx context.Context) (map[string]QuotaStatus, error) {
	counts, err := g.repomanager.QuickConnect(g.db).ListMonth(ctx, common.MonthKey(g.now()))
	if err != nil {
		return nil, err
	}

	quotas := platforms.QuickConnectQuotas()
	out := make(map[string]QuotaStatus, len(quotas))
	for platform, n := range counts {
		out[platform] = QuotaStatus{Usage: n, Limit: quotas[platform]}
	}
	for platform, limit := range quotas {
		if _, ok := out[platform]; !ok {
			out[platform] = QuotaStatus{Limit: limit}
		}
	}
	return out, nil
}
