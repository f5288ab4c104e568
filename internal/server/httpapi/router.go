// Package httpapi exposes crosspost over HTTP with gin: publishing,
// item composition, connections, billing reports, quick-connect OAuth and the cron trigger.
package httpapi

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/crosspost/internal/logging"
	"github.com/dmitrijs2005/crosspost/internal/platforms"
	"github.com/dmitrijs2005/crosspost/internal/server/billing"
	"github.com/dmitrijs2005/crosspost/internal/server/models"
	"github.com/dmitrijs2005/crosspost/internal/server/quickconnect"
	"github.com/dmitrijs2005/crosspost/internal/server/services"
	"github.com/gin-gonic/gin"
)

type ItemPublisher interface {
	Publish(ctx context.Context, itemID, userID string) (*services.PublishResult, error)
}

type Items interface {
	Create(ctx context.Context, userID string, req services.CreateItemRequest) (*services.ItemView, error)
	Activity(ctx context.Context, userID, itemID string) ([]services.ActivityEntry, error)
	Delete(ctx context.Context, userID, itemID string) error
}

type Connections interface {
	Connect(ctx context.Context, userID string, req services.ConnectRequest) (*services.ConnectionView, error)
	Test(ctx context.Context, userID, connectionID string) (platforms.TestResult, error)
	List(ctx context.Context, userID string, brandID *string) ([]*services.ConnectionView, error)
	Delete(ctx context.Context, userID, connectionID string) error
}

type Billing interface {
	Tier(ctx context.Context, userID string) (billing.Tier, error)
	Usage(ctx context.Context, userID string) (*models.Usage, error)
	Check(ctx context.Context, userID string, action billing.Action) (billing.Decision, error)
	QuickConnectQuota(ctx context.Context) (map[string]billing.QuotaStatus, error)
}

type AdaptationRecorder interface {
	RecordAdaptation(ctx context.Context, userID string, n int) error
}

type QuickConnect interface {
	AuthorizeURL(userID, platform, brandID string) (string, error)
	Callback(ctx context.Context, p quickconnect.CallbackParams) (string, error)
}

type DueRunner interface {
	RunDue(ctx context.Context) (*services.DueSummary, error)
}

// Services are the collaborators behind the routes.
type Services struct {
	Publisher    ItemPublisher
	Items        Items
	Connections  Connections
	Billing      Billing
	Usage        AdaptationRecorder
	QuickConnect QuickConnect
	Scheduler    DueRunner
}

type Options struct {
	JWTSecret  []byte
	CronSecret string
	// SettingsPath is where the OAuth callback sends the browser back to.
	SettingsPath string
}

type handler struct {
	svc  Services
	opts Options
	log  logging.Logger
}

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(svc Services, opts Options, log logging.Logger) *gin.Engine {
	if opts.SettingsPath == "" {
		opts.SettingsPath = "/settings"
	}
	h := &handler{svc: svc, opts: opts, log: log.With("module", "http")}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogging(h.log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	cron := api.Group("/cron", cronAuth(opts.CronSecret))
	cron.GET("/publish-scheduled", h.runDue)
	cron.POST("/publish-scheduled", h.runDue)

	api.GET("/oauth/x/callback", h.oauthCallback)
	api.GET("/platforms/catalog", func(c *gin.Context) {
		c.JSON(http.StatusOK, platforms.Catalog())
	})

	authed := api.Group("", jwtAuth(opts.JWTSecret))
	authed.POST("/posts", h.createItem)
	authed.POST("/posts/:id/publish", h.publish)
	authed.GET("/posts/:id/activity", h.itemActivity)
	authed.DELETE("/posts/:id", h.deleteItem)

	authed.GET("/platforms", h.listConnections)
	authed.POST("/platforms", h.connect)
	authed.POST("/platforms/:id/test", h.testConnection)
	authed.DELETE("/platforms/:id", h.deleteConnection)

	authed.GET("/billing/usage", h.usage)
	authed.GET("/billing/check", h.check)
	authed.GET("/billing/quota", h.quota)
	authed.POST("/billing/usage/adaptations", h.recordAdaptations)

	authed.GET("/oauth/:platform/authorize", h.oauthAuthorize)

	return r
}
