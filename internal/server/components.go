package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/crosspost/internal/cryptox"
	"github.com/dmitrijs2005/crosspost/internal/logging"
	"github.com/dmitrijs2005/crosspost/internal/platforms"
	"github.com/dmitrijs2005/crosspost/internal/server/billing"
	"github.com/dmitrijs2005/crosspost/internal/server/config"
	"github.com/dmitrijs2005/crosspost/internal/server/lock"
	"github.com/dmitrijs2005/crosspost/internal/server/media"
	"github.com/dmitrijs2005/crosspost/internal/server/quickconnect"
	"github.com/dmitrijs2005/crosspost/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/crosspost/internal/server/services"
)

// platformTimeout bounds a single outbound platform request.
const platformTimeout = 60 * time.Second

// openStore opens the database and brings its schema up to date.
var openStore = func(ctx context.Context, dsn string) (*sql.DB, repomanager.RepositoryManager, error) {
	db, err := repomanager.OpenPostgres(dsn)
	if err != nil {
		return nil, nil, err
	}
	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, rm, nil
}

// newS3Resolver is swapped in tests.
var newS3Resolver = func(ctx context.Context, opts media.S3Options) (media.Resolver, error) {
	return media.NewS3Resolver(ctx, opts)
}

// Components is the wired service graph shared by the HTTP server and the
// operator CLI.
type Components struct {
	DB           *sql.DB
	Vault        *cryptox.Vault
	Registry     *platforms.Registry
	Guard        *billing.Guard
	Publish      *services.PublishService
	Connections  *services.ConnectionService
	Items        *services.ItemService
	Usage        *services.UsageService
	Scheduler    *services.Scheduler
	QuickConnect *quickconnect.Service

	closers []func() error
}

// NewComponents validates c and builds every service it describes. The
// caller owns the result and must Close it.
func NewComponents(ctx context.Context, c *config.Config, log logging.Logger) (*Components, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	vault, err := cryptox.NewVault(c.VaultSecret)
	if err != nil {
		return nil, fmt.Errorf("vault init error: %w", err)
	}

	db, rm, err := openStore(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	comp := &Components{DB: db, Vault: vault}
	comp.closers = append(comp.closers, db.Close)

	resolver, err := newResolver(ctx, c)
	if err != nil {
		_ = comp.Close()
		return nil, fmt.Errorf("media init error: %w", err)
	}

	locker := newLocker(c, log)
	if cl, ok := locker.(interface{ Close() error }); ok {
		comp.closers = append(comp.closers, cl.Close)
	}

	hc := &http.Client{Timeout: platformTimeout}
	comp.Registry = platforms.NewDefaultRegistry(platforms.Options{HTTPClient: hc})
	comp.Guard = billing.NewGuard(db, rm, c.SelfHosted)

	comp.Publish = services.NewPublishService(db, rm, vault, comp.Registry, resolver, log).
		WithConcurrency(c.PublishConcurrency).
		WithLocker(locker)
	comp.Connections = services.NewConnectionService(db, rm, vault, comp.Registry, comp.Guard, log)
	comp.Items = services.NewItemService(db, rm, comp.Guard, log)
	comp.Usage = services.NewUsageService(db, rm)
	comp.Scheduler = services.NewScheduler(db, rm, comp.Publish, log)
	comp.QuickConnect = quickconnect.New(quickconnect.Options{
		ClientID:     c.XClientID,
		ClientSecret: c.XClientSecret,
		BaseURL:      c.PublicBaseURL,
		HTTPClient:   hc,
	}, comp.Connections, log)

	return comp, nil
}

// Close releases everything NewComponents opened, last opened first.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func newResolver(ctx context.Context, c *config.Config) (media.Resolver, error) {
	if c.MediaBackend == config.MediaS3 {
		return newS3Resolver(ctx, media.S3Options{
			Bucket:    c.S3Bucket,
			Region:    c.S3Region,
			Endpoint:  c.S3Endpoint,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
			CacheDir:  c.S3CacheDir,
		})
	}
	return media.NewLocalResolver(c.DataDir), nil
}

func newLocker(c *config.Config, log logging.Logger) lock.Locker {
	switch c.LockMode {
	case config.LockLocal:
		return lock.NewLocal()
	case config.LockRedis:
		return lock.NewRedis(lock.RedisOptions{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
			TTL:      c.LockTTL,
			Log:      log,
		})
	default:
		return lock.Nop{}
	}
}
