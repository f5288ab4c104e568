// Package server wires the crosspost services together and runs the HTTP
// API alongside the in-process scheduled-publish trigger, shutting both down
// on SIGINT, SIGTERM or SIGQUIT.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/crosspost/internal/logging"
	"github.com/dmitrijs2005/crosspost/internal/server/config"
	"github.com/dmitrijs2005/crosspost/internal/server/httpapi"
	"github.com/robfig/cron/v3"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config     *config.Config
	logger     logging.Logger
	components *Components
	handler    http.Handler
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, c.LogFormat, c.LogLevel)

	comp, err := NewComponents(ctx, c, logger)
	if err != nil {
		return nil, err
	}

	router := httpapi.NewRouter(httpapi.Services{
		Publisher:    comp.Publish,
		Items:        comp.Items,
		Connections:  comp.Connections,
		Billing:      comp.Guard,
		Usage:        comp.Usage,
		QuickConnect: comp.QuickConnect,
		Scheduler:    comp.Scheduler,
	}, httpapi.Options{
		JWTSecret:  []byte(c.JWTSecret),
		CronSecret: c.CronSecret,
	}, logger)

	return &App{config: c, logger: logger, components: comp, handler: router}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:              app.config.HTTPAddr,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(shutdownCtx, "http shutdown error", "error", err)
		}
	}()

	app.logger.Info(ctx, "http server listening", "addr", app.config.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// runScheduledPublish is the body of each cron tick.
func (app *App) runScheduledPublish(ctx context.Context) {
	summary, err := app.components.Scheduler.RunDue(ctx)
	if err != nil {
		app.logger.Error(ctx, "scheduled publish failed", "error", err)
		return
	}
	if summary.Processed > 0 {
		app.logger.Info(ctx, "scheduled publish finished", "processed", summary.Processed)
	}
}

// startScheduler triggers RunDue on CronSchedule until ctx is done. Ticks
// that overlap a still-running pass are skipped.
func (app *App) startScheduler(ctx context.Context) error {
	if app.config.CronSchedule == "" {
		app.logger.Info(ctx, "in-process scheduler disabled")
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(app.config.CronSchedule, func() { app.runScheduledPublish(ctx) }); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", app.config.CronSchedule, err)
	}
	c.Start()
	app.logger.Info(ctx, "scheduler started", "schedule", app.config.CronSchedule)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		if err := app.startScheduler(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.components.Close(); err != nil {
		app.logger.Error(context.Background(), "close error", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
}
