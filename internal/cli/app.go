// Package cli is the operator command line: it shares the server's
// configuration and service graph so connections can be added and tested,
// items published and the scheduled trigger run by hand.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/dmitrijs2005/crosspost/internal/logging"
	"github.com/dmitrijs2005/crosspost/internal/platforms"
	"github.com/dmitrijs2005/crosspost/internal/server"
	"github.com/dmitrijs2005/crosspost/internal/server/config"
	"github.com/dmitrijs2005/crosspost/internal/server/models"
	"github.com/dmitrijs2005/crosspost/internal/server/services"
)

type connections interface {
	Connect(ctx context.Context, userID string, req services.ConnectRequest) (*services.ConnectionView, error)
	Test(ctx context.Context, userID, connectionID string) (platforms.TestResult, error)
	List(ctx context.Context, userID string, brandID *string) ([]*services.ConnectionView, error)
}

type itemPublisher interface {
	Publish(ctx context.Context, itemID, userID string) (*services.PublishResult, error)
}

type dueRunner interface {
	RunDue(ctx context.Context) (*services.DueSummary, error)
}

type usageReader interface {
	Usage(ctx context.Context, userID string) (*models.Usage, error)
}

type tierSetter interface {
	SetTier(ctx context.Context, userID, tierID string) error
}

type App struct {
	config      *config.Config
	connections connections
	publisher   itemPublisher
	scheduler   dueRunner
	usage       usageReader
	tiers       tierSetter
	reader      *bufio.Reader
	out         io.Writer
	close       func() error
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stderr, "text", c.LogLevel)

	comp, err := server.NewComponents(ctx, c, logger)
	if err != nil {
		return nil, err
	}

	return &App{
		config:      c,
		connections: comp.Connections,
		publisher:   comp.Publish,
		scheduler:   comp.Scheduler,
		usage:       comp.Guard,
		tiers:       comp.Guard,
		reader:      bufio.NewReader(os.Stdin),
		out:         os.Stdout,
		close:       comp.Close,
	}, nil
}

func (a *App) Close() error {
	if a.close == nil {
		return nil
	}
	return a.close()
}

// printJSON writes v indented, for results an operator may want to pipe on.
func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
