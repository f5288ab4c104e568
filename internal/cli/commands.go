package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/crosspost/internal/common"
	"github.com/dmitrijs2005/crosspost/internal/flagx"
	"github.com/dmitrijs2005/crosspost/internal/platforms"
	"github.com/dmitrijs2005/crosspost/internal/server/auth"
	"github.com/dmitrijs2005/crosspost/internal/server/services"
)

// GlobalFlags are the configuration flags that take a value; they may come
// before the command name.
var GlobalFlags = []string{"-a", "-d", "-k", "-s", "-m", "-n", "-l", "-c", "-config"}

// ErrUsage is returned for an unknown command or missing arguments.
var ErrUsage = errors.New("usage error")

const usage = `Usage: crosspost-cli [config flags] <command> [args]

Commands:
  catalog                                  list supported platforms
  connect -user ID -platform P [-brand ID] [-name N]
                                           add a platform connection
  list -user ID [-brand ID]                list connections
  test <connection-id> -user ID            check a connection's credentials
  publish <item-id> -user ID               publish an item now
  run-due                                  publish every due scheduled item
  usage -user ID                           show this month's usage
  tier -user ID -tier T                    set a user's subscription tier
  token -user ID                           mint an API bearer token
`

// Run executes the command found in args (usually os.Args[1:]).
func (a *App) Run(ctx context.Context, args []string) error {
	cmd, rest := flagx.SplitCommand(args, GlobalFlags)

	switch cmd {
	case "catalog":
		return a.catalog()
	case "connect":
		return a.connect(ctx, rest)
	case "list":
		return a.list(ctx, rest)
	case "test":
		return a.test(ctx, rest)
	case "publish":
		return a.publish(ctx, rest)
	case "run-due":
		return a.runDue(ctx)
	case "usage":
		return a.showUsage(ctx, rest)
	case "tier":
		return a.setTier(ctx, rest)
	case "token":
		return a.token(rest)
	case "", "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	default:
		fmt.Fprint(a.out, usage)
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

// splitTarget separates a leading positional id from the command's flags.
// The id may also follow the flags.
func splitTarget(args []string) (string, []string) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return args[0], args[1:]
	}
	return "", args
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func requireUser(user string) error {
	if user == "" {
		return fmt.Errorf("%w: -user is required", ErrUsage)
	}
	return nil
}

func optionalID(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (a *App) catalog() error {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCHARS\tMEDIA\tQUICK CONNECT")
	for _, m := range platforms.Catalog() {
		qc := "-"
		if m.QuickConnect {
			qc = fmt.Sprintf("%d/month", m.QuickConnectQuota)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", m.ID, m.Name, m.CharLimit, m.MaxMedia, qc)
	}
	return tw.Flush()
}

func (a *App) connect(ctx context.Context, args []string) error {
	var user, platform, brand, name string
	fs := newFlagSet("connect", a.out)
	fs.StringVar(&user, "user", "", "owner user id")
	fs.StringVar(&platform, "platform", "", "platform id")
	fs.StringVar(&brand, "brand", "", "brand id (optional)")
	fs.StringVar(&name, "name", "", "display name (optional)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if err := requireUser(user); err != nil {
		return err
	}
	if _, ok := platforms.Describe(platform); !ok {
		return fmt.Errorf("%w: unknown platform %q", ErrUsage, platform)
	}

	fields, err := readCredentialFields(a.reader, a.out)
	if err != nil {
		return err
	}
	creds, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(creds)

	view, err := a.connections.Connect(ctx, user, services.ConnectRequest{
		Platform:    platform,
		BrandID:     optionalID(brand),
		DisplayName: name,
		Credentials: creds,
	})
	if err != nil {
		return err
	}

	display := platform
	if view.DisplayName != nil {
		display = *view.DisplayName
	}
	fmt.Fprintf(a.out, "Connected %s as %s (id %s)\n", platform, display, view.ID)
	return nil
}

func (a *App) list(ctx context.Context, args []string) error {
	var user, brand string
	fs := newFlagSet("list", a.out)
	fs.StringVar(&user, "user", "", "owner user id")
	fs.StringVar(&brand, "brand", "", "brand id (optional)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if err := requireUser(user); err != nil {
		return err
	}

	conns, err := a.connections.List(ctx, user, optionalID(brand))
	if err != nil {
		return err
	}
	if len(conns) == 0 {
		fmt.Fprintln(a.out, "No connections.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPLATFORM\tNAME\tMODE\tACTIVE")
	for _, c := range conns {
		name := "-"
		if c.DisplayName != nil {
			name = *c.DisplayName
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", c.ID, c.Platform, name, c.Mode, c.Active)
	}
	return tw.Flush()
}

func (a *App) test(ctx context.Context, args []string) error {
	id, args := splitTarget(args)
	var user string
	fs := newFlagSet("test", a.out)
	fs.StringVar(&user, "user", "", "owner user id")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if id == "" {
		id = fs.Arg(0)
	}
	if id == "" {
		return fmt.Errorf("%w: connection id is required", ErrUsage)
	}
	if err := requireUser(user); err != nil {
		return err
	}

	res, err := a.connections.Test(ctx, user, id)
	if err != nil {
		return err
	}
	if !res.Success {
		fmt.Fprintf(a.out, "Connection failed: %s\n", res.Error)
		return res.Err()
	}
	fmt.Fprintf(a.out, "Connection OK: %s\n", res.DisplayName)
	return nil
}

func (a *App) publish(ctx context.Context, args []string) error {
	id, args := splitTarget(args)
	var user string
	fs := newFlagSet("publish", a.out)
	fs.StringVar(&user, "user", "", "owner user id")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if id == "" {
		id = fs.Arg(0)
	}
	if id == "" {
		return fmt.Errorf("%w: item id is required", ErrUsage)
	}
	if err := requireUser(user); err != nil {
		return err
	}

	res, err := a.publisher.Publish(ctx, id, user)
	if err != nil {
		return err
	}
	return a.printJSON(res)
}

func (a *App) runDue(ctx context.Context) error {
	summary, err := a.scheduler.RunDue(ctx)
	if err != nil {
		return err
	}
	return a.printJSON(summary)
}

func (a *App) showUsage(ctx context.Context, args []string) error {
	var user string
	fs := newFlagSet("usage", a.out)
	fs.StringVar(&user, "user", "", "user id")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if err := requireUser(user); err != nil {
		return err
	}

	u, err := a.usage.Usage(ctx, user)
	if err != nil {
		return err
	}
	return a.printJSON(u)
}

func (a *App) setTier(ctx context.Context, args []string) error {
	var user, tier string
	fs := newFlagSet("tier", a.out)
	fs.StringVar(&user, "user", "", "user id")
	fs.StringVar(&tier, "tier", "", "free, pro or team")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if err := requireUser(user); err != nil {
		return err
	}
	if tier == "" {
		return fmt.Errorf("%w: -tier is required", ErrUsage)
	}

	if err := a.tiers.SetTier(ctx, user, tier); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "User %s is now on the %s tier\n", user, tier)
	return nil
}

func (a *App) token(args []string) error {
	var user string
	fs := newFlagSet("token", a.out)
	fs.StringVar(&user, "user", "", "user id")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if err := requireUser(user); err != nil {
		return err
	}

	tok, err := auth.GenerateToken(user, []byte(a.config.JWTSecret), a.config.AccessTokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, tok)
	return nil
}
