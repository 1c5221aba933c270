// Package cli implements the chemctl command line.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/erp/chemstock/internal/application/common"
	appidentity "github.com/erp/chemstock/internal/application/identity"
	appinventory "github.com/erp/chemstock/internal/application/inventory"
	appproject "github.com/erp/chemstock/internal/application/project"
	appreport "github.com/erp/chemstock/internal/application/report"
	apprequisition "github.com/erp/chemstock/internal/application/requisition"
	"github.com/erp/chemstock/internal/domain/identity"
	"github.com/erp/chemstock/internal/domain/shared"
	"github.com/erp/chemstock/internal/infrastructure/apiclient"
	"github.com/erp/chemstock/internal/infrastructure/config"
	"github.com/erp/chemstock/internal/infrastructure/logger"
	"github.com/erp/chemstock/internal/infrastructure/session"
	"github.com/erp/chemstock/internal/infrastructure/storage"
	"github.com/erp/chemstock/internal/infrastructure/telemetry"
)

// Version information (populated at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Streams are the standard streams of a run
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// runFunc executes a command with its positional arguments
type runFunc func(ctx context.Context, a *App, args []string) error

// command is a leaf of the command tree. setup registers the command flags and
// returns the function that reads them.
type command struct {
	path    string
	args    string
	summary string
	offline bool // runs without configuration or API access
	setup   func(fs *pflag.FlagSet) runFunc
}

var commands = map[string]*command{}

func register(cmds ...*command) {
	for _, c := range cmds {
		commands[c.path] = c
	}
}

// Option customizes the App built by Run
type Option func(*App)

// WithSession replaces the session store selected by configuration
func WithSession(s *session.Store) Option {
	return func(a *App) { a.session = s }
}

// WithArchiver replaces the S3 archive selected by configuration
func WithArchiver(ar appreport.Archiver) Option {
	return func(a *App) { a.archiver = ar }
}

// WithClock overrides the time source used for default dates
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// App holds the services shared by every command of a run
type App struct {
	cfg      *config.Config
	log      *zap.Logger
	closeLog func()
	out      *Printer
	stderr   io.Writer
	in       *bufio.Reader
	session  *session.Store
	metrics  *telemetry.Metrics
	client   *apiclient.Client
	confirm  common.Confirmer
	archiver appreport.Archiver
	now      func() time.Time

	auth         *appidentity.AuthService
	users        *appidentity.UserService
	facilities   *appinventory.FacilityService
	chemicals    *appinventory.ChemicalService
	stock        *appinventory.StockService
	transactions *appinventory.TransactionService
	operations   *appinventory.OperationService
	requisitions *apprequisition.Service
	projects     *appproject.ProjectService
	closures     *appproject.WellClosureService
	reports      *appreport.Service
}

// globalFlags are accepted before and after the command name
type globalFlags struct {
	set     *pflag.FlagSet
	config  string
	yes     bool
	verbose bool
}

func newGlobalFlags(stderr io.Writer) *globalFlags {
	g := &globalFlags{set: pflag.NewFlagSet("chemctl", pflag.ContinueOnError)}
	fs := g.set
	fs.SetOutput(stderr)
	fs.StringVarP(&g.config, "config", "c", "", "Path to chemstock.toml")
	fs.String("profile", "", "Session profile name")
	fs.String("env", "", "Environment: development or production")
	fs.StringP("output", "o", "", "Output format: table, json, yaml")
	fs.BoolVarP(&g.yes, "yes", "y", false, "Answer yes to every confirmation")
	fs.BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")
	fs.String("base-url", "", "API origin, e.g. http://10.0.0.5:8000")
	fs.Duration("timeout", 0, "HTTP request timeout")
	fs.String("log-level", "", "Log level: debug, info, warn, error")
	fs.Duration("debounce", 0, "Quiet period of watch filters")
	return g
}

// Run executes chemctl with args (without the program name) and returns the
// process exit code.
func Run(ctx context.Context, args []string, streams Streams, opts ...Option) int {
	globals := newGlobalFlags(streams.Err)
	globals.set.SetInterspersed(false)
	globals.set.Usage = func() { printUsage(streams.Err) }
	if err := globals.set.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	cmd, rest := lookup(globals.set.Args())
	if cmd == nil {
		printUsage(streams.Err)
		return 2
	}

	fs := pflag.NewFlagSet("chemctl "+cmd.path, pflag.ContinueOnError)
	fs.SetOutput(streams.Err)
	run := cmd.setup(fs)
	fs.AddFlagSet(globals.set)
	fs.Usage = func() {
		fmt.Fprintf(streams.Err, "Usage: chemctl %s [flags] %s\n\n%s\n\nFlags:\n", cmd.path, cmd.args, cmd.summary)
		fs.PrintDefaults()
	}
	if err := fs.Parse(rest); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	if cmd.offline {
		if err := run(ctx, &App{out: NewPrinter(streams.Out, FormatTable), stderr: streams.Err}, fs.Args()); err != nil {
			fmt.Fprintf(streams.Err, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	cfg, err := config.LoadWithFlags(globals.config, globals.set)
	if err != nil {
		fmt.Fprintf(streams.Err, "Error: %v\n", err)
		return 1
	}
	if globals.verbose {
		cfg.Log.Level = "debug"
	}

	app, err := newApp(cfg, globals, streams, opts...)
	if err != nil {
		fmt.Fprintf(streams.Err, "Error: %v\n", err)
		return 1
	}
	defer app.close()

	ctx = logger.WithContext(ctx, app.log)
	ctx, _ = logger.WithProfile(ctx, app.log, cfg.App.Profile)

	if err := run(ctx, app, fs.Args()); err != nil {
		return app.fail(err)
	}
	return 0
}

// lookup resolves the longest registered command path at the head of args
func lookup(args []string) (*command, []string) {
	if len(args) == 0 {
		return nil, nil
	}
	if len(args) > 1 {
		if c, ok := commands[args[0]+" "+args[1]]; ok {
			return c, args[2:]
		}
	}
	if c, ok := commands[args[0]]; ok {
		return c, args[1:]
	}
	return nil, nil
}

func newApp(cfg *config.Config, globals *globalFlags, streams Streams, opts ...Option) (*App, error) {
	log, closeLog, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}, streams.Err)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	in := streams.In
	if in == nil {
		in = strings.NewReader("")
	}

	a := &App{
		cfg:      cfg,
		log:      log,
		closeLog: closeLog,
		out:      NewPrinter(streams.Out, cfg.UI.Output),
		stderr:   streams.Err,
		in:       bufio.NewReader(in),
		metrics:  telemetry.NewMetrics(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	if globals.yes {
		a.confirm = common.AlwaysConfirm
	} else {
		a.confirm = newPromptConfirmer(a.in, streams.Err)
	}

	if a.session == nil {
		a.session, err = session.Open(cfg.Session, cfg.App.Profile)
		if err != nil {
			return nil, fmt.Errorf("failed to open session store: %w", err)
		}
	}

	if a.archiver == nil && cfg.Storage.Enabled {
		archive, err := storage.NewS3Archive(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize archive storage: %w", err)
		}
		a.archiver = archive
	}

	a.client, err = apiclient.New(cfg.API, a.session,
		apiclient.WithLogger(log),
		apiclient.WithMetrics(a.metrics),
		apiclient.WithUserAgent(cfg.API.UserAgent),
		apiclient.WithSessionExpiredHook(func(ctx context.Context, err error) {
			fmt.Fprintln(streams.Err, "Session expired, run `chemctl login` to sign in again.")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	a.auth = appidentity.NewAuthService(a.client, a.session)
	a.users = appidentity.NewUserService(a.client, a.confirm)
	a.facilities = appinventory.NewFacilityService(a.client, a.confirm)
	a.chemicals = appinventory.NewChemicalService(a.client, a.confirm)
	a.stock = appinventory.NewStockService(a.client)
	a.transactions = appinventory.NewTransactionService(a.client)
	a.operations = appinventory.NewOperationService(a.client, a.confirm)
	a.requisitions = apprequisition.NewService(a.client, a.confirm)
	a.projects = appproject.NewProjectService(a.client, a.confirm)
	a.closures = appproject.NewWellClosureService(a.client, a.confirm)
	a.reports = appreport.NewService(a.client, a.confirm)
	return a, nil
}

// close flushes metrics and logs and releases the session backend
func (a *App) close() {
	if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		a.log.Warn("failed to write metrics", zap.Error(err))
	}
	if err := a.session.Close(); err != nil {
		a.log.Warn("failed to close session store", zap.Error(err))
	}
	_ = a.log.Sync()
	a.closeLog()
}

// fail reports err and returns the exit code
func (a *App) fail(err error) int {
	switch {
	case errors.Is(err, apiclient.ErrSessionExpired):
		// the expiry hook already told the user
	case errors.Is(err, session.ErrNotLoggedIn):
		fmt.Fprintln(a.stderr, "Not logged in, run `chemctl login` first.")
	case errors.Is(err, shared.ErrNotConfirmed):
		fmt.Fprintln(a.stderr, "Cancelled.")
	default:
		a.log.Debug("command failed", zap.Error(err))
		fmt.Fprintf(a.stderr, "Error: %s\n", apiclient.Message(err))
	}
	return 1
}

// viewer returns the signed-in user from the session
func (a *App) viewer(ctx context.Context) (*identity.User, error) {
	return a.auth.CurrentUser(ctx)
}

// reportService returns the report service, archiving uploads when asked
func (a *App) reportService(archive bool) (*appreport.Service, error) {
	if !archive {
		return a.reports, nil
	}
	if a.archiver == nil {
		return nil, errStorageDisabled
	}
	return appreport.NewService(a.client, a.confirm, appreport.WithArchiver(a.archiver)), nil
}

var errStorageDisabled = errors.New("archive storage is not enabled, set storage.enabled in chemstock.toml")

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `chemctl - chemical inventory client v%s

Usage:
  chemctl [global flags] <command> [subcommand] [flags] [args]

Commands:
`, Version)

	paths := make([]string, 0, len(commands))
	for p := range commands {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		c := commands[p]
		fmt.Fprintf(w, "  %-28s %s\n", strings.TrimSpace(c.path+" "+c.args), c.summary)
	}

	fmt.Fprint(w, `
Global flags:
  -c, --config string     Path to chemstock.toml
      --profile string    Session profile name
  -o, --output string     Output format: table, json, yaml
  -y, --yes               Answer yes to every confirmation
  -v, --verbose           Enable debug logging
      --base-url string   API origin, e.g. http://10.0.0.5:8000

Environment:
  Every setting can be overridden with CHEMSTOCK_<SECTION>_<KEY>,
  e.g. CHEMSTOCK_API_BASE_URL or CHEMSTOCK_SESSION_BACKEND=redis.

Examples:
  chemctl login -u ivanov
  chemctl requisitions list --status submitted
  chemctl requisitions status 15 approved
  chemctl reports consumption --facility 3 --period month --xlsx consumption.xlsx
`)
}
