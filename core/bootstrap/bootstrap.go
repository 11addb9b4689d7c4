package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/ashbolt/coursebot/core/config"
	coredatabase "github.com/ashbolt/coursebot/core/database"
	"github.com/ashbolt/coursebot/core/logger"
	"github.com/ashbolt/coursebot/core/telegram/state"
)

// State backend names accepted by Options.Backend.
const (
	BackendMemory   = "memory"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)

// Options control the generic bootstrap pipeline shared between bots.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config

	// Backend selects the participant state backend; empty -> memory.
	Backend   string
	BadgerDir string

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(context.Context, coredatabase.Config) error
	OpenBadger func(dir string) (state.Backend, error)
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	Store *state.Store
	// DB is set for the postgres backend only. Closing Store closes it.
	DB *sqlx.DB
}

// Run initializes the logger and opens the participant state backend. The
// postgres backend connects and applies migrations first.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	if backend == "" {
		backend = BackendMemory
	}

	var res Result
	switch backend {
	case BackendMemory:
		res.Store = state.NewStore(state.NewMemoryBackend())
	case BackendBadger:
		open := opts.OpenBadger
		if open == nil {
			open = state.OpenBadger
		}
		b, err := open(opts.BadgerDir)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: state backend initialization failed: %w", err)
		}
		res.Store = state.NewStore(b)
	case BackendPostgres:
		connect := opts.Connect
		if connect == nil {
			connect = coredatabase.Connect
		}
		db, err := connect(ctx, opts.Database)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
		}

		migrate := opts.Migrate
		if migrate == nil {
			migrate = coredatabase.RunMigrations
		}
		if err := migrate(ctx, opts.Database); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
		res.DB = db
		res.Store = state.NewStore(state.NewPostgresBackend(db))
	default:
		return nil, fmt.Errorf("bootstrap: unknown state backend %q", opts.Backend)
	}

	logger.Store.Info("state backend ready",
		slog.String("event", "state.open"),
		slog.String("backend", res.Store.Backend()),
	)
	return &res, nil
}
