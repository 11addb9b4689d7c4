package app

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/ashbolt/coursebot/core/bootstrap"
	"github.com/ashbolt/coursebot/core/cmd"
	"github.com/ashbolt/coursebot/core/logger"
	coretelegram "github.com/ashbolt/coursebot/core/telegram"
	"github.com/ashbolt/coursebot/core/telegram/sender"
	"github.com/ashbolt/coursebot/core/telegram/state"
	"github.com/ashbolt/coursebot/internal/course"
	"github.com/ashbolt/coursebot/internal/operator"
	"github.com/ashbolt/coursebot/internal/tgbot"
)

// App owns the long-lived infrastructure of the course bot.
type App struct {
	cfg   *Config
	flow  course.Flow
	store *state.Store

	participants *sender.Dispatcher
	operator     *sender.Dispatcher
}

var _ cmd.TelegramApp = (*App)(nil)

// Bootstrap initializes logging and the state backend and starts both outbound queues.
func Bootstrap(ctx context.Context, cfg *Config) (*App, error) {
	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:    &cfg.Config,
		Database:  cfg.Database,
		Backend:   cfg.Store.Backend,
		BadgerDir: cfg.Store.BadgerDir,
	})
	if err != nil {
		return nil, err
	}
	return New(cfg, res.Store), nil
}

// New builds the app around an already opened store.
func New(cfg *Config, store *state.Store) *App {
	flow := course.NewFlow(cfg.Course.Settings(), nil)
	logger.Flow.Info("catalog loaded",
		slog.String("event", "catalog"),
		slog.Int("offers", len(flow.Catalog)),
	)
	return &App{
		cfg:   cfg,
		flow:  flow,
		store: store,
		participants: sender.NewDispatcher(sender.Options{
			Name:       "participant",
			QueueSize:  cfg.Sender.QueueSize,
			Workers:    cfg.Sender.Workers,
			MaxRetries: cfg.Sender.MaxRetries,
		}),
		// Operator notifications are fire-and-forget.
		operator: sender.NewDispatcher(sender.Options{
			Name:       "operator",
			Workers:    1,
			MaxRetries: 0,
		}),
	}
}

// TelegramRunOptions assembles the bot runtime.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	core := &a.cfg.Config
	return coretelegram.RunOptions{
		Config:      core,
		Registry:    coretelegram.NewRegistry(),
		Dispatcher:  a.participants,
		Middlewares: coretelegram.DefaultMiddlewares(core, nil),
		BuildRoutes: a.routes,
		OnStart:     a.start,
		OnStop:      a.stop,
	}, nil
}

func (a *App) routes(bot *tele.Bot, rt coretelegram.Runtime) ([]coretelegram.Route, error) {
	adminID := a.cfg.Telegram.AdminID
	notifier := operator.NewNotifier(bot, adminID, a.operator)
	engine := course.NewEngine(a.flow, a.store, notifier)
	gateway := operator.NewGateway(bot, a.store, adminID)

	handlers := tgbot.New(bot, engine, gateway, rt.Dispatcher, adminID)
	if err := handlers.Register(rt.Registry); err != nil {
		return nil, err
	}
	logger.Ops.Info("operator wired",
		slog.String("event", "operator"),
		slog.Int64("admin_id", adminID),
	)
	return handlers.Routes(rt.Registry), nil
}

func (a *App) start(ctx context.Context, _ coretelegram.Runtime) error {
	if a.cfg.Store.IdleTTL > 0 {
		go a.store.RunJanitor(ctx, a.cfg.Store.IdleTTL, a.cfg.Store.SweepInterval)
	}
	return nil
}

// stop drains the operator queue and releases the store. The participant
// queue belongs to the runtime and is closed by it, so its totals may still
// grow by whatever is in flight.
func (a *App) stop(ctx context.Context, _ coretelegram.Runtime) error {
	a.operator.Close()
	logger.Ops.LogAttrs(ctx, slog.LevelInfo, "send queues stopped",
		slog.String("event", "queue.totals"),
		queueTotals("operator", a.operator),
		queueTotals("participant", a.participants),
	)
	return a.Close()
}

func queueTotals(name string, q *sender.Dispatcher) slog.Attr {
	return slog.Group(name,
		slog.Uint64("sent", q.SentCount()),
		slog.Uint64("failed", q.ErrorCount()),
	)
}

// Close releases the store.
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}
