package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	coreconfig "github.com/ashbolt/coursebot/core/config"
	"github.com/ashbolt/coursebot/core/logger"
	tghelpers "github.com/ashbolt/coursebot/core/telegram/helpers"
	tgsender "github.com/ashbolt/coursebot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route
	// BuildRoutes runs once the bot exists, for handlers that need to send
	// through it. Its routes are registered after Routes.
	BuildRoutes func(bot *tele.Bot, rt Runtime) ([]Route, error)

	DisableWebhookCleanup   bool
	DisableHelperDispatcher bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram composes and runs a Telegram bot until the provided context is done.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return fmt.Errorf("telegram: nil config provided")
	}

	cfg := opts.Config
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	longPoll := time.Duration(cfg.Telegram.LongPollTimeoutSeconds) * time.Second
	if longPoll <= 0 {
		longPoll = 10 * time.Second
	}
	poller := BuildPoller(PollerOptions{
		RunMode:                cfg.Telegram.RunMode,
		LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
	})

	settings := tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: poller,
		Client: BuildHTTPClient(longPoll),
		OnError: func(err error, c tele.Context) {
			attrs := []slog.Attr{slog.String("err", err.Error())}
			if c != nil {
				attrs = append(attrs, slog.Int("update_id", c.Update().ID))
			}
			logger.Error(ctx, "tg", "tg.error", attrs...)
		},
	}

	buildStart := time.Now()
	bot, err := tele.NewBot(settings)
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	buildTook := time.Since(buildStart)

	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = tgsender.NewDispatcher(opts.DispatcherOptions)
	}
	useHelperDispatcher := !opts.DisableHelperDispatcher
	if useHelperDispatcher {
		tghelpers.SetDispatcher(dispatcher)
	}
	cleanup := func() {
		dispatcher.Close()
		if useHelperDispatcher {
			tghelpers.SetDispatcher(nil)
		}
	}

	rt := Runtime{
		Bot:        bot,
		Dispatcher: dispatcher,
		Registry:   reg,
	}

	isWebhook := strings.EqualFold(strings.TrimSpace(cfg.Telegram.RunMode), RunModeWebhook)
	if isWebhook {
		logger.TG.LogAttrs(ctx, slog.LevelInfo, "webhook mode",
			slog.String("event", "mode"),
			slog.String("mode", "webhook"),
			slog.Int("port", cfg.Webhook.Port),
			slog.String("path", cfg.Webhook.Path),
			slog.Duration("duration", logger.RoundMS(buildTook)),
		)
	} else {
		logger.TG.Info("polling mode",
			slog.String("event", "mode"),
			slog.String("mode", "polling"),
			slog.Int("timeout_seconds", int(longPoll/time.Second)),
			slog.Duration("duration", logger.RoundMS(buildTook)),
		)

		if !opts.DisableWebhookCleanup && strings.EqualFold(cfg.Telegram.RunMode, coreconfig.RunModeLongpoll) {
			if err := bot.RemoveWebhook(false); err != nil {
				logger.TG.Warn("failed to delete webhook",
					slog.String("event", "delete_webhook"),
					slog.String("mode", "polling"),
					slog.String("err", err.Error()),
				)
			} else {
				logger.TG.Info("webhook deleted",
					slog.String("event", "delete_webhook"),
					slog.String("mode", "polling"),
				)
			}
		}
	}

	for _, mw := range opts.Middlewares {
		if mw.Use == nil {
			continue
		}
		bot.Use(mw.Use)
	}

	routes := opts.Routes
	if opts.BuildRoutes != nil {
		extra, err := opts.BuildRoutes(bot, rt)
		if err != nil {
			cleanup()
			return fmt.Errorf("telegram: build routes: %w", err)
		}
		routes = append(routes, extra...)
	}
	for _, route := range routes {
		if route.Endpoint == nil || route.Handler == nil {
			continue
		}
		bot.Handle(route.Endpoint, route.Handler)
	}

	InitBotCommands(bot, reg)

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			cleanup()
			return err
		}
	}

	// Register the webhook before any update can arrive; the server hands
	// updates straight to the bot once handlers are in place.
	if isWebhook {
		if err := bot.SetWebhook(BuildWebhook(WebhookOptions{
			URL:         cfg.Webhook.URL,
			Path:        cfg.Webhook.Path,
			SecretToken: cfg.Webhook.SecretToken,
		})); err != nil {
			cleanup()
			return fmt.Errorf("telegram: set webhook: %w", err)
		}
	}

	runDone := make(chan struct{})
	go func() {
		bot.Start()
		close(runDone)
	}()

	serveCtx, stopServe := context.WithCancel(ctx)
	defer stopServe()
	serveDone := make(chan error, 1)
	if isWebhook {
		srv := WebhookServer(WebhookServerOptions{
			Listen:      cfg.Webhook.Listen,
			Port:        cfg.Webhook.Port,
			Path:        cfg.Webhook.Path,
			SecretToken: cfg.Webhook.SecretToken,
		}, UpdateHandler(bot))
		go func() { serveDone <- serveWebhook(serveCtx, srv) }()
	}

	var runErr error

	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case <-runDone:
	case err := <-serveDone:
		runErr = err
	}
	stopServe()
	bot.Stop()
	<-runDone

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(context.WithoutCancel(ctx), rt)
	}

	cleanup()

	if stopErr != nil {
		return stopErr
	}
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return nil
		}
		return runErr
	}

	return nil
}
