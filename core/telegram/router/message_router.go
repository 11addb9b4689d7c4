package router

import (
	"time"

	tg "github.com/ashbolt/coursebot/core/telegram"
	"github.com/ashbolt/coursebot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// MessageOptions holds the handlers for non-command messages. Nil handlers
// are logged as skipped.
type MessageOptions struct {
	Photo    tele.HandlerFunc
	Contact  tele.HandlerFunc
	Text     tele.HandlerFunc
	Document tele.HandlerFunc
}

// MessageRoutes builds handlers for photo, contact, text and document updates.
// Text that names a public command without the slash is dispatched to that
// command; admin-only commands are reachable through their command route only.
func MessageRoutes(reg *tg.Registry, opts MessageOptions) []tg.Route {
	wrap := func(name string, h tele.HandlerFunc) tele.HandlerFunc {
		handler := func(c tele.Context) error {
			start := time.Now()
			if h == nil {
				logSkipped(c, name, start)
				return nil
			}
			return handleWithSummary(c, name, start, func() error {
				return h(c)
			})
		}
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler))
	}

	text := func(c tele.Context) error {
		start := time.Now()
		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil && !cmd.AdminOnly {
				return handleWithSummary(c, normalizeHandlerName(key), start, func() error {
					return cmd.Handler(c)
				})
			}
		}
		if opts.Text != nil {
			return handleWithSummary(c, "unknown_text", start, func() error {
				return opts.Text(c)
			})
		}
		logSkipped(c, "unknown_text", start)
		return nil
	}

	return []tg.Route{
		{Endpoint: tele.OnPhoto, Handler: wrap("photo", opts.Photo)},
		{Endpoint: tele.OnContact, Handler: wrap("contact", opts.Contact)},
		{Endpoint: tele.OnDocument, Handler: wrap("unexpected_document", opts.Document)},
		{Endpoint: tele.OnText, Handler: middleware.RecoverMiddleware(middleware.LoggerMiddleware(text))},
	}
}
