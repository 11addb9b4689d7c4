package router

import (
	"log/slog"
	"time"

	tg "github.com/ashbolt/coursebot/core/telegram"
	"github.com/ashbolt/coursebot/core/telegram/callbacks"
	"github.com/ashbolt/coursebot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	// NotFound runs when neither a handler nor the registry fallback exists.
	NotFound tele.HandlerFunc
}

// CallbackRoute returns the single OnCallback route. The press is answered
// first so the client stops its spinner, then dispatched by unique key.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		start := time.Now()
		key, payload := callbacks.ParseCallbackData(cb)
		_ = c.Respond()

		h, extras := resolveCallback(reg, key, opts.NotFound)
		extras = append(extras, slog.String("cb_key", key), slog.Int("payload_len", len(payload)))
		return handleWithSummary(c, "callback."+normalizeHandlerName(key), start, func() error {
			if h == nil {
				return nil
			}
			return h(c)
		}, extras...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}

func resolveCallback(reg *tg.Registry, key string, notFound tele.HandlerFunc) (tele.HandlerFunc, []slog.Attr) {
	if h, ok := reg.GetCallback(key); ok && h != nil {
		return h, nil
	}
	miss := []slog.Attr{slog.String("reason", "not_found")}
	if fb := reg.CallbackNotFound(); fb != nil {
		return fb, miss
	}
	return notFound, miss
}
