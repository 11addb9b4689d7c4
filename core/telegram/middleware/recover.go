package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/ashbolt/coursebot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// RecoverMiddleware catches panics in handlers and reports them as errors.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				var userID int64
				if u := c.Sender(); u != nil {
					userID = u.ID
				}
				logger.TG.Error("panic recovered",
					slog.String("event", "tg.panic"),
					slog.Int64("user_id", userID),
					slog.Any("err", r),
					slog.String("stack", string(debug.Stack())),
				)
				err = fmt.Errorf("telegram: handler panic: %v", r)
			}
		}()
		return next(c)
	}
}
