package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ashbolt/coursebot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const rateLimitPruneAt = 4096

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Interval  time.Duration
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

// RateLimitMiddleware returns a middleware that enforces a minimum interval
// between messages from the same user.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	var (
		userLastSeen   = make(map[int64]time.Time)
		userLastSeenMu sync.Mutex
	)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}

			if excluded(opts.Exclude, updateKinds(c.Update())) {
				return next(c)
			}

			now := time.Now()

			userLastSeenMu.Lock()
			if last, ok := userLastSeen[user.ID]; ok && now.Sub(last) < opts.Interval {
				userLastSeenMu.Unlock()
				attrs := []any{
					slog.String("event", "tg.rate_limit"),
					slog.Int64("user_id", user.ID),
				}
				if chat := c.Chat(); chat != nil {
					attrs = append(attrs, slog.Int64("chat_id", chat.ID))
				}
				logger.TG.Warn("rate limit", attrs...)
				if opts.OnLimited != nil {
					_ = opts.OnLimited(c)
				}
				return nil
			}

			userLastSeen[user.ID] = now
			if len(userLastSeen) > rateLimitPruneAt {
				for id, seen := range userLastSeen {
					if now.Sub(seen) >= opts.Interval {
						delete(userLastSeen, id)
					}
				}
			}
			userLastSeenMu.Unlock()
			return next(c)
		}
	}
}

// updateKinds lists the exclusion kinds an update belongs to, most specific
// first. Photos are also messages: albums arrive as bursts of photo updates.
func updateKinds(upd tele.Update) []string {
	switch {
	case upd.Callback != nil:
		return []string{"callback"}
	case upd.Message != nil && upd.Message.Photo != nil:
		return []string{"photo", "message"}
	case upd.Message != nil:
		return []string{"message"}
	case upd.Query != nil:
		return []string{"inline_query"}
	}
	return []string{"other"}
}

func excluded(exclude map[string]struct{}, kinds []string) bool {
	for _, k := range kinds {
		if _, ok := exclude[k]; ok {
			return true
		}
	}
	return false
}
