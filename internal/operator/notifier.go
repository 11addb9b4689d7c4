package operator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/ashbolt/coursebot/core/logger"
	"github.com/ashbolt/coursebot/core/telegram/sender"
	"github.com/ashbolt/coursebot/internal/course"
)

// Notifier forwards observational events to the operator chat. Deliveries are
// queued on a dedicated dispatcher so a slow or failing operator chat never
// holds up the participant.
type Notifier struct {
	bot      sender.Messenger
	operator tele.ChatID
	queue    *sender.Dispatcher
}

// NewNotifier builds a notifier. queue should be configured without retries.
func NewNotifier(bot sender.Messenger, operatorID int64, queue *sender.Dispatcher) *Notifier {
	return &Notifier{bot: bot, operator: tele.ChatID(operatorID), queue: queue}
}

// Notify enqueues a for the operator and returns immediately.
func (n *Notifier) Notify(ctx context.Context, p course.Participant, a course.Action) {
	text := FormatNotification(p, a)
	endpoint := "sendMessage"
	run := func() error {
		_, err := n.bot.Send(n.operator, text)
		return err
	}
	if a.Kind == course.ActionOperatorPhoto && a.Photo != "" {
		endpoint = "sendPhoto"
		run = func() error {
			_, err := n.bot.Send(n.operator, &tele.Photo{File: tele.File{FileID: a.Photo}, Caption: text})
			return err
		}
	}

	if err := n.queue.Enqueue(ctx, "operator.notify", endpoint, run); err != nil {
		logger.Warn(ctx, "operator", "notify.dropped",
			slog.Int64("participant_id", p.ID),
			slog.String("endpoint", endpoint),
			slog.String("err", err.Error()),
		)
	}
}

// FormatNotification renders the operator-facing description of what p did.
func FormatNotification(p course.Participant, a course.Action) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👤 User Action: %s\n", a.Text)
	fmt.Fprintf(&b, "🆔 ID: %d\n", p.ID)
	fmt.Fprintf(&b, "👤 Name: %s\n", p.FullName())
	username := p.Username
	if username == "" {
		username = "N/A"
	}
	fmt.Fprintf(&b, "📧 Username: @%s\n", username)
	if a.Phone != "" {
		fmt.Fprintf(&b, "📱 Phone: %s\n", a.Phone)
	}
	return b.String()
}
