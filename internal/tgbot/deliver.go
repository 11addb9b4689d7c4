package tgbot

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/lo"
	tele "gopkg.in/telebot.v4"

	"github.com/ashbolt/coursebot/core/logger"
	"github.com/ashbolt/coursebot/core/telegram/sender"
	"github.com/ashbolt/coursebot/internal/course"
)

// Deliverer sends participant actions in order. All actions of one event form
// a single dispatcher job keyed by recipient, so a retry never reorders or
// repeats earlier messages and consecutive events reach the chat in turn.
type Deliverer struct {
	bot   sender.Messenger
	queue *sender.Dispatcher
}

// NewDeliverer builds a deliverer. A nil queue sends synchronously.
func NewDeliverer(bot sender.Messenger, queue *sender.Dispatcher) *Deliverer {
	return &Deliverer{bot: bot, queue: queue}
}

// Deliver sends actions to the participant. When the queue is full or closed
// the actions are sent inline and the first failure is returned.
func (d *Deliverer) Deliver(ctx context.Context, to tele.Recipient, actions []course.Action) error {
	if len(actions) == 0 {
		return nil
	}
	steps := lo.Map(actions, func(a course.Action, _ int) func() error {
		return func() error {
			what, opts := Render(a)
			_, err := d.bot.Send(to, what, opts...)
			return err
		}
	})
	if d.queue == nil {
		return runInline(steps)
	}

	err := d.queue.EnqueueSequence(ctx, to.Recipient(), "participant.deliver", endpointOf(actions[0]), steps)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", "participant.deliver"),
			slog.Int("steps", len(steps)),
			slog.String("err", err.Error()),
		)
		return runInline(steps)
	}
	return err
}

func runInline(steps []func() error) error {
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
