package tgbot

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/samber/lo"
	tele "gopkg.in/telebot.v4"

	"github.com/ashbolt/coursebot/core/logger"
	tg "github.com/ashbolt/coursebot/core/telegram"
	tghelpers "github.com/ashbolt/coursebot/core/telegram/helpers"
	"github.com/ashbolt/coursebot/core/telegram/middleware"
	"github.com/ashbolt/coursebot/core/telegram/router"
	"github.com/ashbolt/coursebot/core/telegram/sender"
	"github.com/ashbolt/coursebot/internal/course"
	"github.com/ashbolt/coursebot/internal/operator"
)

// Client is the part of *tele.Bot the handlers use.
type Client interface {
	sender.Messenger
	EditReplyMarkup(msg tele.Editable, markup *tele.ReplyMarkup) (*tele.Message, error)
}

var _ Client = (*tele.Bot)(nil)

// participantLocks shards the per-participant turn lock.
const participantLocks = 64

// Bot binds the conversation engine and the operator gateway to telebot updates.
type Bot struct {
	client   Client
	engine   *course.Engine
	deliver  *Deliverer
	gateway  *operator.Gateway
	operator int64

	// turns serialises transition and enqueue for one participant so replies
	// leave in the order the store accepted the events.
	turns [participantLocks]sync.Mutex
}

// New wires the handlers. queue carries participant deliveries.
func New(client Client, engine *course.Engine, gateway *operator.Gateway, queue *sender.Dispatcher, operatorID int64) *Bot {
	return &Bot{
		client:   client,
		engine:   engine,
		deliver:  NewDeliverer(client, queue),
		gateway:  gateway,
		operator: operatorID,
	}
}

// Register adds the bot's commands and callbacks to reg.
func (b *Bot) Register(reg *tg.Registry) error {
	errs := []error{
		reg.RegisterCommand("/start", tg.Command{
			Handler:     b.OnStart,
			Description: "Browse courses",
		}),
		reg.RegisterCommand(operator.SendLinkCommand, tg.Command{
			Handler:     b.gateway.Handler(tghelpers.BuildContext),
			Description: "Deliver course access",
			AdminOnly:   true,
			Hidden:      true,
		}),
	}
	for _, key := range []string{
		course.CallbackBuy,
		course.CallbackReceipt,
		course.CallbackShareSubmit,
		course.CallbackShareDecline,
		course.CallbackConsentPhone,
	} {
		errs = append(errs, reg.RegisterCallback(key, b.OnCallback))
	}
	// Buttons from older menus still reach the flow and get the usual advisory.
	reg.SetCallbackNotFound(b.OnCallback)
	return errors.Join(errs...)
}

// Routes builds every route of the bot from reg.
func (b *Bot) Routes(reg *tg.Registry) []tg.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: b.operator,
		OnAdminReject: func(c tele.Context) error {
			return tghelpers.SendText(c, operator.Reply(operator.ErrUnauthorized))
		},
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.MessageRoutes(reg, router.MessageOptions{
		Photo:    b.OnMessage,
		Contact:  b.OnMessage,
		Text:     b.OnUnrecognized,
		Document: b.OnUnrecognized,
	})...)
	return routes
}

// OnStart shows the offer menu. The participant's stage is left as is.
func (b *Bot) OnStart(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	welcome := b.engine.Welcome(ParticipantOf(c.Sender()))
	if err := b.deliver.Deliver(ctx, c.Recipient(), []course.Action{welcome}); err != nil {
		return err
	}
	middleware.RecordDelivery(c, 1, true)
	return nil
}

// OnCallback handles every inline button press.
func (b *Bot) OnCallback(c tele.Context) error {
	ev := ClassifyCallback(c.Callback())
	res, err := b.handle(c, ev)
	if err != nil {
		return err
	}
	if res.Accepted && ev.Kind == course.EventPhoneConsentGiven {
		b.dropInlineKeyboard(c)
	}
	return nil
}

// OnMessage handles photos and contact cards.
func (b *Bot) OnMessage(c tele.Context) error {
	_, err := b.handle(c, ClassifyMessage(c.Message()))
	return err
}

// OnUnrecognized answers input the flow has no use for.
func (b *Bot) OnUnrecognized(c tele.Context) error {
	_, err := b.handle(c, course.Unrecognized())
	return err
}

func (b *Bot) handle(c tele.Context, ev course.Event) (course.Result, error) {
	p := ParticipantOf(c.Sender())
	if p.ID == 0 {
		return course.Result{}, nil
	}
	ctx := tghelpers.BuildContext(c)
	turn := &b.turns[uint64(p.ID)%participantLocks]
	turn.Lock()
	defer turn.Unlock()

	res, err := b.engine.Handle(ctx, p, ev)
	if err != nil {
		return res, err
	}
	if err := b.deliver.Deliver(ctx, c.Recipient(), res.Actions); err != nil {
		return res, err
	}
	middleware.RecordDelivery(c, len(res.Actions), lo.SomeBy(res.Actions, hasKeyboard))
	return res, nil
}

// dropInlineKeyboard removes the consent button so it cannot be pressed twice.
func (b *Bot) dropInlineKeyboard(c tele.Context) {
	cb := c.Callback()
	if cb == nil || cb.Message == nil {
		return
	}
	if _, err := b.client.EditReplyMarkup(cb.Message, nil); err != nil {
		logger.Warn(tghelpers.BuildContext(c), "tg", "keyboard.remove",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
}
