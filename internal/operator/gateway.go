package operator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	tele "gopkg.in/telebot.v4"

	"github.com/ashbolt/coursebot/core/logger"
	"github.com/ashbolt/coursebot/core/telegram/sender"
	"github.com/ashbolt/coursebot/core/telegram/state"
)

var (
	// ErrUnauthorized is returned when someone other than the operator calls the gateway.
	ErrUnauthorized = errors.New("operator: unauthorized")
	// ErrMalformedCommand is returned for a wrong number or shape of arguments.
	ErrMalformedCommand = errors.New("operator: malformed command")
	// ErrDeliveryFailed is returned when the credentials could not be sent.
	ErrDeliveryFailed = errors.New("operator: delivery failed")
)

// SendLinkCommand is the operator command that completes a purchase.
const SendLinkCommand = "/send_link"

const (
	replyUnauthorized   = "❌ Unauthorized"
	replyUsage          = "❌ Usage: /send_link <user_id> <link> <password>"
	replySent           = "✅ Sent!"
	replyDeliveryFailed = "❌ Delivery failed"
	replyNotCleared     = "⚠️ Sent, but the participant's state could not be cleared"
)

var validate = validator.New()

// Fulfillment is a parsed /send_link request.
type Fulfillment struct {
	ParticipantID int64  `validate:"required"`
	Link          string `validate:"required,max=1024"`
	Password      string `validate:"required,max=256"`
}

// ParseFulfillment turns the positional command arguments into a Fulfillment.
func ParseFulfillment(args []string) (Fulfillment, error) {
	if len(args) != 3 {
		return Fulfillment{}, fmt.Errorf("%w: want 3 arguments, got %d", ErrMalformedCommand, len(args))
	}
	id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
	if err != nil {
		return Fulfillment{}, fmt.Errorf("%w: user id: %v", ErrMalformedCommand, err)
	}
	f := Fulfillment{
		ParticipantID: id,
		Link:          strings.TrimSpace(args[1]),
		Password:      strings.TrimSpace(args[2]),
	}
	if err := validate.Struct(f); err != nil {
		return Fulfillment{}, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	return f, nil
}

// Message renders the credentials delivered to the participant.
func (f Fulfillment) Message() string {
	return fmt.Sprintf("🎓 Course Link: %s\n🔐 Password: %s", f.Link, f.Password)
}

// Gateway completes a participant's purchase on the operator's command.
type Gateway struct {
	bot        sender.Messenger
	store      *state.Store
	operatorID int64
}

// NewGateway builds the fulfillment gateway for the single operator.
func NewGateway(bot sender.Messenger, store *state.Store, operatorID int64) *Gateway {
	return &Gateway{bot: bot, store: store, operatorID: operatorID}
}

// Fulfill delivers credentials to the target participant and clears their state.
// Nothing is mutated unless the caller is the operator and args are well formed.
// When delivery fails the participant's state is kept so the command can be repeated.
func (g *Gateway) Fulfill(ctx context.Context, callerID int64, args []string) (Fulfillment, error) {
	if callerID != g.operatorID {
		return Fulfillment{}, ErrUnauthorized
	}
	f, err := ParseFulfillment(args)
	if err != nil {
		return Fulfillment{}, err
	}
	if _, err := g.bot.Send(tele.ChatID(f.ParticipantID), f.Message()); err != nil {
		return f, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	if err := g.store.Clear(ctx, f.ParticipantID); err != nil {
		return f, err
	}
	return f, nil
}

// Reply maps a Fulfill result to the text shown to the caller.
func Reply(err error) string {
	switch {
	case err == nil:
		return replySent
	case errors.Is(err, ErrUnauthorized):
		return replyUnauthorized
	case errors.Is(err, ErrMalformedCommand):
		return replyUsage
	case errors.Is(err, ErrDeliveryFailed):
		return replyDeliveryFailed
	default:
		return replyNotCleared
	}
}

// Handler adapts the gateway to a telebot command handler.
func (g *Gateway) Handler(ctxFrom func(tele.Context) context.Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := ctxFrom(c)
		var callerID int64
		if u := c.Sender(); u != nil {
			callerID = u.ID
		}
		f, err := g.Fulfill(ctx, callerID, c.Args())

		attrs := []slog.Attr{
			slog.String("status", logger.Status(err)),
			slog.Int64("caller_id", callerID),
		}
		if f.ParticipantID != 0 {
			attrs = append(attrs, slog.Int64("participant_id", f.ParticipantID))
		}
		if err != nil {
			attrs = append(attrs, slog.String("err", err.Error()))
			logger.Warn(ctx, "operator", "fulfillment", attrs...)
		} else {
			logger.Info(ctx, "operator", "fulfillment", attrs...)
		}
		return c.Send(Reply(err))
	}
}
