package course

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/ashbolt/coursebot/core/logger"
	"github.com/ashbolt/coursebot/core/telegram/state"
)

// Participant identifies the person an event came from.
type Participant struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
}

// FullName joins first and last name.
func (p Participant) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Notifier receives operator-directed actions. Notify must not block on delivery.
type Notifier interface {
	Notify(ctx context.Context, p Participant, a Action)
}

// Result describes a handled event.
type Result struct {
	From     state.State
	To       state.State
	Accepted bool
	// Actions are the participant-facing actions, in delivery order.
	Actions []Action
}

// Engine applies Flow transitions through the state store.
type Engine struct {
	flow     Flow
	store    *state.Store
	notifier Notifier
}

// NewEngine wires a flow to its store. notifier may be nil.
func NewEngine(flow Flow, store *state.Store, notifier Notifier) *Engine {
	return &Engine{flow: flow, store: store, notifier: notifier}
}

// Flow returns the engine's state machine.
func (e *Engine) Flow() Flow { return e.flow }

// Handle runs ev against the participant's current record. The read, the
// transition and the write happen inside one store update, so concurrent
// events of the same participant are applied one after another.
func (e *Engine) Handle(ctx context.Context, p Participant, ev Event) (Result, error) {
	start := time.Now()
	var (
		from state.State
		out  Outcome
	)
	err := e.store.Update(ctx, p.ID, func(rec *state.Record) error {
		from = rec.Stage
		out = e.flow.Transition(*rec, ev)
		if !out.Dirty(*rec) {
			return state.ErrNoChange
		}
		next := out.Next
		next.UpdatedAt = rec.UpdatedAt
		*rec = next
		return nil
	})
	if err != nil {
		logger.Error(ctx, "course.flow", "flow.transition",
			slog.String("status", "fail"),
			slog.Int64("participant_id", p.ID),
			slog.String("input", ev.Kind.String()),
			slog.String("err", err.Error()),
		)
		return Result{}, err
	}

	toOperator, toParticipant := lo.FilterReject(out.Actions, func(a Action, _ int) bool {
		return a.ForOperator()
	})
	if e.notifier != nil {
		for _, a := range toOperator {
			e.notifier.Notify(ctx, p, a)
		}
	}

	status := "ok"
	if !out.Accepted {
		status = "skip"
	}
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.Int64("participant_id", p.ID),
		slog.String("input", ev.Kind.String()),
		slog.String("stage_from", string(from)),
		slog.String("stage_to", string(out.Next.Stage)),
		slog.Int("actions", len(out.Actions)),
		slog.Duration("duration", logger.Took(start)),
	}
	if ev.OfferID != "" {
		attrs = append(attrs, slog.String("offer_id", ev.OfferID))
	}
	if out.Next.Stage == StageCollectingScreenshots || from == StageCollectingScreenshots {
		attrs = append(attrs, slog.Int("screenshot_count", out.Next.ScreenshotCount))
	}
	if out.Accepted {
		logger.Info(ctx, "course.flow", "flow.transition", attrs...)
	} else {
		logger.Debug(ctx, "course.flow", "flow.transition", attrs...)
	}

	return Result{
		From:     from,
		To:       out.Next.Stage,
		Accepted: out.Accepted,
		Actions:  toParticipant,
	}, nil
}

// Welcome renders the /start menu for p.
func (e *Engine) Welcome(p Participant) Action {
	return e.flow.Welcome(p.FirstName)
}
