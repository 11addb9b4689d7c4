package state

import (
	"context"
	"errors"
	"time"
)

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// Selection is the offer a participant picked, captured at selection time.
type Selection struct {
	OfferID string `json:"offer_id"`
	Price   int    `json:"price"`
}

// Record stores conversation state for a participant.
type Record struct {
	Stage State `json:"stage"`
	// ScreenshotCount is only meaningful while collecting screenshots.
	ScreenshotCount int        `json:"screenshot_count"`
	Selection       *Selection `json:"selection,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// NewRecord returns the record every unknown participant starts from.
func NewRecord() Record {
	return Record{Stage: StateIdle}
}

func (r Record) clone() Record {
	if r.Selection != nil {
		sel := *r.Selection
		r.Selection = &sel
	}
	return r
}

// ErrNoChange may be returned by an Update callback to skip the write.
var ErrNoChange = errors.New("state: no change")

// UpdateFunc mutates rec in place. Returning an error discards the mutation.
type UpdateFunc func(rec *Record) error

// Backend persists records keyed by participant identity.
//
// Update must run fn and persist its result atomically: concurrent calls for
// the same id serialize, calls for different ids must not wait on each other.
// fn may be invoked more than once by optimistic backends and therefore must
// not have side effects beyond rec.
type Backend interface {
	Name() string
	Load(ctx context.Context, id int64) (Record, bool, error)
	Update(ctx context.Context, id int64, fn UpdateFunc) error
	Delete(ctx context.Context, id int64) error
	// Sweep removes records last updated before cutoff and reports how many went away.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}
