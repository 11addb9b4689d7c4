package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashbolt/coursebot/core/logger"
)

// Store is the participant state store consumed by the conversation engine.
type Store struct {
	backend Backend
	now     func() time.Time
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore wraps backend with the store contract.
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{backend: backend, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend returns the name of the underlying backend.
func (s *Store) Backend() string {
	return s.backend.Name()
}

// Get returns the participant record, or a fresh idle record if none exists.
// Backend failures are logged and reported as the idle default.
func (s *Store) Get(ctx context.Context, id int64) Record {
	rec, ok, err := s.backend.Load(ctx, id)
	if err != nil {
		logger.Error(ctx, "state", "state.load",
			slog.String("status", "fail"),
			slog.String("backend", s.backend.Name()),
			slog.Int64("participant_id", id),
			slog.String("err", err.Error()),
		)
		return NewRecord()
	}
	if !ok {
		return NewRecord()
	}
	return rec
}

// GetStage returns the current stage; unknown participants are idle.
func (s *Store) GetStage(ctx context.Context, id int64) State {
	return s.Get(ctx, id).Stage
}

// Update applies fn atomically to the participant record and stamps UpdatedAt.
// Returning ErrNoChange from fn leaves the record untouched and is not an error.
func (s *Store) Update(ctx context.Context, id int64, fn UpdateFunc) error {
	err := s.backend.Update(ctx, id, func(rec *Record) error {
		if err := fn(rec); err != nil {
			return err
		}
		rec.UpdatedAt = s.now()
		return nil
	})
	if err != nil && !errors.Is(err, ErrNoChange) {
		return fmt.Errorf("state: update %d: %w", id, err)
	}
	return nil
}

// SetStage moves the participant to st.
func (s *Store) SetStage(ctx context.Context, id int64, st State) error {
	return s.Update(ctx, id, func(rec *Record) error {
		rec.Stage = st
		return nil
	})
}

// IncrementScreenshotCount bumps the counter and returns its new value.
func (s *Store) IncrementScreenshotCount(ctx context.Context, id int64) (int, error) {
	var count int
	err := s.Update(ctx, id, func(rec *Record) error {
		rec.ScreenshotCount++
		count = rec.ScreenshotCount
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ResetScreenshotCount sets the counter back to zero.
func (s *Store) ResetScreenshotCount(ctx context.Context, id int64) error {
	return s.Update(ctx, id, func(rec *Record) error {
		rec.ScreenshotCount = 0
		return nil
	})
}

// Clear removes all state for the participant.
func (s *Store) Clear(ctx context.Context, id int64) error {
	if err := s.backend.Delete(ctx, id); err != nil {
		return fmt.Errorf("state: clear %d: %w", id, err)
	}
	return nil
}

// Sweep evicts records idle for longer than ttl.
func (s *Store) Sweep(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}
	n, err := s.backend.Sweep(ctx, s.now().Add(-ttl))
	if err != nil {
		return n, fmt.Errorf("state: sweep: %w", err)
	}
	return n, nil
}

// RunJanitor sweeps idle records every interval until ctx is done.
// A non-positive ttl disables eviction and returns immediately.
func (s *Store) RunJanitor(ctx context.Context, ttl, interval time.Duration) {
	if ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = ttl / 4
		if interval < time.Minute {
			interval = time.Minute
		}
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		start := time.Now()
		n, err := s.Sweep(ctx, ttl)
		if err != nil {
			logger.Store.Warn("sweep failed",
				slog.String("event", "state.sweep"),
				slog.String("backend", s.backend.Name()),
				slog.String("err", err.Error()),
			)
			continue
		}
		logger.Store.Info("sweep done",
			slog.String("event", "state.sweep"),
			slog.String("backend", s.backend.Name()),
			slog.Int("evicted", n),
			slog.Duration("duration", logger.Took(start)),
		)
	}
}

// Close releases backend resources.
func (s *Store) Close() error {
	return s.backend.Close()
}
