package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stageCollecting State = "collecting_screenshots"

type backendFactory struct {
	name string
	open func(t *testing.T) Backend
}

func backends(t *testing.T) []backendFactory {
	t.Helper()
	list := []backendFactory{
		{name: "memory", open: func(t *testing.T) Backend { return NewMemoryBackend() }},
		{name: "badger", open: func(t *testing.T) Backend {
			b, err := OpenBadger(t.TempDir())
			require.NoError(t, err)
			return b
		}},
	}
	if dsn := os.Getenv("COURSEBOT_TEST_DSN"); dsn != "" {
		list = append(list, backendFactory{name: "postgres", open: func(t *testing.T) Backend {
			db, err := sqlx.Connect("postgres", dsn)
			require.NoError(t, err)
			schema, err := os.ReadFile(filepath.Join("..", "..", "..", "migrations", "000001_create_participants.up.sql"))
			require.NoError(t, err)
			_, err = db.Exec(string(schema))
			require.NoError(t, err)
			_, err = db.Exec(`TRUNCATE participants`)
			require.NoError(t, err)
			return NewPostgresBackend(db)
		}})
	}
	return list
}

func forEachBackend(t *testing.T, fn func(t *testing.T, store *Store)) {
	for _, bf := range backends(t) {
		t.Run(bf.name, func(t *testing.T) {
			store := NewStore(bf.open(t))
			t.Cleanup(func() { _ = store.Close() })
			fn(t, store)
		})
	}
}

func TestStore_UnknownParticipantIsIdle(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *Store) {
		ctx := context.Background()
		require.Equal(t, StateIdle, store.GetStage(ctx, 4242))

		rec := store.Get(ctx, 4242)
		require.Equal(t, 0, rec.ScreenshotCount)
		require.Nil(t, rec.Selection)
	})
}

func TestStore_SetStageAndClear(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *Store) {
		ctx := context.Background()
		require.NoError(t, store.SetStage(ctx, 7, stageCollecting))
		require.Equal(t, stageCollecting, store.GetStage(ctx, 7))

		require.NoError(t, store.Clear(ctx, 7))
		require.Equal(t, StateIdle, store.GetStage(ctx, 7))
		require.Equal(t, 0, store.Get(ctx, 7).ScreenshotCount)
	})
}

func TestStore_CounterIncrementAndReset(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *Store) {
		ctx := context.Background()
		for want := 1; want <= 3; want++ {
			got, err := store.IncrementScreenshotCount(ctx, 11)
			require.NoError(t, err)
			require.Equal(t, want, got)
		}
		require.NoError(t, store.ResetScreenshotCount(ctx, 11))
		require.Equal(t, 0, store.Get(ctx, 11).ScreenshotCount)
	})
}

func TestStore_ConcurrentIncrementsDoNotLoseUpdates(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *Store) {
		ctx := context.Background()
		const workers = 40

		var wg sync.WaitGroup
		wg.Add(workers * 2)
		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()
				_, err := store.IncrementScreenshotCount(ctx, 1)
				assert.NoError(t, err)
			}()
			go func() {
				defer wg.Done()
				_, err := store.IncrementScreenshotCount(ctx, 2)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		require.Equal(t, workers, store.Get(ctx, 1).ScreenshotCount)
		require.Equal(t, workers, store.Get(ctx, 2).ScreenshotCount)
	})
}

func TestStore_UpdateSelectionAndNoChange(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *Store) {
		ctx := context.Background()
		require.NoError(t, store.Update(ctx, 5, func(rec *Record) error {
			rec.Stage = "awaiting_payment"
			rec.Selection = &Selection{OfferID: "bundle", Price: 69}
			return nil
		}))

		require.NoError(t, store.Update(ctx, 5, func(rec *Record) error {
			rec.Stage = "should_not_persist"
			return ErrNoChange
		}))

		boom := errors.New("boom")
		err := store.Update(ctx, 5, func(rec *Record) error {
			rec.Selection = nil
			return boom
		})
		require.ErrorIs(t, err, boom)

		rec := store.Get(ctx, 5)
		require.Equal(t, State("awaiting_payment"), rec.Stage)
		require.NotNil(t, rec.Selection)
		require.Equal(t, Selection{OfferID: "bundle", Price: 69}, *rec.Selection)
	})
}

func TestStore_LoadReturnsCopy(t *testing.T) {
	store := NewStore(NewMemoryBackend())
	ctx := context.Background()
	require.NoError(t, store.Update(ctx, 3, func(rec *Record) error {
		rec.Selection = &Selection{OfferID: "react", Price: 29}
		return nil
	}))

	rec := store.Get(ctx, 3)
	rec.Selection.Price = 1
	require.Equal(t, 29, store.Get(ctx, 3).Selection.Price)
}

func TestStore_SweepEvictsIdleRecords(t *testing.T) {
	for _, bf := range backends(t) {
		t.Run(bf.name, func(t *testing.T) {
			now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			store := NewStore(bf.open(t), WithClock(func() time.Time { return now }))
			t.Cleanup(func() { _ = store.Close() })
			ctx := context.Background()

			require.NoError(t, store.SetStage(ctx, 100, stageCollecting))
			now = now.Add(2 * time.Hour)
			require.NoError(t, store.SetStage(ctx, 200, stageCollecting))
			now = now.Add(30 * time.Minute)

			n, err := store.Sweep(ctx, time.Hour)
			require.NoError(t, err)
			require.Equal(t, 1, n)
			require.Equal(t, StateIdle, store.GetStage(ctx, 100))
			require.Equal(t, stageCollecting, store.GetStage(ctx, 200))

			n, err = store.Sweep(ctx, 0)
			require.NoError(t, err)
			require.Zero(t, n)
		})
	}
}

func TestStore_RunJanitorDisabledReturns(t *testing.T) {
	store := NewStore(NewMemoryBackend())
	done := make(chan struct{})
	go func() {
		store.RunJanitor(context.Background(), 0, time.Millisecond)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor with zero ttl should return immediately")
	}
}
