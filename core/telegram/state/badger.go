package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	badgerKeyPrefix    = "participant:"
	badgerMaxConflicts = 32
)

type badgerBackend struct {
	db     *badger.DB
	ownsDB bool
	// locks serialize writers of one id inside this process; badger's
	// conflict detection still covers the sweeper and other processes.
	locks [memoryShards]sync.Mutex
}

// OpenBadger opens (or creates) a badger database in dir and wraps it as a Backend.
func OpenBadger(dir string) (Backend, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("open badger %s: %w", dir, err)
	}
	return &badgerBackend{db: db, ownsDB: true}, nil
}

// NewBadgerBackend wraps an already opened database; Close leaves it open.
func NewBadgerBackend(db *badger.DB) Backend {
	return &badgerBackend{db: db}
}

func badgerKey(id int64) []byte {
	return []byte(badgerKeyPrefix + strconv.FormatInt(id, 10))
}

func (b *badgerBackend) Name() string { return "badger" }

func (b *badgerBackend) Load(_ context.Context, id int64) (Record, bool, error) {
	var (
		rec   Record
		found bool
	)
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return Record{}, false, err
	}
	return rec, found, nil
}

// Update runs fn in a read-write transaction. A concurrent write to the same
// key aborts the commit with ErrConflict and fn is rerun against the fresh value.
func (b *badgerBackend) Update(ctx context.Context, id int64, fn UpdateFunc) error {
	mu := &b.locks[uint64(id)%memoryShards]
	mu.Lock()
	defer mu.Unlock()

	key := badgerKey(id)
	for attempt := 0; attempt < badgerMaxConflicts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := b.db.Update(func(txn *badger.Txn) error {
			rec := NewRecord()
			item, err := txn.Get(key)
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
			case err != nil:
				return err
			default:
				if err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &rec)
				}); err != nil {
					return err
				}
			}
			if err := fn(&rec); err != nil {
				return err
			}
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("marshal record: %w", err)
			}
			return txn.Set(key, data)
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
	return fmt.Errorf("participant %d: %w", id, badger.ErrConflict)
}

func (b *badgerBackend) Delete(_ context.Context, id int64) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(id))
	})
}

func (b *badgerBackend) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	var stale [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var rec Record
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			if rec.UpdatedAt.Before(cutoff) {
				stale = append(stale, item.KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, key := range stale {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		// Recheck inside the write txn so a record touched since the scan survives.
		deleted := false
		err := b.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(key)
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			var rec Record
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			if !rec.UpdatedAt.Before(cutoff) {
				return nil
			}
			deleted = true
			return txn.Delete(key)
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return removed, err
		}
		if deleted {
			removed++
		}
	}
	return removed, nil
}

func (b *badgerBackend) Close() error {
	if !b.ownsDB {
		return nil
	}
	return b.db.Close()
}
