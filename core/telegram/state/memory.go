package state

import (
	"context"
	"sync"
	"time"
)

const memoryShards = 32

type memoryShard struct {
	mu      sync.Mutex
	records map[int64]Record
}

type memoryBackend struct {
	shards [memoryShards]*memoryShard
}

// NewMemoryBackend constructs an in-memory Backend sharded by participant id.
// Contention is limited to ids hashing to the same shard.
func NewMemoryBackend() Backend {
	m := &memoryBackend{}
	for i := range m.shards {
		m.shards[i] = &memoryShard{records: make(map[int64]Record)}
	}
	return m
}

func (m *memoryBackend) shard(id int64) *memoryShard {
	return m.shards[uint64(id)%memoryShards]
}

func (m *memoryBackend) Name() string { return "memory" }

// Load returns a copy of the stored record.
func (m *memoryBackend) Load(_ context.Context, id int64) (Record, bool, error) {
	sh := m.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	rec, ok := sh.records[id]
	if !ok {
		return Record{}, false, nil
	}
	return rec.clone(), true, nil
}

// Update runs fn under the shard lock.
func (m *memoryBackend) Update(_ context.Context, id int64, fn UpdateFunc) error {
	sh := m.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[id]
	if ok {
		rec = rec.clone()
	} else {
		rec = NewRecord()
	}
	if err := fn(&rec); err != nil {
		return err
	}
	sh.records[id] = rec
	return nil
}

// Delete removes the entire record for a user.
func (m *memoryBackend) Delete(_ context.Context, id int64) error {
	sh := m.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.records, id)
	return nil
}

func (m *memoryBackend) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0
	for _, sh := range m.shards {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		sh.mu.Lock()
		for id, rec := range sh.records {
			if rec.UpdatedAt.Before(cutoff) {
				delete(sh.records, id)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed, nil
}

func (m *memoryBackend) Close() error { return nil }
