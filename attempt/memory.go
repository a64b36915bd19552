package attempt

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const memoryShardCount = 64

type memoryEntry struct {
	mu   sync.Mutex
	rec  Record
	dead bool
}

type memoryShard struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
}

// MemoryStore keeps records in process memory.
//
// Lock order is entry, then shard. Shard locks guard only map membership and
// are never held while an entry lock is being acquired, so a slow holder of one
// identity never blocks another identity.
type MemoryStore struct {
	shards [memoryShardCount]memoryShard
}

// NewMemoryStore creates an empty in-memory [Store].
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i].entries = make(map[string]*memoryEntry)
	}
	return s
}

func (s *MemoryStore) shardFor(identity string) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identity))
	return &s.shards[h.Sum32()%memoryShardCount]
}

// lock returns the live entry for identity with its mutex held. When create is
// false and no entry exists it returns nil.
func (s *MemoryStore) lock(identity string, now time.Time, create bool) *memoryEntry {
	sh := s.shardFor(identity)
	for {
		sh.mu.RLock()
		e := sh.entries[identity]
		sh.mu.RUnlock()

		if e == nil {
			if !create {
				return nil
			}
			sh.mu.Lock()
			e = sh.entries[identity]
			if e == nil {
				e = &memoryEntry{rec: newRecord(identity, now)}
				sh.entries[identity] = e
			}
			sh.mu.Unlock()
		}

		e.mu.Lock()
		if !e.dead {
			return e
		}
		// Removed between lookup and lock; retry against the live map.
		e.mu.Unlock()
	}
}

// unlink removes e from its shard. e.mu must be held.
func (s *MemoryStore) unlink(e *memoryEntry) {
	sh := s.shardFor(e.rec.Identity)
	sh.mu.Lock()
	if sh.entries[e.rec.Identity] == e {
		delete(sh.entries, e.rec.Identity)
	}
	sh.mu.Unlock()
	e.dead = true
}

// GetOrCreate implements [Store].
func (s *MemoryStore) GetOrCreate(ctx context.Context, identity string, now time.Time) (Record, error) {
	if err := ValidateIdentity(identity); err != nil {
		return Record{}, err
	}
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	e := s.lock(identity, now, true)
	rec := e.rec
	e.mu.Unlock()
	return rec, nil
}

// Get implements [Store].
func (s *MemoryStore) Get(ctx context.Context, identity string) (Record, bool, error) {
	if err := ValidateIdentity(identity); err != nil {
		return Record{}, false, err
	}
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}

	e := s.lock(identity, time.Time{}, false)
	if e == nil {
		return Record{}, false, nil
	}
	rec := e.rec
	e.mu.Unlock()
	return rec, true, nil
}

// IncrementAndGet implements [Store].
func (s *MemoryStore) IncrementAndGet(ctx context.Context, identity string, now time.Time, w Window) (Record, error) {
	if err := ValidateIdentity(identity); err != nil {
		return Record{}, err
	}
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	e := s.lock(identity, now, true)
	e.rec.advance(now, w)
	rec := e.rec
	e.mu.Unlock()
	return rec, nil
}

// Touch implements [Store].
func (s *MemoryStore) Touch(ctx context.Context, identity string, now time.Time) error {
	if err := ValidateIdentity(identity); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e := s.lock(identity, now, false)
	if e == nil {
		return nil
	}
	if now.After(e.rec.LastAttempt) {
		e.rec.LastAttempt = now
	}
	e.mu.Unlock()
	return nil
}

// Reset implements [Store].
func (s *MemoryStore) Reset(ctx context.Context, identity string) error {
	if err := ValidateIdentity(identity); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e := s.lock(identity, time.Time{}, false)
	if e == nil {
		return nil
	}
	s.unlink(e)
	e.mu.Unlock()
	return nil
}

// EvictIdle implements [Store]. Each candidate is re-checked under its own
// lock, so a record updated after the scan is never removed.
func (s *MemoryStore) EvictIdle(ctx context.Context, now time.Time, idle time.Duration) (int, error) {
	evicted := 0
	for i := range s.shards {
		if err := ctx.Err(); err != nil {
			return evicted, err
		}

		sh := &s.shards[i]
		sh.mu.RLock()
		candidates := make([]*memoryEntry, 0, len(sh.entries))
		for _, e := range sh.entries {
			candidates = append(candidates, e)
		}
		sh.mu.RUnlock()

		for _, e := range candidates {
			if !e.mu.TryLock() {
				// Busy entries are active by definition.
				continue
			}
			if !e.dead && now.Sub(e.rec.LastAttempt) > idle {
				s.unlink(e)
				evicted++
			}
			e.mu.Unlock()
		}
	}
	return evicted, nil
}

// Clear implements [Store].
func (s *MemoryStore) Clear(ctx context.Context) error {
	for i := range s.shards {
		if err := ctx.Err(); err != nil {
			return err
		}

		sh := &s.shards[i]
		sh.mu.Lock()
		old := sh.entries
		sh.entries = make(map[string]*memoryEntry)
		sh.mu.Unlock()

		for _, e := range old {
			e.mu.Lock()
			e.dead = true
			e.mu.Unlock()
		}
	}
	return nil
}

// Len implements [Store].
func (s *MemoryStore) Len(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n, nil
}
