package attempt

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"
)

// Millisecond-aligned so Redis round-trips compare equal.
var suiteBase = time.UnixMilli(1_700_000_000_000)

func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("IncrementCountsFromOne", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		w := Window{Duration: 15 * time.Minute}

		for i := 1; i <= 3; i++ {
			now := suiteBase.Add(time.Duration(i) * time.Second)
			rec, err := s.IncrementAndGet(ctx, "1.2.3.4", now, w)
			if err != nil {
				t.Fatalf("increment %d: %v", i, err)
			}
			if rec.Count != i {
				t.Fatalf("increment %d: expected count %d, got %d", i, i, rec.Count)
			}
			if !rec.WindowStart.Equal(suiteBase.Add(time.Second)) {
				t.Fatalf("window start moved: %v", rec.WindowStart)
			}
			if !rec.LastAttempt.Equal(now) {
				t.Fatalf("expected last attempt %v, got %v", now, rec.LastAttempt)
			}
		}
	})

	t.Run("WindowElapsedRestartsCount", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		w := Window{Duration: time.Minute}

		for i := 0; i < 4; i++ {
			if _, err := s.IncrementAndGet(ctx, "id", suiteBase, w); err != nil {
				t.Fatalf("increment: %v", err)
			}
		}

		later := suiteBase.Add(time.Minute + time.Second)
		rec, err := s.IncrementAndGet(ctx, "id", later, w)
		if err != nil {
			t.Fatalf("increment after window: %v", err)
		}
		if rec.Count != 1 {
			t.Fatalf("expected count to restart at 1, got %d", rec.Count)
		}
		if !rec.WindowStart.Equal(later) {
			t.Fatalf("expected new window start %v, got %v", later, rec.WindowStart)
		}
	})

	t.Run("IdleResetRestartsCount", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		w := Window{Duration: time.Hour, IdleReset: 10 * time.Second}

		for i := 0; i < 3; i++ {
			if _, err := s.IncrementAndGet(ctx, "id", suiteBase.Add(time.Duration(i)*time.Second), w); err != nil {
				t.Fatalf("increment: %v", err)
			}
		}

		rec, err := s.IncrementAndGet(ctx, "id", suiteBase.Add(13*time.Second), w)
		if err != nil {
			t.Fatalf("increment after idle: %v", err)
		}
		if rec.Count != 1 {
			t.Fatalf("expected idle reset, got count %d", rec.Count)
		}
	})

	t.Run("ResetIsIdempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.Reset(ctx, "never-seen"); err != nil {
			t.Fatalf("reset missing: %v", err)
		}
		if _, err := s.IncrementAndGet(ctx, "id", suiteBase, Window{Duration: time.Hour}); err != nil {
			t.Fatalf("increment: %v", err)
		}
		for i := 0; i < 2; i++ {
			if err := s.Reset(ctx, "id"); err != nil {
				t.Fatalf("reset %d: %v", i, err)
			}
		}
		if _, ok, err := s.Get(ctx, "id"); err != nil || ok {
			t.Fatalf("expected record gone, ok=%v err=%v", ok, err)
		}

		rec, err := s.IncrementAndGet(ctx, "id", suiteBase.Add(time.Second), Window{Duration: time.Hour})
		if err != nil {
			t.Fatalf("increment after reset: %v", err)
		}
		if rec.Count != 1 {
			t.Fatalf("expected fresh count 1 after reset, got %d", rec.Count)
		}
	})

	t.Run("GetOrCreateDoesNotCount", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		rec, err := s.GetOrCreate(ctx, "id", suiteBase)
		if err != nil {
			t.Fatalf("get or create: %v", err)
		}
		if rec.Count != 0 || !rec.WindowStart.Equal(suiteBase) {
			t.Fatalf("unexpected fresh record: %+v", rec)
		}

		again, err := s.GetOrCreate(ctx, "id", suiteBase.Add(time.Minute))
		if err != nil {
			t.Fatalf("second get or create: %v", err)
		}
		if !again.WindowStart.Equal(suiteBase) {
			t.Fatalf("existing record should be returned unchanged, got %+v", again)
		}
	})

	t.Run("TouchOnlyMovesForward", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.Touch(ctx, "ghost", suiteBase); err != nil {
			t.Fatalf("touch missing: %v", err)
		}
		if _, ok, _ := s.Get(ctx, "ghost"); ok {
			t.Fatal("touch must not create records")
		}

		if _, err := s.IncrementAndGet(ctx, "id", suiteBase, Window{Duration: time.Hour}); err != nil {
			t.Fatalf("increment: %v", err)
		}
		if err := s.Touch(ctx, "id", suiteBase.Add(5*time.Second)); err != nil {
			t.Fatalf("touch: %v", err)
		}
		if err := s.Touch(ctx, "id", suiteBase.Add(time.Second)); err != nil {
			t.Fatalf("touch backwards: %v", err)
		}

		rec, ok, err := s.Get(ctx, "id")
		if err != nil || !ok {
			t.Fatalf("get: ok=%v err=%v", ok, err)
		}
		if !rec.LastAttempt.Equal(suiteBase.Add(5 * time.Second)) {
			t.Fatalf("expected last attempt to stay at +5s, got %v", rec.LastAttempt)
		}
	})

	t.Run("EvictIdleRemovesOnlyIdle", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		w := Window{Duration: time.Hour}

		if _, err := s.IncrementAndGet(ctx, "old", suiteBase, w); err != nil {
			t.Fatalf("increment old: %v", err)
		}
		if _, err := s.IncrementAndGet(ctx, "new", suiteBase.Add(50*time.Minute), w); err != nil {
			t.Fatalf("increment new: %v", err)
		}

		n, err := s.EvictIdle(ctx, suiteBase.Add(time.Hour), 30*time.Minute)
		if err != nil {
			t.Fatalf("evict: %v", err)
		}
		if n != 1 {
			t.Fatalf("expected 1 eviction, got %d", n)
		}
		if _, ok, _ := s.Get(ctx, "old"); ok {
			t.Fatal("idle record survived eviction")
		}
		if _, ok, _ := s.Get(ctx, "new"); !ok {
			t.Fatal("active record was evicted")
		}
	})

	t.Run("ClearAndLen", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for _, id := range []string{"a", "b", "c"} {
			if _, err := s.IncrementAndGet(ctx, id, suiteBase, Window{Duration: time.Hour}); err != nil {
				t.Fatalf("increment %s: %v", id, err)
			}
		}
		if n, err := s.Len(ctx); err != nil || n != 3 {
			t.Fatalf("expected 3 records, got %d err=%v", n, err)
		}
		if err := s.Clear(ctx); err != nil {
			t.Fatalf("clear: %v", err)
		}
		if n, err := s.Len(ctx); err != nil || n != 0 {
			t.Fatalf("expected 0 records after clear, got %d err=%v", n, err)
		}
	})

	t.Run("CancelledContextIsNotAStoreFault", func(t *testing.T) {
		s := newStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := s.IncrementAndGet(ctx, "id", suiteBase, Window{Duration: time.Minute})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if errors.Is(err, ErrStoreUnavailable) {
			t.Fatalf("cancellation must not read as store unavailable: %v", err)
		}

		n, err := s.Len(context.Background())
		if err != nil {
			t.Fatalf("len: %v", err)
		}
		if n != 0 {
			t.Fatalf("expected no record after cancelled increment, got %d", n)
		}
	})

	t.Run("InvalidIdentityRejected", func(t *testing.T) {
		s := newStore(t)
		_, err := s.IncrementAndGet(context.Background(), "", suiteBase, Window{Duration: time.Hour})
		if !errors.Is(err, ErrInvalidIdentity) {
			t.Fatalf("expected ErrInvalidIdentity, got %v", err)
		}
	})

	t.Run("ConcurrentIncrementsAreLinearizable", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		w := Window{Duration: time.Hour}

		const m = 64
		counts := make([]int, m)
		var wg sync.WaitGroup
		wg.Add(m)
		for i := 0; i < m; i++ {
			go func(i int) {
				defer wg.Done()
				rec, err := s.IncrementAndGet(ctx, "burst", suiteBase, w)
				if err != nil {
					t.Errorf("increment: %v", err)
					return
				}
				counts[i] = rec.Count
			}(i)
		}
		wg.Wait()

		sort.Ints(counts)
		for i, c := range counts {
			if c != i+1 {
				t.Fatalf("expected counts 1..%d exactly once, got %v", m, counts)
			}
		}

		rec, ok, err := s.Get(ctx, "burst")
		if err != nil || !ok {
			t.Fatalf("get: ok=%v err=%v", ok, err)
		}
		if rec.Count != m {
			t.Fatalf("expected final count %d, got %d", m, rec.Count)
		}
	})
}
