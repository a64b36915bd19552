package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	got     []Event
}

func (s *blockingSink) Emit(_ context.Context, e Event) {
	<-s.release
	s.mu.Lock()
	s.got = append(s.got, e)
	s.mu.Unlock()
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestDispatcherDeliversInOrderAndFlushesOnClose(t *testing.T) {
	sink := NewChannelSink(16)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16, DropIfFull: true}, sink)

	for i := 1; i <= 5; i++ {
		d.Emit(context.Background(), Event{EventType: "attempt_allowed", Count: i})
	}
	d.Close()

	for i := 1; i <= 5; i++ {
		select {
		case e := <-sink.Events():
			if e.Count != i {
				t.Fatalf("expected count %d, got %d", i, e.Count)
			}
		case <-time.After(time.Second):
			t.Fatalf("event %d not delivered", i)
		}
	}
}

func TestDispatcherDropIfFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 50; i++ {
		d.Emit(context.Background(), Event{Count: i})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a stalled sink and buffer of 1")
	}

	close(sink.release)
	d.Close()

	d.Emit(context.Background(), Event{})
}

func TestDispatcherBlockingHonorsContext(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: false}, sink)
	defer func() {
		close(sink.release)
		d.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	for i := 0; i < 3; i++ {
		d.Emit(ctx, Event{Count: i})
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("blocking emit ignored context deadline")
	}
}

func TestDispatcherNeverShedsCriticalEvents(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	var (
		mu          sync.Mutex
		droppedType []string
		waited      int
	)
	d := NewDispatcher(Config{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
		Critical:   func(e Event) bool { return e.EventType == "attempt_denied" },
		OnDrop: func(e Event) {
			mu.Lock()
			droppedType = append(droppedType, e.EventType)
			mu.Unlock()
		},
		OnBackpressure: func(Event) {
			mu.Lock()
			waited++
			mu.Unlock()
		},
	}, sink)

	// Park the relay inside the sink before filling the queue.
	d.Emit(context.Background(), Event{EventType: "attempt_allowed"})
	for len(d.queue) > 0 {
		time.Sleep(time.Millisecond)
	}
	for i := 1; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "attempt_allowed", Count: i})
	}
	if d.Dropped() != 8 {
		t.Fatalf("expected 8 drops, got %d", d.Dropped())
	}

	done := make(chan struct{})
	go func() {
		d.Emit(context.Background(), Event{EventType: "attempt_denied", Count: 99})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("critical event must wait for room, not drop")
	case <-time.After(50 * time.Millisecond):
	}

	close(sink.release)
	<-done
	d.Close()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if last := sink.got[len(sink.got)-1]; last.EventType != "attempt_denied" || last.Count != 99 {
		t.Fatalf("expected denial delivered last, got %+v", last)
	}

	mu.Lock()
	defer mu.Unlock()
	if uint64(len(droppedType)) != d.Dropped() || d.Dropped() == 0 {
		t.Fatalf("OnDrop calls %d != Dropped %d", len(droppedType), d.Dropped())
	}
	for _, typ := range droppedType {
		if typ == "attempt_denied" {
			t.Fatal("critical event was dropped")
		}
	}
	if waited != 1 {
		t.Fatalf("expected one backpressure wait, got %d", waited)
	}
}

func TestDispatcherEmitAfterCloseIsIgnored(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)
	d.Close()
	d.Close()

	d.Emit(context.Background(), Event{EventType: "attempt_allowed"})
	if d.Dropped() != 0 {
		t.Fatalf("post-close emit must not count as a drop, got %d", d.Dropped())
	}
	select {
	case e := <-sink.Events():
		t.Fatalf("unexpected delivery after close: %+v", e)
	default:
	}
}

func TestDispatcherConcurrentEmitAndClose(t *testing.T) {
	sink := NewChannelSink(4096)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				d.Emit(context.Background(), Event{EventType: "attempt_allowed"})
			}
		}()
	}
	time.Sleep(time.Millisecond)
	d.Close()
	wg.Wait()

	delivered := len(sink.Events())
	if delivered > 1600 {
		t.Fatalf("delivered more events than emitted: %d", delivered)
	}
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{ID: "a", EventType: "attempt_denied", Identity: "1.2.3.4", Count: 6})
	sink.Emit(context.Background(), Event{ID: "b", EventType: "identity_reset", Success: true})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var e Event
	if err := json.Unmarshal([]byte(lines[0]), &e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.EventType != "attempt_denied" || e.Count != 6 || e.Identity != "1.2.3.4" {
		t.Fatalf("unexpected event: %+v", e)
	}
}

func TestLoggerSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLoggerSink(zerolog.New(&buf))
	sink.Emit(context.Background(), Event{EventType: "attempt_denied", Error: "rate limited"})

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["level"] != "warn" || entry["message"] != "attempt_denied" || entry["error"] != "rate limited" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}
