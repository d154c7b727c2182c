package scan

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	logx "github.com/glaizaaaaaa2/scanner-bot/pkg/logx"
)

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for queued scan")
	}
}

func TestQueueSerializesScans(t *testing.T) {
	t.Parallel()
	q := NewQueue(8, logx.Nop())
	q.Start(context.Background())
	defer q.Stop(context.Background())

	var mu sync.Mutex
	var events []string
	record := func(s string) {
		mu.Lock()
		events = append(events, s)
		mu.Unlock()
	}

	// Two scans from different requesters submitted back to back: their
	// simulated external calls must never interleave.
	doneA, err := q.Enqueue("a", func(ctx context.Context) error {
		for i := 0; i < 3; i++ {
			record("a")
			time.Sleep(5 * time.Millisecond)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("enqueue a: %v", err)
	}
	doneB, err := q.Enqueue("b", func(ctx context.Context) error {
		for i := 0; i < 3; i++ {
			record("b")
			time.Sleep(5 * time.Millisecond)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("enqueue b: %v", err)
	}

	waitDone(t, doneA)
	waitDone(t, doneB)

	mu.Lock()
	defer mu.Unlock()
	want := []string{"a", "a", "a", "b", "b", "b"}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events = %v, want %v (scans interleaved)", events, want)
		}
	}
}

func TestQueueFailureDoesNotPoisonChain(t *testing.T) {
	t.Parallel()
	q := NewQueue(8, logx.Nop())
	q.Start(context.Background())
	defer q.Stop(context.Background())

	doneFail, err := q.Enqueue("fail", func(ctx context.Context) error {
		return errors.New("boom")
	})
	if err != nil {
		t.Fatalf("enqueue fail: %v", err)
	}

	ran := false
	doneOK, err := q.Enqueue("ok", func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("enqueue ok: %v", err)
	}

	waitDone(t, doneFail)
	waitDone(t, doneOK)
	if !ran {
		t.Fatal("task after a failed task did not run")
	}
}

func TestQueuePanicRecovered(t *testing.T) {
	t.Parallel()
	q := NewQueue(8, logx.Nop())
	q.Start(context.Background())
	defer q.Stop(context.Background())

	donePanic, err := q.Enqueue("panic", func(ctx context.Context) error {
		panic("kaboom")
	})
	if err != nil {
		t.Fatalf("enqueue panic: %v", err)
	}
	waitDone(t, donePanic)

	ran := false
	doneOK, err := q.Enqueue("ok", func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("enqueue ok: %v", err)
	}
	waitDone(t, doneOK)
	if !ran {
		t.Fatal("queue did not survive a panicking task")
	}
}

func TestQueueEnqueueAfterStop(t *testing.T) {
	t.Parallel()
	q := NewQueue(8, logx.Nop())
	q.Start(context.Background())
	q.Stop(context.Background())

	if _, err := q.Enqueue("late", func(ctx context.Context) error { return nil }); !errors.Is(err, ErrQueueStopped) {
		t.Fatalf("Enqueue after Stop = %v, want ErrQueueStopped", err)
	}
}
