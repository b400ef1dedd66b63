package core

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestSerialQueueRunsTasksInOrder(t *testing.T) {
	q := newSerialQueue("test", zerolog.Nop())
	defer q.Close()

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		if err := q.Do(func() error {
			order = append(order, i)
			return nil
		}); err != nil {
			t.Fatalf("Do(%d) returned error: %v", i, err)
		}
	}

	for i, got := range order {
		if got != i {
			t.Fatalf("task %d ran at position %d, order = %v", got, i, order)
		}
	}
}

func TestSerialQueueIsolatesFailures(t *testing.T) {
	q := newSerialQueue("test", zerolog.Nop())
	defer q.Close()

	wantErr := errors.New("boom")
	if err := q.Do(func() error { return wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("Do returned %v, want %v", err, wantErr)
	}

	ran := false
	if err := q.Do(func() error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("Do after failure returned error: %v", err)
	}
	if !ran {
		t.Fatal("task after a failed task did not run")
	}
}

func TestSerialQueueRecoversPanics(t *testing.T) {
	q := newSerialQueue("test", zerolog.Nop())
	defer q.Close()

	err := q.Do(func() error { panic("kaboom") })
	if err == nil {
		t.Fatal("Do returned nil for a panicking task")
	}

	if err := q.Do(func() error { return nil }); err != nil {
		t.Fatalf("queue dead after panic: %v", err)
	}
}

func TestSerialQueueClosedReturnsError(t *testing.T) {
	q := newSerialQueue("test", zerolog.Nop())
	q.Close()

	if err := q.Do(func() error { return nil }); !errors.Is(err, errQueueStopped) {
		t.Fatalf("Do on closed queue returned %v, want %v", err, errQueueStopped)
	}
}
