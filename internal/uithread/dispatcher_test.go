package uithread

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestDispatcher_FIFOOnOneGoroutine(t *testing.T) {
	d := New(16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	var (
		mu    sync.Mutex
		order []int
	)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		i := i
		if !d.Post(func() {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}) {
			t.Fatalf("Post %d rejected", i)
		}
	}
	wg.Wait()

	for i, v := range order {
		if v != i {
			t.Fatalf("tasks ran out of order: %v", order)
		}
	}
}

func TestDispatcher_CloseRunsQueuedTasks(t *testing.T) {
	d := New(4)
	ran := 0
	for i := 0; i < 3; i++ {
		d.Post(func() { ran++ })
	}
	d.Close()
	d.Run(context.Background())

	if ran != 3 {
		t.Errorf("ran %d queued tasks, want 3", ran)
	}
	if d.Post(func() {}) {
		t.Error("Post after Close should be rejected")
	}
	select {
	case <-d.Done():
	default:
		t.Error("Done not closed after Run returned")
	}
	// closing twice is harmless
	d.Close()
}

func TestDispatcher_FullQueueDrops(t *testing.T) {
	d := New(1)
	if !d.Post(func() {}) {
		t.Fatal("first Post rejected")
	}
	if d.Post(func() {}) {
		t.Fatal("Post into a full queue should be rejected")
	}
	if got := d.Dropped(); got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
}

func TestDispatcher_Invoke(t *testing.T) {
	d := New(4)
	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)

	value := 0
	if err := d.Invoke(context.Background(), func() { value = 42 }); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if value != 42 {
		t.Errorf("value = %d, want 42", value)
	}

	cancel()
	select {
	case <-d.Done():
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if err := d.Invoke(context.Background(), func() {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Invoke after shutdown = %v, want ErrClosed", err)
	}
}
