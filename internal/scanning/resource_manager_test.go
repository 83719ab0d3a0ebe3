package scanning

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestFixedResourceManager_Acquire(t *testing.T) {
	t.Run("successful acquisition", func(t *testing.T) {
		rm := NewFixedResourceManager(5)
		ctx := context.Background()

		err := rm.Acquire(ctx, "probe-22")
		if err != nil {
			t.Fatalf("Expected successful acquisition, got error: %v", err)
		}

		if rm.GetActiveProbes() != 1 {
			t.Errorf("Expected 1 active probe, got %d", rm.GetActiveProbes())
		}

		rm.Release("probe-22")
	})

	t.Run("resource exhaustion", func(t *testing.T) {
		rm := NewFixedResourceManager(2)
		ctx := context.Background()

		err1 := rm.Acquire(ctx, "probe-1")
		err2 := rm.Acquire(ctx, "probe-2")
		if err1 != nil || err2 != nil {
			t.Fatalf("Expected successful acquisition, got errors: %v, %v", err1, err2)
		}

		// Third acquisition should time out
		ctx3, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()

		if err := rm.Acquire(ctx3, "probe-3"); err == nil {
			t.Error("Expected timeout error, got success")
		}
		if rm.GetActiveProbes() != 2 {
			t.Errorf("Expected 2 active probes, got %d", rm.GetActiveProbes())
		}

		rm.Release("probe-1")
		rm.Release("probe-2")
	})

	t.Run("context cancellation", func(t *testing.T) {
		rm := NewFixedResourceManager(1)

		if err := rm.Acquire(context.Background(), "blocking"); err != nil {
			t.Fatalf("Expected successful acquisition, got error: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := rm.Acquire(ctx, "cancelled"); err == nil {
			t.Error("Expected cancellation error, got success")
		}

		rm.Release("blocking")
	})

	t.Run("duplicate probe id", func(t *testing.T) {
		rm := NewFixedResourceManager(3)
		ctx := context.Background()

		if err := rm.Acquire(ctx, "probe-80"); err != nil {
			t.Fatalf("Expected successful acquisition, got error: %v", err)
		}
		if err := rm.Acquire(ctx, "probe-80"); err == nil {
			t.Error("Expected error for duplicate probe id")
		}
		if rm.GetAvailableSlots() != 2 {
			t.Errorf("Duplicate acquisition must not leak a slot, got %d available", rm.GetAvailableSlots())
		}
	})

	t.Run("closed manager", func(t *testing.T) {
		rm := NewFixedResourceManager(1)
		if err := rm.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		if err := rm.Acquire(context.Background(), "late"); err == nil {
			t.Error("Expected error acquiring from closed manager")
		}
	})

	t.Run("non-positive capacity", func(t *testing.T) {
		rm := NewFixedResourceManager(0)
		if rm.GetAvailableSlots() != 1 {
			t.Errorf("Expected capacity clamped to 1, got %d", rm.GetAvailableSlots())
		}
	})
}

func TestFixedResourceManager_Release(t *testing.T) {
	t.Run("proper release", func(t *testing.T) {
		rm := NewFixedResourceManager(3)
		ctx := context.Background()

		ids := []string{"probe-1", "probe-2", "probe-3"}
		for _, id := range ids {
			if err := rm.Acquire(ctx, id); err != nil {
				t.Fatalf("Failed to acquire resource for %s: %v", id, err)
			}
		}

		if rm.GetActiveProbes() != 3 {
			t.Errorf("Expected 3 active probes, got %d", rm.GetActiveProbes())
		}

		for _, id := range ids {
			rm.Release(id)
		}

		if rm.GetActiveProbes() != 0 {
			t.Errorf("Expected 0 active probes after release, got %d", rm.GetActiveProbes())
		}
		if rm.GetAvailableSlots() != 3 {
			t.Errorf("Expected 3 available slots, got %d", rm.GetAvailableSlots())
		}
	})

	t.Run("release non-existent probe", func(t *testing.T) {
		rm := NewFixedResourceManager(2)

		// Must not panic or free a slot that was never taken
		rm.Release("non-existent")
		rm.Release("non-existent")

		if rm.GetAvailableSlots() != 2 {
			t.Errorf("Expected 2 available slots, got %d", rm.GetAvailableSlots())
		}
	})

	t.Run("release unblocks waiter", func(t *testing.T) {
		rm := NewFixedResourceManager(1)
		ctx := context.Background()
		if err := rm.Acquire(ctx, "first"); err != nil {
			t.Fatal(err)
		}

		acquired := make(chan error, 1)
		go func() { acquired <- rm.Acquire(ctx, "second") }()

		select {
		case <-acquired:
			t.Fatal("Expected acquisition to block while the only slot is held")
		case <-time.After(50 * time.Millisecond):
		}

		rm.Release("first")
		select {
		case err := <-acquired:
			if err != nil {
				t.Errorf("Expected waiter to acquire, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("Waiter was not released")
		}
	})
}

func TestFixedResourceManager_ConcurrentAccess(t *testing.T) {
	const capacity = 10
	rm := NewFixedResourceManager(capacity)
	ctx := context.Background()

	const numGoroutines = 50
	const probesPerGoroutine = 5

	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines*probesPerGoroutine)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			for j := 0; j < probesPerGoroutine; j++ {
				id := fmt.Sprintf("worker-%d-probe-%d", workerID, j)
				if err := rm.Acquire(ctx, id); err != nil {
					errs <- err
					return
				}
				time.Sleep(time.Millisecond)
				rm.Release(id)
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent operation failed: %v", err)
	}

	if rm.GetActiveProbes() != 0 {
		t.Errorf("Expected 0 active probes after completion, got %d", rm.GetActiveProbes())
	}
	if rm.Peak() > capacity {
		t.Errorf("Peak %d exceeded capacity %d", rm.Peak(), capacity)
	}

	if rm.GetAvailableSlots() != capacity {
		t.Errorf("Expected %d available slots, got %d", capacity, rm.GetAvailableSlots())
	}
}
