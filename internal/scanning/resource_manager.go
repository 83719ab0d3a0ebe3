package scanning

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ResourceManager bounds how many probes may hold a socket at once.
type ResourceManager interface {
	// Acquire blocks until a slot is available for probeID or ctx is done.
	Acquire(ctx context.Context, probeID string) error

	// Release returns the slot held by probeID.
	Release(probeID string)

	// GetActiveProbes returns the number of probes currently holding a slot.
	GetActiveProbes() int

	// GetAvailableSlots returns the number of free slots.
	GetAvailableSlots() int

	// Close rejects further acquisitions.
	Close() error
}

// FixedResourceManager implements ResourceManager with a fixed number of
// slots backed by a weighted semaphore. Waiters are not served in FIFO order
// by contract; only the cardinality bound is guaranteed.
type FixedResourceManager struct {
	capacity     int
	semaphore    *semaphore.Weighted
	activeProbes map[string]time.Time
	peak         int
	mutex        sync.RWMutex
	closed       bool
}

// NewFixedResourceManager creates a new resource manager with the specified capacity.
func NewFixedResourceManager(capacity int) *FixedResourceManager {
	if capacity <= 0 {
		capacity = 1
	}

	return &FixedResourceManager{
		capacity:     capacity,
		semaphore:    semaphore.NewWeighted(int64(capacity)),
		activeProbes: make(map[string]time.Time),
	}
}

// Acquire attempts to acquire a resource slot for the given probe ID.
func (rm *FixedResourceManager) Acquire(ctx context.Context, probeID string) error {
	rm.mutex.RLock()
	closed := rm.closed
	rm.mutex.RUnlock()
	if closed {
		return fmt.Errorf("resource manager is closed")
	}

	if err := rm.semaphore.Acquire(ctx, 1); err != nil {
		return err
	}

	rm.mutex.Lock()
	defer rm.mutex.Unlock()

	if rm.closed {
		rm.semaphore.Release(1)
		return fmt.Errorf("resource manager is closed")
	}
	if _, exists := rm.activeProbes[probeID]; exists {
		rm.semaphore.Release(1)
		return fmt.Errorf("probe %s already holds a slot", probeID)
	}

	rm.activeProbes[probeID] = time.Now()
	if n := len(rm.activeProbes); n > rm.peak {
		rm.peak = n
	}
	return nil
}

// Release releases the resource slot for the given probe ID.
func (rm *FixedResourceManager) Release(probeID string) {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()

	if _, exists := rm.activeProbes[probeID]; exists {
		delete(rm.activeProbes, probeID)
		rm.semaphore.Release(1)
	}
}

// GetActiveProbes returns the current number of active probes.
func (rm *FixedResourceManager) GetActiveProbes() int {
	rm.mutex.RLock()
	defer rm.mutex.RUnlock()

	return len(rm.activeProbes)
}

// GetAvailableSlots returns the number of available resource slots.
func (rm *FixedResourceManager) GetAvailableSlots() int {
	rm.mutex.RLock()
	defer rm.mutex.RUnlock()

	return rm.capacity - len(rm.activeProbes)
}

// Peak returns the highest number of simultaneously active probes seen.
func (rm *FixedResourceManager) Peak() int {
	rm.mutex.RLock()
	defer rm.mutex.RUnlock()

	return rm.peak
}

// Close stops the manager from handing out new slots. Probes already holding
// a slot may still release it.
func (rm *FixedResourceManager) Close() error {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()

	rm.closed = true
	return nil
}
