// Package queue provides four interchangeable FIFO queue
// implementations sharing one capability set, so call sites never
// need to know which variant backs a given worker's inbox. This
// generalizes api.Ring's Enqueue/Dequeue/Len/Cap contract
// (github.com/momentics/hioload-ws/api/ring.go) to the fuller
// blocking/invalidation contract the thread pool needs.
//
// Author: heterosched contributors
// License: Apache-2.0
package queue

// Queue is the shared contract for all four variants. Safe for
// multiple producers and at least one consumer.
type Queue[T any] interface {
	// Push never blocks on validity.
	Push(v T)
	// TryPop is non-blocking; returns false if empty or invalid.
	TryPop() (T, bool)
	// WaitPop blocks until an element is available or the queue is
	// invalidated; returns false iff invalidated while empty.
	WaitPop() (T, bool)
	Size() int
	Empty() bool
	Clear()
	// Invalidate wakes all blocked WaitPop calls. The caller contract
	// is that no Push happens after Invalidate.
	Invalidate()
	IsValid() bool
}

// Variant selects a Queue[T] implementation at construction time.
type Variant int

const (
	// VariantMutex guards storage with a mutex and two condition
	// variables (not-empty, not-full).
	VariantMutex Variant = iota
	// VariantSpin busy-waits on a CAS-guarded spinlock.
	VariantSpin
	// VariantSleepBackoff sleeps with exponential backoff while empty.
	VariantSleepBackoff
	// VariantLockFree uses a sequence-numbered MPMC ring whose blocking
	// wait retries with an exponential sleep backoff.
	VariantLockFree
)

// New constructs a Queue[T] of the requested variant with the given
// capacity (a hint for the bounded variants; the unbounded ones grow).
func New[T any](variant Variant, capacity int) Queue[T] {
	switch variant {
	case VariantSpin:
		return newSpinQueue[T](capacity)
	case VariantSleepBackoff:
		return newBackoffQueue[T](capacity)
	case VariantLockFree:
		return newLockFreeQueue[T](capacity)
	default:
		return newMutexQueue[T](capacity)
	}
}
