// File: internal/queue/mutex_queue.go
//
// Mutex variant: exclusive lock plus two condition variables (not-empty,
// not-full), storage delegated to github.com/eapache/queue's ring-buffer
// Queue. This is the one third-party dependency the teacher's go.mod
// carried but never wired into any shipped file — this variant gives it
// the home spec.md's Mutex queue design calls for.
package queue

import (
	"sync"

	eapache "github.com/eapache/queue"
)

// mutexQueue bounds capacity when cap > 0; cap <= 0 means unbounded.
type mutexQueue[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	storage  *eapache.Queue
	cap      int
	valid    bool
}

func newMutexQueue[T any](capacity int) *mutexQueue[T] {
	q := &mutexQueue[T]{
		storage: eapache.New(),
		cap:     capacity,
		valid:   true,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

func (q *mutexQueue[T]) Push(v T) {
	q.mu.Lock()
	for q.cap > 0 && q.storage.Length() >= q.cap && q.valid {
		q.notFull.Wait()
	}
	q.storage.Add(v)
	q.mu.Unlock()
	q.notEmpty.Signal()
}

func (q *mutexQueue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if q.storage.Length() == 0 || !q.valid {
		return zero, false
	}
	v := q.storage.Remove().(T)
	q.notFull.Signal()
	return v, true
}

func (q *mutexQueue[T]) WaitPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	for q.storage.Length() == 0 && q.valid {
		q.notEmpty.Wait()
	}
	if q.storage.Length() == 0 {
		// Invalidated while empty.
		return zero, false
	}
	v := q.storage.Remove().(T)
	q.notFull.Signal()
	return v, true
}

func (q *mutexQueue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.storage.Length()
}

func (q *mutexQueue[T]) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.storage.Length() == 0
}

func (q *mutexQueue[T]) Clear() {
	q.mu.Lock()
	q.storage = eapache.New()
	q.mu.Unlock()
	q.notFull.Broadcast()
}

func (q *mutexQueue[T]) Invalidate() {
	q.mu.Lock()
	q.valid = false
	q.mu.Unlock()
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

func (q *mutexQueue[T]) IsValid() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.valid
}
