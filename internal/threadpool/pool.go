// Package threadpool implements the fixed, pinned multi-queue worker
// pool: one queue and one pinned worker per PU, task descriptors drawn
// from a shared taskslot.Pool. Grounded on the teacher's
// core/concurrency/executor.go (worker/queue/wg lifecycle, mutex-guarded
// grow-only resize, safeExecute's panic containment) and
// affinity/affinity.go + internal/concurrency/pin_linux.go (the pinning
// contract workers apply at startup).
//
// Author: heterosched contributors
// License: Apache-2.0
package threadpool

import (
	"sync"
	"sync/atomic"

	"github.com/arcana-lab/heterosched/internal/affinity"
	"github.com/arcana-lab/heterosched/internal/arch"
	"github.com/arcana-lab/heterosched/internal/errs"
	"github.com/arcana-lab/heterosched/internal/queue"
	"github.com/arcana-lab/heterosched/internal/runtimelog"
	"github.com/arcana-lab/heterosched/internal/taskslot"
)

// Options configures Pool construction. Grounded on the teacher's
// facade.Config/DefaultConfig shape: an immutable, fully-documented
// options struct with a Default constructor.
type Options struct {
	// QueueVariant selects which of the four queue.Queue
	// implementations backs every per-PU queue.
	QueueVariant queue.Variant
	// QueueCapacity is the bounded-push hint passed to queue.New.
	QueueCapacity int
	// PinWorkers controls whether workers call affinity.Pin at
	// startup. Disabled automatically falls back to unpinned
	// goroutines (useful under test, or on platforms without a
	// pinning syscall).
	PinWorkers bool
	// Extendible enables grow-only runtime scaling: when idle workers
	// drop below the queued task count, two more workers are spawned.
	Extendible bool
	// AtExit callbacks run, in registration order, after every queue
	// has been invalidated and every worker has joined.
	AtExit []func()
}

// DefaultOptions returns sane defaults: mutex queues, unbounded
// capacity, pinning enabled, not extendible.
func DefaultOptions() Options {
	return Options{
		QueueVariant:  queue.VariantMutex,
		QueueCapacity: 0,
		PinWorkers:    true,
		Extendible:    false,
	}
}

// Pool is the fixed, pinned multi-queue worker pool.
type Pool struct {
	a    *arch.Architecture
	opts Options

	slots *taskslot.Pool

	mu      sync.Mutex // guards queues/workers/idle during extend and shutdown
	queues  []queue.Queue[*taskslot.Slot]
	workers []*workerHandle
	idle    []*atomic.Bool

	done atomic.Bool
	wg   sync.WaitGroup

	rrCounter atomic.Uint64 // confined round-robin selector, per spec.md Design Notes
}

type workerHandle struct {
	queueIdx int
	puID     int
	idleFlag *atomic.Bool
}

// New constructs a Pool with one queue and one pinned worker per PU in
// a's flattened PU order.
func New(a *arch.Architecture, opts Options) (*Pool, error) {
	if a.NumPUs() == 0 {
		return nil, errs.NoPUs()
	}
	p := &Pool{a: a, opts: opts, slots: taskslot.New()}

	pus := a.PUs()
	for _, pu := range pus {
		p.spawnWorker(pu.ID)
	}
	return p, nil
}

func (p *Pool) spawnWorker(puID int) {
	q := queue.New[*taskslot.Slot](p.opts.QueueVariant, p.opts.QueueCapacity)
	idleFlag := &atomic.Bool{}

	p.mu.Lock()
	qIdx := len(p.queues)
	p.queues = append(p.queues, q)
	h := &workerHandle{queueIdx: qIdx, puID: puID, idleFlag: idleFlag}
	p.workers = append(p.workers, h)
	p.idle = append(p.idle, idleFlag)
	p.mu.Unlock()

	p.wg.Add(1)
	go p.runWorker(h, q)
}

func (p *Pool) runWorker(h *workerHandle, q queue.Queue[*taskslot.Slot]) {
	defer p.wg.Done()

	if p.opts.PinWorkers {
		if err := affinity.Pin(h.puID); err != nil {
			runtimelog.L.Printf("worker for PU %d: %v", h.puID, err)
			return
		}
		defer affinity.Unpin()
	}

	for !p.done.Load() {
		h.idleFlag.Store(true)
		slot, ok := q.WaitPop()
		if !ok {
			return
		}
		h.idleFlag.Store(false)
		p.execute(slot)
	}
	h.idleFlag.Store(false)
}

func (p *Pool) execute(slot *taskslot.Slot) {
	defer func() {
		_ = recover() // a single failing task body must not kill its worker
		p.slots.Release(slot)
	}()
	fn := slot.Fn()
	if fn != nil {
		fn(slot.Arg())
	}
}

// SubmitAndDetach claims a task slot, sets (fn, arg), and pushes it
// onto the queue belonging to PU puIndex. No result is delivered; the
// argument's lifetime is the caller's responsibility until the task
// completes.
func (p *Pool) SubmitAndDetach(fn taskslot.TaskFunc, arg any, puIndex int) error {
	p.mu.Lock()
	if puIndex < 0 || puIndex >= len(p.queues) {
		p.mu.Unlock()
		return errs.UnknownPU(puIndex)
	}
	q := p.queues[puIndex]
	p.mu.Unlock()

	if !q.IsValid() {
		runtimelog.L.Printf("submit dropped: queue %d invalidated", puIndex)
		return errs.QueueInvalidated()
	}

	slot, err := p.slots.GetTask(fn, arg)
	if err != nil {
		return err
	}
	q.Push(slot)

	if p.opts.Extendible {
		p.maybeExtend()
	}
	return nil
}

// SubmitAndDetachRoundRobin submits fn/arg to the next queue in a
// monotonically advancing, process-local rotation confined to this
// Pool instance.
func (p *Pool) SubmitAndDetachRoundRobin(fn taskslot.TaskFunc, arg any) error {
	p.mu.Lock()
	n := len(p.queues)
	p.mu.Unlock()
	if n == 0 {
		return errs.NoPUs()
	}
	idx := int(p.rrCounter.Add(1)-1) % n
	return p.SubmitAndDetach(fn, arg, idx)
}

// NumTasksWaiting sums per-queue sizes under a shared lock.
func (p *Pool) NumTasksWaiting() int {
	p.mu.Lock()
	qs := append([]queue.Queue[*taskslot.Slot](nil), p.queues...)
	p.mu.Unlock()

	total := 0
	for _, q := range qs {
		total += q.Size()
	}
	return total
}

// NumIdleThreads counts workers currently between tasks.
func (p *Pool) NumIdleThreads() int {
	p.mu.Lock()
	flags := append([]*atomic.Bool(nil), p.idle...)
	p.mu.Unlock()

	count := 0
	for _, f := range flags {
		if f.Load() {
			count++
		}
	}
	return count
}

// maybeExtend spawns two more workers, sharing the existing PU queues
// round-robin, when the idle-worker count has fallen below the queued
// task count. Grow-only: workers are never removed before Shutdown.
func (p *Pool) maybeExtend() {
	if p.NumIdleThreads() >= p.NumTasksWaiting() {
		return
	}
	p.mu.Lock()
	n := len(p.queues)
	p.mu.Unlock()
	if n == 0 {
		return
	}
	for i := 0; i < 2; i++ {
		idx := int(p.rrCounter.Add(1)-1) % n
		p.mu.Lock()
		q := p.queues[idx]
		puID := p.workers[idx].puID
		p.mu.Unlock()

		idleFlag := &atomic.Bool{}
		h := &workerHandle{queueIdx: idx, puID: puID, idleFlag: idleFlag}

		p.mu.Lock()
		p.workers = append(p.workers, h)
		p.idle = append(p.idle, idleFlag)
		p.mu.Unlock()

		p.wg.Add(1)
		go p.runWorker(h, q)
	}
}

// Shutdown sets done, invalidates every queue, waits for every worker
// to join, then runs AtExit callbacks in registration order and
// releases every task slot. The done store happens before queue
// invalidation so no worker can miss the wake: Go's atomic.Bool and
// the queues' own synchronization give the release/acquire ordering
// spec.md §9's "Shutdown race" note calls for without extra fencing.
func (p *Pool) Shutdown() {
	p.done.Store(true)

	p.mu.Lock()
	qs := append([]queue.Queue[*taskslot.Slot](nil), p.queues...)
	p.mu.Unlock()
	for _, q := range qs {
		q.Invalidate()
	}

	p.wg.Wait()

	for _, cb := range p.opts.AtExit {
		cb()
	}

	p.slots.ReleaseAll()
}
