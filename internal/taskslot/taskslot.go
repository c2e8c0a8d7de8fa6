// Package taskslot implements the reusable task-descriptor pool that
// amortizes allocation across submissions. Grounded on the teacher's
// pool/objpool.go (generic Get/Put) and pool/slab_pool.go (grow-on-miss
// under a guard, atomic bookkeeping): a slot holds (fn, arg, optional
// cpuset, available flag, slot id); GetTask scans for a free slot,
// CAS-claims it under the pool's spinlock, and appends a new one when
// none are free. A worker calls Release after the task body returns.
//
// Author: heterosched contributors
// License: Apache-2.0
package taskslot

import (
	"runtime"
	"sync/atomic"
)

// TaskFunc is the opaque task ABI: a function taking a single
// argument it does not interpret, copy, or free.
type TaskFunc func(arg any)

// Slot is a reusable task descriptor. Lifecycle: free -> claimed ->
// running -> free. Fields are only valid for the worker that popped
// the slot between claim and Release.
type Slot struct {
	id        int
	available atomic.Bool
	fn        TaskFunc
	arg       any
	cpuset    int // optional PU affinity hint; -1 if unset
}

// ID returns the slot's stable identifier within its pool.
func (s *Slot) ID() int { return s.id }

// Fn returns the task body.
func (s *Slot) Fn() TaskFunc { return s.fn }

// Arg returns the task argument.
func (s *Slot) Arg() any { return s.arg }

// Pool is a dynamically growing sequence of task slots, spinlock
// guarded for claim/growth.
type Pool struct {
	locked atomic.Bool
	slots  []*Slot
}

// New creates an empty pool. Slots are appended lazily on first claim.
func New() *Pool {
	return &Pool{}
}

func (p *Pool) lock() {
	for !p.locked.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

func (p *Pool) unlock() {
	p.locked.Store(false)
}

// GetTask claims the first free slot, or grows the pool by one and
// claims the new slot if none were free. The claimed slot's fn/arg are
// set from the arguments given.
func (p *Pool) GetTask(fn TaskFunc, arg any) (*Slot, error) {
	p.lock()
	defer p.unlock()

	for _, s := range p.slots {
		if s.available.CompareAndSwap(true, false) {
			s.fn = fn
			s.arg = arg
			s.cpuset = -1
			return s, nil
		}
	}

	s := &Slot{id: len(p.slots), fn: fn, arg: arg, cpuset: -1}
	s.available.Store(false)
	p.slots = append(p.slots, s)
	return s, nil
}

// Release returns slot to the free set. Safe to call exactly once per
// claim; a running task must not be reclaimed before this is called.
func (p *Pool) Release(s *Slot) {
	s.fn = nil
	s.arg = nil
	s.available.Store(true)
}

// Len returns the total number of slots ever allocated (free + in use).
func (p *Pool) Len() int {
	p.lock()
	defer p.unlock()
	return len(p.slots)
}

// ReleaseAll forces every slot back to free, regardless of current
// state. Used at thread-pool shutdown to reclaim slots whose tasks
// were abandoned when their queue was invalidated with items still
// pending (spec.md §6).
func (p *Pool) ReleaseAll() {
	p.lock()
	defer p.unlock()
	for _, s := range p.slots {
		s.fn = nil
		s.arg = nil
		s.available.Store(true)
	}
}

