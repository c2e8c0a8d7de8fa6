// Package scheduler implements the weight-driven dispatcher: for each
// submission it projects, per PU, the accumulated normalized work plus
// the new task's normalized cost, picks the PU minimizing that
// projection, updates its bookkeeping atomically with the selection,
// and hands the task to the threadpool.Pool for that exact PU.
//
// Grounded on the teacher's api/scheduler.go and api/executor.go
// contracts (Schedule/Submit shape) and on core/concurrency/executor.go's
// habit of dumping diagnostic state with plain log.Printf lines, used
// here for PrintWorkHistories.
//
// Author: heterosched contributors
// License: Apache-2.0
package scheduler

import (
	"math"
	"sync"

	"github.com/arcana-lab/heterosched/internal/arch"
	"github.com/arcana-lab/heterosched/internal/errs"
	"github.com/arcana-lab/heterosched/internal/future"
	"github.com/arcana-lab/heterosched/internal/runtimelog"
	"github.com/arcana-lab/heterosched/internal/taskslot"
	"github.com/arcana-lab/heterosched/internal/threadpool"
)

// OverflowPolicy selects what happens when an accumulated_work update
// would overflow its uint64 accumulator. spec.md §7 leaves the choice
// implementation-defined; see DESIGN.md for why Saturate is the
// default.
type OverflowPolicy int

const (
	// OverflowSaturate clamps accumulated_work at math.MaxUint64
	// instead of wrapping.
	OverflowSaturate OverflowPolicy = iota
	// OverflowFatal returns errs.ErrOverflow instead of dispatching.
	OverflowFatal
)

// granularityFactor amplifies the input weight before the cost model
// is applied, so integer-arithmetic cost differences survive the
// division for small weights and weak strength differences (spec.md §4.5).
const granularityFactor = 1000

// Options configures Scheduler construction.
type Options struct {
	OverflowPolicy OverflowPolicy
}

// DefaultOptions returns OverflowSaturate.
func DefaultOptions() Options {
	return Options{OverflowPolicy: OverflowSaturate}
}

type historyEntry struct {
	puID            int
	accumulatedWork uint64
}

// Scheduler is the stateful weighted dispatcher.
type Scheduler struct {
	pool *threadpool.Pool
	a    *arch.Architecture
	opts Options

	mu      sync.Mutex
	history []historyEntry
}

// New constructs a Scheduler sized to a's PU count, in a's PU order.
// Fails with errs.ErrNoPUs if a has zero PUs (cannot occur against an
// Architecture built successfully, since arch.New itself rejects that).
func New(pool *threadpool.Pool, a *arch.Architecture, opts Options) (*Scheduler, error) {
	if a.NumPUs() == 0 {
		return nil, errs.NoPUs()
	}
	history := make([]historyEntry, a.NumPUs())
	for i, pu := range a.PUs() {
		history[i] = historyEntry{puID: pu.ID}
	}
	return &Scheduler{pool: pool, a: a, opts: opts, history: history}, nil
}

// cost computes w * granularityFactor * S_max / s_i using 64-bit
// integer arithmetic throughout; weight, S_max and s_i are all
// expected to be small enough relative to uint64 that the
// multiplication does not overflow before the division narrows it
// back down (spec.md §4.5's "must avoid overflow and underflow").
func cost(weight, sMax, strength uint64) uint64 {
	if strength == 0 {
		strength = 1
	}
	return (weight * granularityFactor * sMax) / strength
}

// findAndUpdate selects the PU minimizing projected total work and
// atomically increases its accumulated_work by the chosen cost. Runs
// under the scheduler lock for the whole read-modify-write, per
// spec.md §4.5's "Update rule."
func (s *Scheduler) findAndUpdate(weight uint64) (puID int, err error) {
	sMax := s.a.MaxPUStrength()

	s.mu.Lock()
	defer s.mu.Unlock()

	bestIdx := -1
	var bestProjected uint64
	for i, h := range s.history {
		strength, sErr := s.a.PUStrength(h.puID)
		if sErr != nil {
			continue
		}
		c := cost(weight, sMax, strength)
		projected, _ := addSaturatingOrFatal(h.accumulatedWork, c)
		if bestIdx == -1 || projected < bestProjected {
			bestIdx = i
			bestProjected = projected
		}
	}
	if bestIdx == -1 {
		return 0, errs.NoPUs()
	}

	strength, _ := s.a.PUStrength(s.history[bestIdx].puID)
	c := cost(weight, sMax, strength)
	updated, overflowed := addSaturatingOrFatal(s.history[bestIdx].accumulatedWork, c)
	if overflowed && s.opts.OverflowPolicy == OverflowFatal {
		return 0, errs.Overflow(s.history[bestIdx].puID)
	}
	s.history[bestIdx].accumulatedWork = updated

	return s.history[bestIdx].puID, nil
}

func addSaturatingOrFatal(a, b uint64) (sum uint64, overflowed bool) {
	sum = a + b
	if sum < a { // wrapped
		return math.MaxUint64, true
	}
	return sum, false
}

// SubmitAndDetach chooses the best-fit PU for a task of the given
// weight and advisory localityIsland (accepted but never consulted by
// this policy, per spec.md §9), updates bookkeeping, and dispatches it
// fire-and-forget to the thread pool. Returns the chosen PU id.
func (s *Scheduler) SubmitAndDetach(fn taskslot.TaskFunc, arg any, weight uint64, localityIsland int) (int, error) {
	_ = localityIsland // advisory; not consulted by this policy
	puID, err := s.findAndUpdate(weight)
	if err != nil {
		return 0, err
	}
	if err := s.pool.SubmitAndDetach(fn, arg, puID); err != nil {
		return 0, err
	}
	return puID, nil
}

// Submit behaves like SubmitAndDetach but also returns a Future the
// caller can Wait() on for task completion.
func (s *Scheduler) Submit(fn taskslot.TaskFunc, arg any, weight uint64, localityIsland int) (*future.Future[struct{}], int, error) {
	fut, complete := future.New[struct{}]()
	wrapped := func(a any) {
		defer complete(struct{}{}, nil)
		fn(a)
	}
	puID, err := s.SubmitAndDetach(wrapped, arg, weight, localityIsland)
	if err != nil {
		return nil, 0, err
	}
	return fut, puID, nil
}

// PrintWorkHistories snapshots history under the scheduler lock and
// emits "PU #<id> : <accumulated_work>" lines, one per PU in
// Architecture order, to stderr via runtimelog.
func (s *Scheduler) PrintWorkHistories() {
	s.mu.Lock()
	snapshot := append([]historyEntry(nil), s.history...)
	s.mu.Unlock()

	for _, h := range snapshot {
		runtimelog.L.Printf("PU #%d : %d", h.puID, h.accumulatedWork)
	}
}

// WorkHistories returns a snapshot of accumulated_work keyed by pu_id
// (a map, so it carries no PU order), for tests that verify placement decisions without
// scraping log output.
func (s *Scheduler) WorkHistories() map[int]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]uint64, len(s.history))
	for _, h := range s.history {
		out[h.puID] = h.accumulatedWork
	}
	return out
}
