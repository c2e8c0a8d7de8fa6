package scheduler

import (
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/arcana-lab/heterosched/internal/arch"
	"github.com/arcana-lab/heterosched/internal/threadpool"
)

func newTestSystem(t *testing.T, strengths ...uint64) (*arch.Architecture, *threadpool.Pool, *Scheduler) {
	t.Helper()
	a, err := arch.New(arch.Flat(strengths...))
	if err != nil {
		t.Fatal(err)
	}
	opts := threadpool.DefaultOptions()
	opts.PinWorkers = false
	pool, err := threadpool.New(a, opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Shutdown)
	sched, err := New(pool, a, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	return a, pool, sched
}

// Scenario A: two PUs, strengths 100000 and 70000; three weight-1000
// tasks should land PU0, PU1, PU0 per spec.md §8.
func TestScenarioA(t *testing.T) {
	_, _, sched := newTestSystem(t, 100000, 70000)

	var wg sync.WaitGroup
	var order []int
	var mu sync.Mutex
	dispatch := func(weight uint64) int {
		wg.Add(1)
		puID, err := sched.SubmitAndDetach(func(any) {
			defer wg.Done()
		}, nil, weight, 0)
		if err != nil {
			t.Fatal(err)
		}
		mu.Lock()
		order = append(order, puID)
		mu.Unlock()
		return puID
	}

	got := []int{dispatch(1000), dispatch(1000), dispatch(1000)}
	want := []int{0, 1, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("submission %d dispatched to PU%d, want PU%d", i+1, got[i], want[i])
		}
	}
	wg.Wait()

	hist := sched.WorkHistories()
	if hist[0] != 2000000 {
		t.Errorf("history[0] = %d, want 2000000", hist[0])
	}
	if hist[1] != 1428571 {
		t.Errorf("history[1] = %d, want 1428571", hist[1])
	}
}

// Scenario B: four equal PUs, eight weight-1 tasks, 2 per PU.
func TestScenarioB(t *testing.T) {
	_, pool, sched := newTestSystem(t, 1, 1, 1, 1)
	_ = pool

	counts := make(map[int]int)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		puID, err := sched.SubmitAndDetach(func(any) { wg.Done() }, nil, 1, 0)
		if err != nil {
			t.Fatal(err)
		}
		mu.Lock()
		counts[puID]++
		mu.Unlock()
	}
	wg.Wait()

	for pu := 0; pu < 4; pu++ {
		if counts[pu] != 2 {
			t.Errorf("PU%d received %d tasks, want 2", pu, counts[pu])
		}
	}
}

// Scenario C: PU strength 1000 (PU0) vs 1 (PU1); the strong PU takes
// 1000 weight-1 tasks before the weak PU gets its first. PU0 is the
// strong PU so ties at the crossover favor it (lowest index wins).
func TestScenarioC(t *testing.T) {
	_, _, sched := newTestSystem(t, 1000, 1)

	weakFirstAt := -1
	for i := 0; i < 1001; i++ {
		puID, err := sched.SubmitAndDetach(func(any) {}, nil, 1, 0)
		if err != nil {
			t.Fatal(err)
		}
		if puID == 1 { // PU1 has strength 1: the weak PU
			weakFirstAt = i
			break
		}
	}
	if weakFirstAt != 1000 {
		t.Errorf("weak PU received its first task at submission %d, want 1000 (0-indexed)", weakFirstAt)
	}
}

// Scenario D: concurrent submitters; invariant 3 (sum of history
// equals sum of costs) must hold, and every submission must dispatch.
func TestScenarioD_ConcurrentSubmitters(t *testing.T) {
	a, _, sched := newTestSystem(t, 50000, 90000, 30000)

	const total = 10000
	const submitters = 2
	perSubmitter := total / submitters

	var dispatched atomic.Int64
	var wg sync.WaitGroup
	weights := make([]uint64, total)
	for i := range weights {
		weights[i] = uint64(1 + (i*7)%23) // fixed, deterministic pseudo-distribution
	}

	var expectedSum uint64
	var expMu sync.Mutex
	sMax := a.MaxPUStrength()

	for s := 0; s < submitters; s++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perSubmitter; i++ {
				w := weights[base+i]
				puID, err := sched.SubmitAndDetach(func(any) {}, nil, w, 0)
				if err != nil {
					t.Error(err)
					return
				}
				dispatched.Add(1)
				strength, _ := a.PUStrength(puID)
				c := cost(w, sMax, strength)
				expMu.Lock()
				expectedSum += c
				expMu.Unlock()
			}
		}(s * perSubmitter)
	}
	wg.Wait()

	if dispatched.Load() != total {
		t.Fatalf("dispatched %d tasks, want %d", dispatched.Load(), total)
	}

	hist := sched.WorkHistories()
	var gotSum uint64
	for _, v := range hist {
		gotSum += v
	}
	if gotSum != expectedSum {
		t.Errorf("sum(history) = %d, want %d", gotSum, expectedSum)
	}
}

// Boundary: weight 0 costs 0 on every PU; first PU in order wins.
func TestBoundary_ZeroWeight(t *testing.T) {
	_, _, sched := newTestSystem(t, 10, 20, 30)
	puID, err := sched.SubmitAndDetach(func(any) {}, nil, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if puID != 0 {
		t.Errorf("zero-weight submission dispatched to PU%d, want PU0", puID)
	}
	if sched.WorkHistories()[0] != 0 {
		t.Errorf("accumulated_work changed for a zero-weight task")
	}
}

// Boundary: single PU always chosen, monotonically accumulating.
func TestBoundary_SinglePU(t *testing.T) {
	_, _, sched := newTestSystem(t, 42)
	var prev uint64
	for i := 0; i < 5; i++ {
		puID, err := sched.SubmitAndDetach(func(any) {}, nil, uint64(i+1), 0)
		if err != nil {
			t.Fatal(err)
		}
		if puID != 0 {
			t.Fatalf("single-PU system dispatched elsewhere: PU%d", puID)
		}
		cur := sched.WorkHistories()[0]
		if cur < prev {
			t.Fatalf("accumulated_work decreased: %d -> %d", prev, cur)
		}
		prev = cur
	}
}

// Invariant 6: the chosen PU's projected total must be <= every other
// PU's projected total at decision time.
func TestInvariant_SelectionIsMinimalProjection(t *testing.T) {
	a, _, sched := newTestSystem(t, 37, 91, 13, 60)
	sMax := a.MaxPUStrength()

	for i := 0; i < 50; i++ {
		weight := uint64(1 + i*3)
		before := sched.WorkHistories()
		chosen, err := sched.SubmitAndDetach(func(any) {}, nil, weight, 0)
		if err != nil {
			t.Fatal(err)
		}
		chosenStrength, _ := a.PUStrength(chosen)
		chosenProjected := before[chosen] + cost(weight, sMax, chosenStrength)
		for pu, acc := range before {
			strength, _ := a.PUStrength(pu)
			projected := acc + cost(weight, sMax, strength)
			if chosenProjected > projected {
				t.Fatalf("chosen PU%d projected %d > PU%d projected %d (weight=%d)",
					chosen, chosenProjected, pu, projected, weight)
			}
		}
	}
}

func TestOverflowPolicy_Saturate(t *testing.T) {
	a, err := arch.New(arch.Flat(1))
	if err != nil {
		t.Fatal(err)
	}
	opts := threadpool.DefaultOptions()
	opts.PinWorkers = false
	pool, err := threadpool.New(a, opts)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Shutdown()

	sched, err := New(pool, a, Options{OverflowPolicy: OverflowSaturate})
	if err != nil {
		t.Fatal(err)
	}
	sched.history[0].accumulatedWork = math.MaxUint64 - 10
	if _, err := sched.SubmitAndDetach(func(any) {}, nil, math.MaxUint64/10, 0); err != nil {
		t.Fatal(err)
	}
	if got := sched.WorkHistories()[0]; got != math.MaxUint64 {
		t.Errorf("accumulated_work = %d, want saturated at MaxUint64", got)
	}
}

func TestOverflowPolicy_Fatal(t *testing.T) {
	a, err := arch.New(arch.Flat(1))
	if err != nil {
		t.Fatal(err)
	}
	opts := threadpool.DefaultOptions()
	opts.PinWorkers = false
	pool, err := threadpool.New(a, opts)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Shutdown()

	sched, err := New(pool, a, Options{OverflowPolicy: OverflowFatal})
	if err != nil {
		t.Fatal(err)
	}
	sched.history[0].accumulatedWork = math.MaxUint64 - 10
	if _, err := sched.SubmitAndDetach(func(any) {}, nil, math.MaxUint64/10, 0); err == nil {
		t.Error("expected Overflow error under OverflowFatal policy")
	}
}
