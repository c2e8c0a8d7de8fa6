// Package arch models the compute topology the scheduler dispatches
// onto: sockets, cores, processing units (PUs), caches and NUMA nodes.
// The graph is built once from a TopologySpec and is treated as
// immutable for the remainder of the run — every query below is total
// once construction succeeds.
//
// Sockets own Cores; Cores own PUs and hold non-owning references to
// their cache levels and NUMA node. Cache levels form a DAG with
// exactly one lower parent per level, modeled as a flat table of
// indices inside Architecture rather than raw back-pointers, so the
// graph stays acyclic and trivially garbage-collected.
//
// Author: heterosched contributors
// License: Apache-2.0
package arch

import (
	"sort"

	"github.com/arcana-lab/heterosched/internal/errs"
)

// PU is a logical processor. Attributes are immutable post-construction.
type PU struct {
	ID               int
	IsolatedStrength uint64
	CoreIndex        int
}

// Cache describes one cache level shared by a set of PUs, with a
// back-reference to its parent cache (index into Architecture.caches,
// or -1 at the root level).
type Cache struct {
	Level      int
	PUIndices  []int
	ParentIdx  int
	ChildIdxs  []int
}

// Core is a physical core owning one or more PUs.
type Core struct {
	Index      int
	SocketIdx  int
	NumaNode   int
	PUIndices  []int
	CacheIdxs  []int
}

// Socket is a physical package owning one or more Cores.
type Socket struct {
	Index      int
	CoreIndices []int
	CacheIdxs  []int
}

// PUSpec describes one PU in the input topology.
type PUSpec struct {
	IsolatedStrength uint64
}

// CoreSpec describes one core and the PUs it owns.
type CoreSpec struct {
	NumaNode int
	PUs      []PUSpec
}

// SocketSpec describes one socket and the cores it owns.
type SocketSpec struct {
	Cores []CoreSpec
}

// CacheSpec describes one cache level shared by a contiguous range of
// PUs (by flattened PU index) within a socket, linked to the cache
// level directly below it.
type CacheSpec struct {
	Level       int
	PUIndices   []int
	ParentLevel int // -1 if this is the lowest modeled level
}

// TopologySpec is the explicit, structured topology description
// Architecture is built from. No hardware discovery is performed by
// this package; a caller MAY populate a TopologySpec from a system
// topology library, but that is outside this core's scope.
type TopologySpec struct {
	Sockets []SocketSpec
	Caches  []CacheSpec
}

// Architecture is the root aggregate: a read-only, queryable
// description of the topology plus the relative-strength metadata the
// scheduler needs.
type Architecture struct {
	sockets []Socket
	cores   []Core
	pus     []PU
	caches  []Cache

	maxPUStrength uint64
	puIndexByID   map[int]int
}

// New builds an Architecture from spec. Fails with errs.ErrEmptyTopology
// if spec contains zero PUs.
func New(spec TopologySpec) (*Architecture, error) {
	a := &Architecture{puIndexByID: make(map[int]int)}

	for sIdx, sSpec := range spec.Sockets {
		sock := Socket{Index: sIdx}
		for _, cSpec := range sSpec.Cores {
			coreIdx := len(a.cores)
			core := Core{Index: coreIdx, SocketIdx: sIdx, NumaNode: cSpec.NumaNode}
			for _, puSpec := range cSpec.PUs {
				strength := puSpec.IsolatedStrength
				if strength < 1 {
					strength = 1
				}
				puID := len(a.pus)
				a.pus = append(a.pus, PU{ID: puID, IsolatedStrength: strength, CoreIndex: coreIdx})
				a.puIndexByID[puID] = puID
				core.PUIndices = append(core.PUIndices, puID)
				if strength > a.maxPUStrength {
					a.maxPUStrength = strength
				}
			}
			a.cores = append(a.cores, core)
			sock.CoreIndices = append(sock.CoreIndices, coreIdx)
		}
		a.sockets = append(a.sockets, sock)
	}

	if len(a.pus) == 0 {
		return nil, errs.EmptyTopology()
	}

	if err := a.buildCaches(spec.Caches); err != nil {
		return nil, err
	}

	return a, nil
}

func (a *Architecture) buildCaches(specs []CacheSpec) error {
	levelToIdx := make(map[int]int, len(specs))
	for _, cs := range specs {
		idx := len(a.caches)
		cache := Cache{Level: cs.Level, PUIndices: append([]int(nil), cs.PUIndices...), ParentIdx: -1}
		a.caches = append(a.caches, cache)
		levelToIdx[cs.Level] = idx
	}
	for _, cs := range specs {
		if cs.ParentLevel < 0 {
			continue
		}
		childIdx, ok := levelToIdx[cs.Level]
		if !ok {
			continue
		}
		parentIdx, ok := levelToIdx[cs.ParentLevel]
		if !ok {
			continue
		}
		a.caches[childIdx].ParentIdx = parentIdx
		// Bidirectional, idempotent: only append the back-link once.
		already := false
		for _, c := range a.caches[parentIdx].ChildIdxs {
			if c == childIdx {
				already = true
				break
			}
		}
		if !already {
			a.caches[parentIdx].ChildIdxs = append(a.caches[parentIdx].ChildIdxs, childIdx)
		}
	}

	// Attach caches to the cores/sockets whose PUs they cover.
	for cIdx := range a.caches {
		for _, puID := range a.caches[cIdx].PUIndices {
			if puID < 0 || puID >= len(a.pus) {
				continue
			}
			coreIdx := a.pus[puID].CoreIndex
			a.cores[coreIdx].CacheIdxs = appendUnique(a.cores[coreIdx].CacheIdxs, cIdx)
			sockIdx := a.cores[coreIdx].SocketIdx
			a.sockets[sockIdx].CacheIdxs = appendUnique(a.sockets[sockIdx].CacheIdxs, cIdx)
		}
	}
	return nil
}

func appendUnique(s []int, v int) []int {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}

// PUs returns the flattened, ordered sequence of all PUs: socket, then
// core, then PU, matching insertion order.
func (a *Architecture) PUs() []*PU {
	out := make([]*PU, len(a.pus))
	for i := range a.pus {
		out[i] = &a.pus[i]
	}
	return out
}

// NumPUs returns the total PU count.
func (a *Architecture) NumPUs() int { return len(a.pus) }

// NumCores returns the total core count.
func (a *Architecture) NumCores() int { return len(a.cores) }

// MaxPUStrength returns the maximum isolated_strength observed at
// build time, used by the scheduler to normalize costs.
func (a *Architecture) MaxPUStrength() uint64 { return a.maxPUStrength }

// PUStrength returns the isolated strength of puID, or errs.ErrUnknownPU
// if puID was never registered.
func (a *Architecture) PUStrength(puID int) (uint64, error) {
	if puID < 0 || puID >= len(a.pus) {
		return 0, errs.UnknownPU(puID)
	}
	return a.pus[puID].IsolatedStrength, nil
}

// NumaNodeOf returns the NUMA node owning puID's core. Advisory only —
// never consulted by the scheduler's placement decision.
func (a *Architecture) NumaNodeOf(puID int) (int, error) {
	if puID < 0 || puID >= len(a.pus) {
		return 0, errs.UnknownPU(puID)
	}
	return a.cores[a.pus[puID].CoreIndex].NumaNode, nil
}

// CacheLevelsOf returns the cache levels covering puID, ordered from
// lowest to highest level. Exposed for diagnostics and tests; never
// consulted by the scheduler.
func (a *Architecture) CacheLevelsOf(puID int) ([]*Cache, error) {
	if puID < 0 || puID >= len(a.pus) {
		return nil, errs.UnknownPU(puID)
	}
	coreIdx := a.pus[puID].CoreIndex
	out := make([]*Cache, 0, len(a.cores[coreIdx].CacheIdxs))
	for _, cIdx := range a.cores[coreIdx].CacheIdxs {
		out = append(out, &a.caches[cIdx])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out, nil
}

// Sockets returns the architecture's sockets in build order.
func (a *Architecture) Sockets() []*Socket {
	out := make([]*Socket, len(a.sockets))
	for i := range a.sockets {
		out[i] = &a.sockets[i]
	}
	return out
}

// Cores returns the architecture's cores in build order.
func (a *Architecture) Cores() []*Core {
	out := make([]*Core, len(a.cores))
	for i := range a.cores {
		out[i] = &a.cores[i]
	}
	return out
}
