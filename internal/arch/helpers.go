package arch

// Flat builds a TopologySpec with a single socket holding one core per
// PU, each PU given the supplied strength. This is the shape most unit
// tests and the scheduler's scenarios in spec.md use: they care about
// per-PU strength, not multi-core/multi-socket grouping.
func Flat(strengths ...uint64) TopologySpec {
	cores := make([]CoreSpec, 0, len(strengths))
	for _, s := range strengths {
		cores = append(cores, CoreSpec{NumaNode: 0, PUs: []PUSpec{{IsolatedStrength: s}}})
	}
	return TopologySpec{Sockets: []SocketSpec{{Cores: cores}}}
}

// Uniform builds a TopologySpec of n PUs, each with the given strength.
func Uniform(n int, strength uint64) TopologySpec {
	strengths := make([]uint64, n)
	for i := range strengths {
		strengths[i] = strength
	}
	return Flat(strengths...)
}
