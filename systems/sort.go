package systems

import "github.com/pthm-cable/sph/components"

// SortPass is one compare-and-swap round of the bitonic network.
type SortPass struct {
	Stage    int // size of the bitonic sequences being merged
	Distance int // index distance between compared elements
}

// BitonicPasses returns the fixed pass sequence for an array of length n.
// n must be a power of two.
func BitonicPasses(n int) []SortPass {
	var passes []SortPass
	for stage := 2; stage <= n; stage <<= 1 {
		for dist := stage >> 1; dist > 0; dist >>= 1 {
			passes = append(passes, SortPass{Stage: stage, Distance: dist})
		}
	}
	return passes
}

// BitonicStep runs one pass over indices [i0, i1). Each pair is owned by its
// lower index, so disjoint ranges can run concurrently within a pass.
func BitonicStep(entries []components.NeighborEntry, pass SortPass, i0, i1 int) {
	for i := i0; i < i1; i++ {
		l := i ^ pass.Distance
		if l <= i {
			continue
		}
		a, b := entries[i], entries[l]
		ascending := i&pass.Stage == 0
		if ascending == b.Less(a) {
			entries[i], entries[l] = b, a
		}
	}
}

// BitonicSort sorts entries in place on the calling goroutine.
func BitonicSort(entries []components.NeighborEntry) {
	for _, pass := range BitonicPasses(len(entries)) {
		BitonicStep(entries, pass, 0, len(entries))
	}
}

// IsSorted reports whether entries are in non-decreasing hash order.
func IsSorted(entries []components.NeighborEntry) bool {
	for i := 1; i < len(entries); i++ {
		if entries[i].CellHash < entries[i-1].CellHash {
			return false
		}
	}
	return true
}
