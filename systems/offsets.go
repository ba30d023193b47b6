package systems

import (
	"math"

	"github.com/pthm-cable/sph/components"
)

const emptySlot = math.MaxUint32

// CellOffsets maps a cell key to the half-open range of sorted entries that
// share it. Keys with no particles hold no range.
type CellOffsets struct {
	start []uint32
	end   []uint32
}

// NewCellOffsets allocates a table addressable by keys in [0, size).
func NewCellOffsets(size int) *CellOffsets {
	t := &CellOffsets{
		start: make([]uint32, size),
		end:   make([]uint32, size),
	}
	t.ClearRange(0, size)
	return t
}

// Len returns the number of addressable keys.
func (t *CellOffsets) Len() int {
	return len(t.start)
}

// ClearRange empties slots [i0, i1). Must complete before BuildRange.
func (t *CellOffsets) ClearRange(i0, i1 int) {
	for i := i0; i < i1; i++ {
		t.start[i] = emptySlot
		t.end[i] = 0
	}
}

// BuildRange records block boundaries for sorted positions [i0, i1). Each
// position only looks at its immediate neighbors, and each slot is written
// by exactly one position, so ranges can be built concurrently.
func (t *CellOffsets) BuildRange(sorted []components.NeighborEntry, i0, i1 int) {
	n := len(sorted)
	for i := i0; i < i1; i++ {
		h := sorted[i].CellHash
		if h == SentinelHash {
			continue
		}
		if i == 0 || sorted[i-1].CellHash != h {
			t.start[h] = uint32(i)
		}
		if i == n-1 || sorted[i+1].CellHash != h {
			t.end[h] = uint32(i + 1)
		}
	}
}

// Range returns the sorted index range holding key. Unknown keys give an
// empty range.
func (t *CellOffsets) Range(key uint32) (start, end int) {
	if int(key) >= len(t.start) {
		return 0, 0
	}
	s := t.start[key]
	if s == emptySlot {
		return 0, 0
	}
	return int(s), int(t.end[key])
}
