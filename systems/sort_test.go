package systems

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/sph/components"
)

func randomEntries(rng *rand.Rand, n, real int, tableSize uint32) []components.NeighborEntry {
	entries := make([]components.NeighborEntry, n)
	for i := range entries {
		if i < real {
			entries[i] = components.NeighborEntry{ParticleID: uint32(i), CellHash: rng.Uint32() % tableSize}
		} else {
			entries[i] = components.NeighborEntry{ParticleID: uint32(i), CellHash: SentinelHash}
		}
	}
	rng.Shuffle(len(entries), func(i, j int) { entries[i], entries[j] = entries[j], entries[i] })
	return entries
}

func TestBitonicPasses_Count(t *testing.T) {
	// log2(n) * (log2(n)+1) / 2 passes.
	tests := []struct{ n, want int }{
		{2, 1},
		{4, 3},
		{8, 6},
		{1024, 55},
	}
	for _, tt := range tests {
		assert.Len(t, BitonicPasses(tt.n), tt.want, "n=%d", tt.n)
	}

	passes := BitonicPasses(8)
	assert.Equal(t, SortPass{Stage: 2, Distance: 1}, passes[0])
	assert.Equal(t, SortPass{Stage: 8, Distance: 4}, passes[3])
	assert.Equal(t, SortPass{Stage: 8, Distance: 1}, passes[5])
}

func TestBitonicSort_NonDecreasing(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, n := range []int{2, 16, 256, 1024} {
		entries := randomEntries(rng, n, n, 64)
		BitonicSort(entries)
		require.True(t, IsSorted(entries), "n=%d", n)
		for i := 1; i < n; i++ {
			require.False(t, entries[i].Less(entries[i-1]), "n=%d i=%d", n, i)
		}
	}
}

func TestBitonicSort_PaddingSortsLast(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	entries := randomEntries(rng, 1024, 1000, 1024)
	BitonicSort(entries)

	for i := 0; i < 1000; i++ {
		assert.NotEqual(t, uint32(SentinelHash), entries[i].CellHash)
		assert.Less(t, entries[i].ParticleID, uint32(1000))
	}
	for i := 1000; i < 1024; i++ {
		assert.Equal(t, uint32(SentinelHash), entries[i].CellHash)
		assert.GreaterOrEqual(t, entries[i].ParticleID, uint32(1000))
	}
}

func TestBitonicSort_Idempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	entries := randomEntries(rng, 512, 400, 128)
	BitonicSort(entries)

	again := make([]components.NeighborEntry, len(entries))
	copy(again, entries)
	BitonicSort(again)

	assert.Equal(t, entries, again)
}

func TestBitonicSort_PermutationPreserved(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	entries := randomEntries(rng, 256, 256, 16)
	want := make(map[components.NeighborEntry]int)
	for _, e := range entries {
		want[e]++
	}

	BitonicSort(entries)

	got := make(map[components.NeighborEntry]int)
	for _, e := range entries {
		got[e]++
	}
	assert.Equal(t, want, got)
}

func TestBitonicStep_ChunkedMatchesWhole(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	whole := randomEntries(rng, 256, 200, 32)
	chunked := make([]components.NeighborEntry, len(whole))
	copy(chunked, whole)

	BitonicSort(whole)
	for _, pass := range BitonicPasses(len(chunked)) {
		for i0 := 0; i0 < len(chunked); i0 += 48 {
			BitonicStep(chunked, pass, i0, min(i0+48, len(chunked)))
		}
	}

	assert.Equal(t, whole, chunked)
}

func BenchmarkBitonicSort1024(b *testing.B) {
	rng := rand.New(rand.NewSource(6))
	src := randomEntries(rng, 1024, 1000, 1024)
	entries := make([]components.NeighborEntry, len(src))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		copy(entries, src)
		BitonicSort(entries)
	}
}

func BenchmarkBitonicSort16384(b *testing.B) {
	rng := rand.New(rand.NewSource(7))
	src := randomEntries(rng, 16384, 16000, 16384)
	entries := make([]components.NeighborEntry, len(src))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		copy(entries, src)
		BitonicSort(entries)
	}
}
