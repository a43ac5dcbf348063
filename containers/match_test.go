package containers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relforge/relforge/containers"
)

func TestMatchesPartitionBoundary(t *testing.T) {
	ms := containers.Matches{
		{IxPop: 0, IxPer: 0},
		{IxPop: 0, IxPer: 1},
		{IxPop: 1, IxPer: 0},
		{IxPop: 1, IxPer: 1},
		{IxPop: 2, IxPer: 0},
	}
	boundary := ms.Partition(func(m containers.Match) bool { return m.IxPop >= 1 })
	require.Equal(t, 3, boundary)
	for _, m := range ms[:boundary] {
		assert.GreaterOrEqual(t, m.IxPop, 1)
	}
	for _, m := range ms[boundary:] {
		assert.Less(t, m.IxPop, 1)
	}
}

func TestMatchesPartitionStableOnRepeat(t *testing.T) {
	// Re-partitioning with the same predicate must yield the same
	// boundary, even though element order within a side is unspecified.
	ms := containers.Matches{
		{IxPop: 3}, {IxPop: 1}, {IxPop: 4}, {IxPop: 1}, {IxPop: 5}, {IxPop: 9},
	}
	keep := func(m containers.Match) bool { return m.IxPop > 2 }
	b1 := ms.Partition(keep)
	b2 := ms.Partition(keep)
	assert.Equal(t, b1, b2)
}

func TestMatchesSortByAscendingAndDescending(t *testing.T) {
	ms := containers.Matches{{IxPop: 3}, {IxPop: 1}, {IxPop: 2}}
	key := func(m containers.Match) float64 { return float64(m.IxPop) }

	asc := append(containers.Matches(nil), ms...)
	asc.SortBy(key, true)
	assert.Equal(t, []int{1, 2, 3}, ixPops(asc))

	desc := append(containers.Matches(nil), ms...)
	desc.SortBy(key, false)
	assert.Equal(t, []int{3, 2, 1}, ixPops(desc))
}

func TestMatchesGroupByPop(t *testing.T) {
	ms := containers.Matches{
		{IxPop: 0, IxPer: 0},
		{IxPop: 0, IxPer: 1},
		{IxPop: 2, IxPer: 0},
	}
	ranges := ms.GroupByPop()
	require.Len(t, ranges, 2)
	assert.Equal(t, containers.Range{Begin: 0, End: 2, IxPop: 0}, ranges[0])
	assert.Equal(t, containers.Range{Begin: 2, End: 3, IxPop: 2}, ranges[1])
}

func TestSplitHasCategory(t *testing.T) {
	s := containers.Split{CategoriesUsed: []int{2, 5, 9}}
	assert.True(t, s.HasCategory(5))
	assert.False(t, s.HasCategory(6))
}

func ixPops(ms containers.Matches) []int {
	out := make([]int, len(ms))
	for i, m := range ms {
		out[i] = m.IxPop
	}
	return out
}
