package critical_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relforge/relforge/containers"
	"github.com/relforge/relforge/critical"
	"github.com/relforge/relforge/partition"
	"github.com/relforge/relforge/reduce"
	"github.com/relforge/relforge/relfixture"
)

func TestValuesSqrtNCandidates(t *testing.T) {
	pop := relfixture.New(1).WithJoinKey([]int{0})
	per := relfixture.New(16).
		WithNumerical("amount", "", []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}).
		WithJoinKey(make([]int, 16))
	v := partition.Views{Pop: pop, Per: per}
	s := containers.Split{DataUsed: containers.NumericalPer, ColumnPer: 0}

	ms := make(containers.Matches, 16)
	for i := range ms {
		ms[i] = containers.Match{IxPer: i}
	}
	cvs := critical.Values(s, v, ms, 0, len(ms), false, nil)
	// ceil(sqrt(16)) == 4, minus possible duplicate collapsing, at most 3
	// interior candidates are produced.
	assert.LessOrEqual(t, len(cvs), 3)
	for _, cv := range cvs {
		assert.Greater(t, cv, 0.0)
		assert.Less(t, cv, 15.0)
	}
}

func TestValuesDiscreteRoundsUp(t *testing.T) {
	pop := relfixture.New(1).WithJoinKey([]int{0})
	per := relfixture.New(4).
		WithNumerical("amount", "", []float64{0, 1, 2, 3}).
		WithJoinKey(make([]int, 4))
	v := partition.Views{Pop: pop, Per: per}
	s := containers.Split{DataUsed: containers.NumericalPer, ColumnPer: 0}
	ms := containers.Matches{{IxPer: 0}, {IxPer: 1}, {IxPer: 2}, {IxPer: 3}}
	cvs := critical.Values(s, v, ms, 0, len(ms), true, nil)
	for _, cv := range cvs {
		assert.Equal(t, cv, float64(int(cv)))
	}
}

func TestValuesWithReducer(t *testing.T) {
	pop := relfixture.New(1).WithJoinKey([]int{0})
	per := relfixture.New(2).
		WithNumerical("amount", "", []float64{5, 10}).
		WithJoinKey(make([]int, 2))
	v := partition.Views{Pop: pop, Per: per}
	s := containers.Split{DataUsed: containers.NumericalPer, ColumnPer: 0}
	ms := containers.Matches{{IxPer: 0}, {IxPer: 1}}
	r := widerReducer{lo: -100, hi: 100}
	cvs := critical.Values(s, v, ms, 0, len(ms), false, r)
	require.NotEmpty(t, cvs)
	for _, cv := range cvs {
		assert.Greater(t, cv, -100.0)
		assert.Less(t, cv, 100.0)
	}
}

type widerReducer struct{ lo, hi float64 }

func (w widerReducer) Min(local float64) float64 { return w.lo }
func (w widerReducer) Max(local float64) float64 { return w.hi }
func (w widerReducer) Sum(local float64) float64 { return local }
func (w widerReducer) MaxInt8(local int8) int8   { return local }

var _ reduce.Reducer = widerReducer{}

func TestIndexPointersBucketsMonotonic(t *testing.T) {
	pop := relfixture.New(1).WithJoinKey([]int{0})
	per := relfixture.New(6).
		WithNumerical("amount", "", []float64{0, 1, 2, 3, 4, 5}).
		WithJoinKey(make([]int, 6))
	v := partition.Views{Pop: pop, Per: per}
	s := containers.Split{DataUsed: containers.NumericalPer, ColumnPer: 0}
	ms := containers.Matches{{IxPer: 0}, {IxPer: 1}, {IxPer: 2}, {IxPer: 3}, {IxPer: 4}, {IxPer: 5}}
	ms.SortBy(func(m containers.Match) float64 { return partition.Value(s, v, m) }, true)

	b := critical.Binner{K: 3}
	indptr, err := b.IndexPointers(s, v, ms, 0, len(ms))
	require.NoError(t, err)
	require.Len(t, indptr, 4)
	assert.Equal(t, 0, indptr[0])
	assert.Equal(t, 6, indptr[3])
	for i := 1; i < len(indptr); i++ {
		assert.GreaterOrEqual(t, indptr[i], indptr[i-1])
	}
}

func TestBinByRownumDistributesRemainder(t *testing.T) {
	indptr, err := critical.BinByRownum(0, 10, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 7, 10}, indptr[1:])
}

func TestIndexPointersRejectsOverMaxBins(t *testing.T) {
	pop := relfixture.New(1).WithJoinKey([]int{0})
	per := relfixture.New(1).WithNumerical("amount", "", []float64{1}).WithJoinKey([]int{0})
	v := partition.Views{Pop: pop, Per: per}
	s := containers.Split{DataUsed: containers.NumericalPer, ColumnPer: 0}
	ms := containers.Matches{{IxPer: 0}}
	b := critical.Binner{K: critical.MaxBins + 1}
	_, err := b.IndexPointers(s, v, ms, 0, len(ms))
	assert.Error(t, err)
}
