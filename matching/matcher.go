// Package matching builds match arrays: for a population row, the set
// of peripheral rows sharing its join key and falling within its
// time-stamp window (spec.md §4.1).
package matching

import (
	"sort"
	"sync"

	"github.com/relforge/relforge/containers"
	"github.com/relforge/relforge/relerrors"
	"github.com/relforge/relforge/schema"
)

// timeIndexed is one join key's peripheral rows, sorted by time stamp
// ascending — sorted once so a window lookup is a pair of binary
// searches.
type timeIndexed struct {
	rows []int
	ts   []float64
}

// Matcher is the join-key → time-sorted-row-list index of spec.md §4.1.
// It is built lazily on first use (OnceCell semantics, spec.md §5) and,
// once built, is shared immutable across worker goroutines.
type Matcher struct {
	per   schema.View
	nJoin int // number of join-key columns considered (composite key)

	once    sync.Once
	buildFn func()
	index   map[string]*timeIndexed
	hasTS   bool
}

// New constructs a Matcher over a peripheral view. nJoin is the number
// of leading join-key columns (0, 1, col) used to form the composite
// join key; hasTimeStamp indicates whether both tables carry time
// stamps (if not, the upper time bound is open-ended, spec.md §4.1).
func New(per schema.View, nJoin int, hasTimeStamp bool) (*Matcher, error) {
	if nJoin == 0 {
		return nil, relerrors.ErrInvalidData.New("peripheral table has no join-key column")
	}
	m := &Matcher{per: per, nJoin: nJoin, hasTS: hasTimeStamp}
	return m, nil
}

func (m *Matcher) build() {
	m.once.Do(func() {
		grouped := map[string][]int{}
		n := m.per.NRows()
		for row := 0; row < n; row++ {
			key := joinKey(m.per, row, m.nJoin)
			grouped[key] = append(grouped[key], row)
		}
		idx := make(map[string]*timeIndexed, len(grouped))
		for key, rows := range grouped {
			ts := make([]float64, len(rows))
			if m.hasTS {
				for i, r := range rows {
					ts[i] = m.per.TimeStamp(r)
				}
				sort.Sort(byTS{rows, ts})
			}
			idx[key] = &timeIndexed{rows: rows, ts: ts}
		}
		m.index = idx
	})
}

type byTS struct {
	rows []int
	ts   []float64
}

func (b byTS) Len() int           { return len(b.rows) }
func (b byTS) Swap(i, j int)      { b.rows[i], b.rows[j] = b.rows[j], b.rows[i]; b.ts[i], b.ts[j] = b.ts[j], b.ts[i] }
func (b byTS) Less(i, j int) bool { return b.ts[i] < b.ts[j] }

func joinKey(v schema.View, row, nJoin int) string {
	// A composite key encoded as fixed-width big-endian ints; join-key
	// columns are int-coded (spec.md §3), so this never collides across
	// distinct tuples and is cheap to use as a map key.
	buf := make([]byte, nJoin*8)
	for c := 0; c < nJoin; c++ {
		k := uint64(v.JoinKey(row, c))
		for b := 0; b < 8; b++ {
			buf[c*8+b] = byte(k >> (8 * b))
		}
	}
	return string(buf)
}

// BuildMatches returns every peripheral row matching popView's join key
// at popRow, within [popTime-delta, popTime] when delta > 0 (delta <= 0
// or no time stamps means no lower bound), and never after popTime
// (spec.md §4.1). Ordering among the returned rows is stable within one
// call but otherwise unspecified.
func (m *Matcher) BuildMatches(popView schema.View, popRow int, delta float64) []int {
	m.build()
	key := joinKey(popView, popRow, m.nJoin)
	ti, ok := m.index[key]
	if !ok {
		return nil
	}
	if !m.hasTS {
		return append([]int(nil), ti.rows...)
	}

	tPop := popView.TimeStamp(popRow)
	// upper bound: last row with ts <= tPop
	hi := sort.Search(len(ti.ts), func(i int) bool { return ti.ts[i] > tPop })
	lo := 0
	if delta > 0 {
		lower := tPop - delta
		lo = sort.Search(hi, func(i int) bool { return ti.ts[i] >= lower })
	}
	out := make([]int, hi-lo)
	copy(out, ti.rows[lo:hi])
	return out
}

// BuildFullMatchArray concatenates BuildMatches over every population
// row, preserving per-pop-row contiguity (spec.md §4.1) so a tree
// operating on the full array may still sub-select rows for one pop
// row via Matches.GroupByPop.
func (m *Matcher) BuildFullMatchArray(popView schema.View, delta float64) containers.Matches {
	m.build()
	n := popView.NRows()
	var out containers.Matches
	for row := 0; row < n; row++ {
		for _, per := range m.BuildMatches(popView, row, delta) {
			out = append(out, containers.Match{IxPop: row, IxPer: per})
		}
	}
	return out
}
