// Package reduce defines the collective-operation extension point
// spec.md §5 and §9 describe: the core never hardcodes a distributed
// message-passing layer, it only requires a Reducer able to combine a
// value across whatever worker topology the embedder runs (a single
// process by default).
package reduce

// Reducer performs collective reductions across whatever concurrent
// workers the embedder runs. All calls are expected to block until
// every worker reaches the collective op, matching spec.md §5's
// "reducer calls... are collective across workers and may block until
// every worker reaches them".
type Reducer interface {
	Min(local float64) float64
	Max(local float64) float64
	Sum(local float64) float64
	// MaxInt8 reduces a per-worker int8 used for categorical-presence
	// flags (spec.md §5), returning the maximum across workers.
	MaxInt8(local int8) int8
}

// SingleProcess is the default Reducer: every call is a no-op identity
// reduce, since there is exactly one worker's view of `local` to
// combine. Any MPI-like backend plugs in by implementing Reducer
// itself (design note §9).
type SingleProcess struct{}

func (SingleProcess) Min(local float64) float64 { return local }
func (SingleProcess) Max(local float64) float64 { return local }
func (SingleProcess) Sum(local float64) float64 { return local }
func (SingleProcess) MaxInt8(local int8) int8   { return local }

var _ Reducer = SingleProcess{}
