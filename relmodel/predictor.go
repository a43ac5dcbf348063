package relmodel

// Predictor is the minimal interface the ensemble's final step (spec.md
// §4.6 "After N, feed the feature matrix... to the configured
// predictor's own fit") requires of an external predictor library —
// explicitly out of scope per spec.md §1 ("predictor wrappers... treated
// as external collaborators"). relmodel ships one trivial implementation
// (LinearPredictor) sufficient to drive Model.Fit end to end; a real
// gradient-boosted-tree predictor library plugs in by implementing this
// interface instead.
type Predictor interface {
	Fit(features [][]float64, targets []float64) error
	Predict(features []float64) float64
	// Importance returns one importance score per input feature column,
	// used by the ensemble's feature-selection variant (spec.md §4.6
	// "rank trees by a predictor-supplied importance vector").
	Importance() []float64
}

// LinearPredictorSnapshot is LinearPredictor's persisted form (spec.md
// §6's artifact document stores one of these, via artifact.PredictorSnapshot,
// per target whose feature-selection pass kept at least one tree).
type LinearPredictorSnapshot struct {
	Weights   []float64
	Intercept float64
}

// Snapshot captures p's fitted state.
func (p *LinearPredictor) Snapshot() LinearPredictorSnapshot {
	return LinearPredictorSnapshot{Weights: p.weights, Intercept: p.intercept}
}

// LinearPredictorFromSnapshot rebuilds a LinearPredictor previously
// captured by Snapshot.
func LinearPredictorFromSnapshot(s LinearPredictorSnapshot) *LinearPredictor {
	return &LinearPredictor{weights: s.Weights, intercept: s.Intercept}
}

// LinearPredictor fits an ordinary multivariate least-squares regression
// via the normal equations — adequate for small feature counts (one
// column per boosted tree, spec.md §4.6), and good enough to exercise
// Model.Fit's wiring without pulling in an external predictor library.
type LinearPredictor struct {
	weights   []float64
	intercept float64
}

func (p *LinearPredictor) Fit(features [][]float64, targets []float64) error {
	n := len(targets)
	if n == 0 {
		p.weights, p.intercept = nil, 0
		return nil
	}
	k := len(features[0])
	// Center columns and solve the k x k normal equations via Gaussian
	// elimination; k is the number of boosted trees, always small.
	means := make([]float64, k)
	yMean := 0.0
	for _, y := range targets {
		yMean += y
	}
	yMean /= float64(n)
	for _, row := range features {
		for j, x := range row {
			means[j] += x
		}
	}
	for j := range means {
		means[j] /= float64(n)
	}

	a := make([][]float64, k)
	b := make([]float64, k)
	for i := range a {
		a[i] = make([]float64, k)
	}
	for i, row := range features {
		dy := targets[i] - yMean
		for j := 0; j < k; j++ {
			dj := row[j] - means[j]
			b[j] += dj * dy
			for l := 0; l < k; l++ {
				a[j][l] += dj * (row[l] - means[l])
			}
		}
	}

	w := solveSymmetric(a, b)
	p.weights = w
	p.intercept = yMean
	for j, wj := range w {
		p.intercept -= wj * means[j]
	}
	return nil
}

func (p *LinearPredictor) Predict(features []float64) float64 {
	out := p.intercept
	for i, w := range p.weights {
		if i < len(features) {
			out += w * features[i]
		}
	}
	return out
}

func (p *LinearPredictor) Importance() []float64 {
	out := make([]float64, len(p.weights))
	for i, w := range p.weights {
		if w < 0 {
			w = -w
		}
		out[i] = w
	}
	return out
}

// solveSymmetric solves a*x = b by Gaussian elimination with partial
// pivoting, returning a zero vector (rather than failing) for a
// singular system — collinear boosted-tree outputs are common when a
// tree contributes nothing new, and spec.md §4.6 already clamps
// NaN/Inf regressor output to zero elsewhere, so the same fail-soft
// convention applies here.
func solveSymmetric(a [][]float64, b []float64) []float64 {
	n := len(b)
	m := make([][]float64, n)
	for i := range m {
		m[i] = append([]float64(nil), a[i]...)
	}
	rhs := append([]float64(nil), b...)

	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if abs(m[r][col]) > abs(m[pivot][col]) {
				pivot = r
			}
		}
		if abs(m[pivot][col]) < 1e-12 {
			return make([]float64, n)
		}
		m[col], m[pivot] = m[pivot], m[col]
		rhs[col], rhs[pivot] = rhs[pivot], rhs[col]

		pv := m[col][col]
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			factor := m[r][col] / pv
			if factor == 0 {
				continue
			}
			for c := col; c < n; c++ {
				m[r][c] -= factor * m[col][c]
			}
			rhs[r] -= factor * rhs[col]
		}
	}

	out := make([]float64, n)
	for i := range out {
		if m[i][i] == 0 {
			continue
		}
		out[i] = rhs[i] / m[i][i]
	}
	return out
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
