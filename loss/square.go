package loss

// SquareLoss implements ordinary least-squares regression loss. Per
// spec.md §4.4 its sufficient statistics are Σy (the target, already a
// residual of prior predictions by the time a tree sees it) and Σ1 (the
// sample weight, always 1 here).
type SquareLoss struct{}

func (SquareLoss) Name() string { return "SquareLoss" }

func (SquareLoss) Accumulate(target, _ float64) (a, b float64) {
	return target, 1
}

func (SquareLoss) Residual(target, prediction float64) float64 {
	return target - prediction
}

var _ Function = SquareLoss{}
