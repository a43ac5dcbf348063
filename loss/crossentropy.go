package loss

import "math"

// CrossEntropyLoss implements binary classification loss. Per spec.md
// §4.4 its sufficient statistics are Σ(y-p) and Σp(1-p) at the current
// prediction p, where p is the sigmoid of the running logit sum.
type CrossEntropyLoss struct{}

func (CrossEntropyLoss) Name() string { return "CrossEntropyLoss" }

func (CrossEntropyLoss) Accumulate(target, logit float64) (a, b float64) {
	p := sigmoid(logit)
	return target - p, p * (1 - p)
}

func (CrossEntropyLoss) Residual(target, logit float64) float64 {
	return target - sigmoid(logit)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

var _ Function = CrossEntropyLoss{}
