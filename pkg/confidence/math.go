// Package confidence provides confidence score math utilities.
package confidence

import "math"

// Aggregate combines multiple confidence scores.
// Uses geometric mean to penalize low-confidence components.
func Aggregate(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}

	product := 1.0
	for _, s := range scores {
		if s <= 0 {
			return 0
		}
		product *= s
	}

	return math.Pow(product, 1.0/float64(len(scores)))
}

// Decay applies uncertainty decay to a base confidence.
// Each factor reduces confidence by 10%.
func Decay(base float64, factors int) float64 {
	if factors <= 0 {
		return base
	}
	return base * math.Pow(0.9, float64(factors))
}

// FromResidual maps an absolute residual to a score in [0, 1]: 1 at zero,
// 0.5 at the tolerance, approaching 0 as the residual grows.
func FromResidual(residual, tolerance float64) float64 {
	if tolerance <= 0 {
		if residual == 0 {
			return 1
		}
		return 0
	}
	r := math.Abs(residual) / tolerance
	return Clamp(1 / (1 + r))
}

// Clamp ensures confidence is in valid range [0, 1].
func Clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// DefaultConfidence values
const (
	HighConfidence   = 0.95
	MediumConfidence = 0.80
)
