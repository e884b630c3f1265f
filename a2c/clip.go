package a2c

import (
	"math"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// ClipNorm rescales grad so that its global L2 norm,
// measured across every parameter, does not exceed max.
//
// It returns the norm measured before clipping.
func ClipNorm(grad anydiff.Grad, max float64) float64 {
	var sqSum float64
	var c anyvec.Creator
	for _, vec := range grad {
		c = vec.Creator()
		sqSum += numericToFloat(vec.Dot(vec))
	}
	norm := math.Sqrt(sqSum)
	if norm > max {
		grad.Scale(c.MakeNumeric(max / norm))
	}
	return norm
}
