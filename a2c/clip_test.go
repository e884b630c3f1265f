package a2c

import (
	"math"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestClipNorm(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	v1 := anydiff.NewVar(c.MakeVector(2))
	v2 := anydiff.NewVar(c.MakeVector(2))
	grad := anydiff.Grad{
		v1: c.MakeVectorData([]float64{3, 4}),
		v2: c.MakeVectorData([]float64{12, 0}),
	}

	// Global norm is sqrt(9+16+144) = 13.
	norm := ClipNorm(grad, 5)
	if math.Abs(norm-13) > 1e-9 {
		t.Errorf("expected pre-clip norm 13 but got %v", norm)
	}

	var clippedSq float64
	for _, vec := range grad {
		for _, x := range vec.Data().([]float64) {
			clippedSq += x * x
		}
	}
	if math.Abs(math.Sqrt(clippedSq)-5) > 1e-9 {
		t.Errorf("expected post-clip norm 5 but got %v",
			math.Sqrt(clippedSq))
	}
}

func TestClipNormBelowMax(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	v := anydiff.NewVar(c.MakeVector(2))
	grad := anydiff.Grad{
		v: c.MakeVectorData([]float64{3, 4}),
	}

	norm := ClipNorm(grad, 40)
	if math.Abs(norm-5) > 1e-9 {
		t.Errorf("expected norm 5 but got %v", norm)
	}
	data := grad[v].Data().([]float64)
	if data[0] != 3 || data[1] != 4 {
		t.Errorf("gradient should be unchanged but got %v", data)
	}
}
