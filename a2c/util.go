package a2c

import (
	"fmt"

	"github.com/unixpickle/anyvec"
)

func vectorToFloats(vec anyvec.Vector) []float64 {
	switch data := vec.Data().(type) {
	case []float32:
		res := make([]float64, len(data))
		for i, x := range data {
			res[i] = float64(x)
		}
		return res
	case []float64:
		return data
	default:
		panic(fmt.Sprintf("unsupported numeric type: %T", data))
	}
}

func numericToFloat(num anyvec.Numeric) float64 {
	switch num := num.(type) {
	case float32:
		return float64(num)
	case float64:
		return num
	default:
		panic(fmt.Sprintf("unsupported numeric type: %T", num))
	}
}
