package cpu

import (
	"fmt"
	"math"

	"github.com/caption-ml/caption/internal/tensor"
)

// Sum reduces all elements to a single-element tensor.
func Sum(x *tensor.Tensor) *tensor.Tensor {
	var total float64
	for _, v := range x.Data() {
		total += float64(v)
	}
	out := tensor.MustNew(tensor.Shape{1}, x.Device())
	out.Data()[0] = float32(total)
	return out
}

// Mean reduces all elements to their arithmetic mean.
func Mean(x *tensor.Tensor) *tensor.Tensor {
	out := Sum(x)
	out.Data()[0] /= float32(x.NumElements())
	return out
}

// SumDim sums along one axis. With keepDim the reduced axis stays as
// size 1, otherwise it is removed.
func SumDim(x *tensor.Tensor, dim int, keepDim bool) *tensor.Tensor {
	shape := x.Shape()
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("sumdim: axis %d out of range for shape %v", dim, shape))
	}

	outer := 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	reduced := shape[dim]
	inner := 1
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}

	outShape := make(tensor.Shape, 0, len(shape))
	for i, d := range shape {
		switch {
		case i != dim:
			outShape = append(outShape, d)
		case keepDim:
			outShape = append(outShape, 1)
		}
	}
	if len(outShape) == 0 {
		outShape = tensor.Shape{1}
	}

	out := tensor.MustNew(outShape, x.Device())
	src, dst := x.Data(), out.Data()
	for o := 0; o < outer; o++ {
		for r := 0; r < reduced; r++ {
			base := (o*reduced + r) * inner
			outBase := o * inner
			for i := 0; i < inner; i++ {
				dst[outBase+i] += src[base+i]
			}
		}
	}
	return out
}

// SpreadDim broadcasts grad back along a reduced axis, producing a
// tensor of the given original shape. Inverse of SumDim for backward
// passes.
func SpreadDim(grad *tensor.Tensor, shape tensor.Shape, dim int) *tensor.Tensor {
	outer := 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	reduced := shape[dim]
	inner := 1
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	if grad.NumElements() != outer*inner {
		panic(fmt.Sprintf("spreaddim: grad has %d elements, expected %d", grad.NumElements(), outer*inner))
	}

	out := tensor.MustNew(shape, grad.Device())
	src, dst := grad.Data(), out.Data()
	for o := 0; o < outer; o++ {
		for r := 0; r < reduced; r++ {
			base := (o*reduced + r) * inner
			srcBase := o * inner
			copy(dst[base:base+inner], src[srcBase:srcBase+inner])
		}
	}
	return out
}

// HasNonFinite reports whether the tensor contains NaN or Inf values.
func HasNonFinite(x *tensor.Tensor) bool {
	for _, v := range x.Data() {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return true
		}
	}
	return false
}
