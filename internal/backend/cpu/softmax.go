package cpu

import (
	"fmt"
	"math"

	"github.com/caption-ml/caption/internal/parallel"
	"github.com/caption-ml/caption/internal/tensor"
)

// Softmax normalizes the last axis of x to a probability distribution,
// using the log-sum-exp trick for stability.
func Softmax(x *tensor.Tensor) *tensor.Tensor {
	shape := x.Shape()
	if len(shape) == 0 {
		panic("softmax: scalar input")
	}
	cols := shape[len(shape)-1]
	rows := x.NumElements() / cols

	out := tensor.MustNew(shape, x.Device())
	src, dst := x.Data(), out.Data()
	parallel.ForRows(rows, cols, par, func(r int) {
		row := src[r*cols : (r+1)*cols]
		outRow := dst[r*cols : (r+1)*cols]
		logSoftmaxRow(outRow, row)
		for i, v := range outRow {
			outRow[i] = float32(math.Exp(float64(v)))
		}
	})
	return out
}

// LogSoftmax returns log(softmax(x)) along the last axis.
func LogSoftmax(x *tensor.Tensor) *tensor.Tensor {
	shape := x.Shape()
	cols := shape[len(shape)-1]
	rows := x.NumElements() / cols

	out := tensor.MustNew(shape, x.Device())
	src, dst := x.Data(), out.Data()
	parallel.ForRows(rows, cols, par, func(r int) {
		logSoftmaxRow(dst[r*cols:(r+1)*cols], src[r*cols:(r+1)*cols])
	})
	return out
}

// logSoftmaxRow writes z - (max(z) + log(sum(exp(z - max(z))))) into dst.
func logSoftmaxRow(dst, z []float32) {
	maxZ := z[0]
	for _, v := range z[1:] {
		if v > maxZ {
			maxZ = v
		}
	}
	var sumExp float64
	for _, v := range z {
		sumExp += math.Exp(float64(v - maxZ))
	}
	lse := maxZ + float32(math.Log(sumExp))
	for i, v := range z {
		dst[i] = v - lse
	}
}

// SoftmaxBackward computes the input gradient of a softmax whose output
// and upstream gradient are given, along the last axis:
//
//	grad_in = y * (grad_out - sum(grad_out * y))
func SoftmaxBackward(output, grad *tensor.Tensor) *tensor.Tensor {
	if !output.Shape().Equal(grad.Shape()) {
		panic(fmt.Sprintf("softmax backward: shape mismatch %v vs %v", output.Shape(), grad.Shape()))
	}
	shape := output.Shape()
	cols := shape[len(shape)-1]
	rows := output.NumElements() / cols

	out := tensor.MustNew(shape, output.Device())
	y, g, dst := output.Data(), grad.Data(), out.Data()
	parallel.ForRows(rows, cols, par, func(r int) {
		base := r * cols
		var dot float64
		for i := 0; i < cols; i++ {
			dot += float64(g[base+i] * y[base+i])
		}
		for i := 0; i < cols; i++ {
			dst[base+i] = y[base+i] * (g[base+i] - float32(dot))
		}
	})
	return out
}
