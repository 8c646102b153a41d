package cpu

import (
	"fmt"

	"github.com/caption-ml/caption/internal/tensor"
)

// Concat joins tensors along the given axis. All other axes must agree.
func Concat(tensors []*tensor.Tensor, dim int) *tensor.Tensor {
	if len(tensors) == 0 {
		panic("concat: no tensors")
	}
	tensor.SameDevice(tensors...)
	first := tensors[0].Shape()
	if dim < 0 || dim >= len(first) {
		panic(fmt.Sprintf("concat: axis %d out of range for shape %v", dim, first))
	}

	total := 0
	for _, t := range tensors {
		s := t.Shape()
		if len(s) != len(first) {
			panic(fmt.Sprintf("concat: rank mismatch %v vs %v", first, s))
		}
		for i := range s {
			if i != dim && s[i] != first[i] {
				panic(fmt.Sprintf("concat: shape mismatch at axis %d: %v vs %v", i, first, s))
			}
		}
		total += s[dim]
	}

	outShape := first.Clone()
	outShape[dim] = total
	out := tensor.MustNew(outShape, tensors[0].Device())

	outer := 1
	for i := 0; i < dim; i++ {
		outer *= first[i]
	}
	inner := 1
	for i := dim + 1; i < len(first); i++ {
		inner *= first[i]
	}

	dst := out.Data()
	rowWidth := total * inner
	offset := 0
	for _, t := range tensors {
		width := t.Shape()[dim] * inner
		src := t.Data()
		for o := 0; o < outer; o++ {
			copy(dst[o*rowWidth+offset:o*rowWidth+offset+width], src[o*width:(o+1)*width])
		}
		offset += width
	}
	return out
}

// Narrow returns the slice [start, start+length) of x along an axis.
func Narrow(x *tensor.Tensor, dim, start, length int) *tensor.Tensor {
	shape := x.Shape()
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("narrow: axis %d out of range for shape %v", dim, shape))
	}
	if start < 0 || length <= 0 || start+length > shape[dim] {
		panic(fmt.Sprintf("narrow: range [%d,%d) invalid for axis size %d", start, start+length, shape[dim]))
	}

	outShape := shape.Clone()
	outShape[dim] = length
	out := tensor.MustNew(outShape, x.Device())

	outer := 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	inner := 1
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}

	src, dst := x.Data(), out.Data()
	srcWidth := shape[dim] * inner
	dstWidth := length * inner
	for o := 0; o < outer; o++ {
		copy(dst[o*dstWidth:(o+1)*dstWidth], src[o*srcWidth+start*inner:o*srcWidth+(start+length)*inner])
	}
	return out
}

// NarrowBackward embeds grad into a zero tensor of the original shape at
// the narrowed range.
func NarrowBackward(grad *tensor.Tensor, shape tensor.Shape, dim, start int) *tensor.Tensor {
	out := tensor.MustNew(shape, grad.Device())
	length := grad.Shape()[dim]

	outer := 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	inner := 1
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}

	src, dst := grad.Data(), out.Data()
	dstWidth := shape[dim] * inner
	srcWidth := length * inner
	for o := 0; o < outer; o++ {
		copy(dst[o*dstWidth+start*inner:o*dstWidth+(start+length)*inner], src[o*srcWidth:(o+1)*srcWidth])
	}
	return out
}

// PadRows zero-pads a [n, F] tensor to [rows, F]. Used to restore the
// full batch dimension after a timestep processed only the still-active
// prefix of a length-sorted batch.
func PadRows(x *tensor.Tensor, rows int) *tensor.Tensor {
	shape := x.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("padrows: expected 2D input, got %v", shape))
	}
	if rows < shape[0] {
		panic(fmt.Sprintf("padrows: target rows %d < input rows %d", rows, shape[0]))
	}
	out := tensor.MustNew(tensor.Shape{rows, shape[1]}, x.Device())
	copy(out.Data(), x.Data())
	return out
}

// GatherRows selects rows of a 2D tensor: out[i] = x[rows[i]].
func GatherRows(x *tensor.Tensor, rows []int) *tensor.Tensor {
	shape := x.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("gatherrows: expected 2D input, got %v", shape))
	}
	cols := shape[1]
	out := tensor.MustNew(tensor.Shape{len(rows), cols}, x.Device())
	src, dst := x.Data(), out.Data()
	for i, r := range rows {
		if r < 0 || r >= shape[0] {
			panic(fmt.Sprintf("gatherrows: row %d out of range [0,%d)", r, shape[0]))
		}
		copy(dst[i*cols:(i+1)*cols], src[r*cols:(r+1)*cols])
	}
	return out
}

// ScatterAddRows accumulates src rows into dst: dst[rows[i]] += src[i].
// Duplicate row indices accumulate, which is what embedding and packing
// backward passes need.
func ScatterAddRows(dst *tensor.Tensor, rows []int, src *tensor.Tensor) {
	cols := dst.Shape()[1]
	dd, sd := dst.Data(), src.Data()
	for i, r := range rows {
		base := r * cols
		srcBase := i * cols
		for j := 0; j < cols; j++ {
			dd[base+j] += sd[srcBase+j]
		}
	}
}
