package cpu

import (
	"fmt"

	"github.com/caption-ml/caption/internal/parallel"
	"github.com/caption-ml/caption/internal/tensor"
)

// MatMul multiplies two 2D tensors: [M, K] @ [K, N] -> [M, N].
func MatMul(a, b *tensor.Tensor) *tensor.Tensor {
	tensor.SameDevice(a, b)
	as, bs := a.Shape(), b.Shape()
	if len(as) != 2 || len(bs) != 2 {
		panic(fmt.Sprintf("matmul: expected 2D operands, got %v @ %v", as, bs))
	}
	if as[1] != bs[0] {
		panic(fmt.Sprintf("matmul: inner dimensions differ: %v @ %v", as, bs))
	}

	m, k, n := as[0], as[1], bs[1]
	out := tensor.MustNew(tensor.Shape{m, n}, a.Device())
	ad, bd, od := a.Data(), b.Data(), out.Data()

	parallel.ForRows(m, k*n, par, func(i int) {
		row := od[i*n : (i+1)*n]
		for p := 0; p < k; p++ {
			av := ad[i*k+p]
			if av == 0 {
				continue
			}
			brow := bd[p*n : (p+1)*n]
			for j := range row {
				row[j] += av * brow[j]
			}
		}
	})
	return out
}

// Transpose permutes tensor axes. With no axes given, all axes are
// reversed. The result owns fresh contiguous storage.
func Transpose(x *tensor.Tensor, axes ...int) *tensor.Tensor {
	shape := x.Shape()
	nd := len(shape)
	if len(axes) == 0 {
		axes = make([]int, nd)
		for i := range axes {
			axes[i] = nd - 1 - i
		}
	}
	if len(axes) != nd {
		panic(fmt.Sprintf("transpose: %d axes for %dD tensor", len(axes), nd))
	}
	seen := make([]bool, nd)
	outShape := make(tensor.Shape, nd)
	for i, ax := range axes {
		if ax < 0 || ax >= nd || seen[ax] {
			panic(fmt.Sprintf("transpose: invalid axis permutation %v", axes))
		}
		seen[ax] = true
		outShape[i] = shape[ax]
	}

	out := tensor.MustNew(outShape, x.Device())
	inStrides := x.Strides()
	outStrides := outShape.Strides()
	src, dst := x.Data(), out.Data()

	for i := range dst {
		rem := i
		srcOff := 0
		for dim := 0; dim < nd; dim++ {
			idx := rem / outStrides[dim]
			rem %= outStrides[dim]
			srcOff += idx * inStrides[axes[dim]]
		}
		dst[i] = src[srcOff]
	}
	return out
}

// InverseAxes returns the permutation that undoes axes. Used by the
// transpose backward pass.
func InverseAxes(axes []int) []int {
	inv := make([]int, len(axes))
	for i, ax := range axes {
		inv[ax] = i
	}
	return inv
}

// Reshape returns a copy of x under a new shape with the same element
// count.
func Reshape(x *tensor.Tensor, shape tensor.Shape) *tensor.Tensor {
	if shape.NumElements() != x.NumElements() {
		panic(fmt.Sprintf("reshape: cannot view %v as %v", x.Shape(), shape))
	}
	out := tensor.MustNew(shape, x.Device())
	copy(out.Data(), x.Data())
	return out
}
