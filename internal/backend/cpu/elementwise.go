package cpu

import (
	"fmt"
	"math"

	"github.com/caption-ml/caption/internal/parallel"
	"github.com/caption-ml/caption/internal/tensor"
)

// Add returns a + b with broadcasting.
func Add(a, b *tensor.Tensor) *tensor.Tensor {
	return binary(a, b, func(x, y float32) float32 { return x + y })
}

// Sub returns a - b with broadcasting.
func Sub(a, b *tensor.Tensor) *tensor.Tensor {
	return binary(a, b, func(x, y float32) float32 { return x - y })
}

// Mul returns a * b elementwise with broadcasting.
func Mul(a, b *tensor.Tensor) *tensor.Tensor {
	return binary(a, b, func(x, y float32) float32 { return x * y })
}

// Div returns a / b elementwise with broadcasting.
func Div(a, b *tensor.Tensor) *tensor.Tensor {
	return binary(a, b, func(x, y float32) float32 { return x / y })
}

// AddScalar returns x + s.
func AddScalar(x *tensor.Tensor, s float32) *tensor.Tensor {
	return unary(x, func(v float32) float32 { return v + s })
}

// MulScalar returns x * s.
func MulScalar(x *tensor.Tensor, s float32) *tensor.Tensor {
	return unary(x, func(v float32) float32 { return v * s })
}

// Sigmoid returns 1 / (1 + exp(-x)) elementwise.
func Sigmoid(x *tensor.Tensor) *tensor.Tensor {
	return unary(x, func(v float32) float32 {
		return float32(1.0 / (1.0 + math.Exp(-float64(v))))
	})
}

// Tanh returns tanh(x) elementwise.
func Tanh(x *tensor.Tensor) *tensor.Tensor {
	return unary(x, func(v float32) float32 {
		return float32(math.Tanh(float64(v)))
	})
}

// ReLU returns max(x, 0) elementwise. NaN inputs propagate so an
// upstream numerical failure is not flushed to zero before the
// non-finite loss guard can see it.
func ReLU(x *tensor.Tensor) *tensor.Tensor {
	return unary(x, func(v float32) float32 {
		if v > 0 || v != v {
			return v
		}
		return 0
	})
}

func unary(x *tensor.Tensor, f func(float32) float32) *tensor.Tensor {
	out := tensor.MustNew(x.Shape(), x.Device())
	src := x.Data()
	dst := out.Data()
	parallel.For(len(src), par, func(i int) {
		dst[i] = f(src[i])
	})
	return out
}

func binary(a, b *tensor.Tensor, f func(x, y float32) float32) *tensor.Tensor {
	tensor.SameDevice(a, b)

	// Fast path: identical shapes.
	if a.Shape().Equal(b.Shape()) {
		out := tensor.MustNew(a.Shape(), a.Device())
		ad, bd, od := a.Data(), b.Data(), out.Data()
		parallel.For(len(od), par, func(i int) {
			od[i] = f(ad[i], bd[i])
		})
		return out
	}

	shape, err := tensor.Broadcast(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("elementwise: %v", err))
	}
	out := tensor.MustNew(shape, a.Device())

	as := broadcastStrides(a.Shape(), shape)
	bs := broadcastStrides(b.Shape(), shape)
	outStrides := shape.Strides()
	ad, bd, od := a.Data(), b.Data(), out.Data()

	for i := range od {
		ai, bi := 0, 0
		rem := i
		for dim := 0; dim < len(shape); dim++ {
			idx := rem / outStrides[dim]
			rem %= outStrides[dim]
			ai += idx * as[dim]
			bi += idx * bs[dim]
		}
		od[i] = f(ad[ai], bd[bi])
	}
	return out
}

// broadcastStrides maps a (possibly smaller) operand shape onto the
// output shape, using stride 0 for broadcast axes.
func broadcastStrides(in, out tensor.Shape) []int {
	strides := make([]int, len(out))
	inStrides := in.Strides()
	offset := len(out) - len(in)
	for i := range out {
		j := i - offset
		if j < 0 || in[j] == 1 {
			strides[i] = 0
		} else {
			strides[i] = inStrides[j]
		}
	}
	return strides
}

// ReduceTo sums grad down to the given operand shape, undoing any
// broadcasting the forward pass applied. Used by backward passes of
// broadcasting ops.
func ReduceTo(grad *tensor.Tensor, shape tensor.Shape) *tensor.Tensor {
	if grad.Shape().Equal(shape) {
		return grad
	}
	out := tensor.MustNew(shape, grad.Device())
	strides := broadcastStrides(shape, grad.Shape())
	gradStrides := grad.Shape().Strides()
	gd, od := grad.Data(), out.Data()

	for i := range gd {
		oi := 0
		rem := i
		for dim := 0; dim < len(grad.Shape()); dim++ {
			idx := rem / gradStrides[dim]
			rem %= gradStrides[dim]
			oi += idx * strides[dim]
		}
		od[oi] += gd[i]
	}
	return out
}
