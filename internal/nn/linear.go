package nn

import (
	"fmt"
	"math/rand"

	"github.com/caption-ml/caption/internal/autodiff"
	"github.com/caption-ml/caption/internal/tensor"
)

// Linear is a fully connected layer computing x @ W^T + b with weight
// shaped [out, in].
type Linear struct {
	weight *Parameter
	bias   *Parameter
}

// NewLinear creates a linear layer with Xavier-initialized weights and
// zero bias.
func NewLinear(in, out int, rng *rand.Rand, device tensor.Device) *Linear {
	w := XavierUniform(tensor.Shape{out, in}, in, out, rng, device)
	b := tensor.Zeros(tensor.Shape{out}, device)
	return &Linear{
		weight: NewParameter("weight", w),
		bias:   NewParameter("bias", b),
	}
}

func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}

// Forward applies the layer. x may be [B, in] or [B, L, in]; the leading
// dimensions are preserved.
func (l *Linear) Forward(tape *autodiff.Tape, x *tensor.Tensor) *tensor.Tensor {
	shape := x.Shape()
	in := l.weight.Tensor().Shape()[1]
	out := l.weight.Tensor().Shape()[0]
	if shape[len(shape)-1] != in {
		panic(fmt.Sprintf("nn: linear expects trailing dimension %d, got shape %v", in, shape))
	}

	wT := autodiff.Transpose(tape, l.weight.Tensor())
	switch len(shape) {
	case 2:
		return autodiff.Add(tape, autodiff.MatMul(tape, x, wT), l.bias.Tensor())
	case 3:
		flat := autodiff.Reshape(tape, x, tensor.Shape{shape[0] * shape[1], in})
		y := autodiff.Add(tape, autodiff.MatMul(tape, flat, wT), l.bias.Tensor())
		return autodiff.Reshape(tape, y, tensor.Shape{shape[0], shape[1], out})
	default:
		panic(fmt.Sprintf("nn: linear expects 2D or 3D input, got shape %v", shape))
	}
}
