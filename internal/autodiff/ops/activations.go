package ops

import (
	"github.com/caption-ml/caption/internal/backend/cpu"
	"github.com/caption-ml/caption/internal/tensor"
)

// SigmoidOp records output = 1 / (1 + exp(-x)).
type SigmoidOp struct {
	x, out *tensor.Tensor
}

// NewSigmoidOp creates a sigmoid operation.
func NewSigmoidOp(x, out *tensor.Tensor) *SigmoidOp { return &SigmoidOp{x: x, out: out} }

func (op *SigmoidOp) Inputs() []*tensor.Tensor { return []*tensor.Tensor{op.x} }
func (op *SigmoidOp) Output() *tensor.Tensor   { return op.out }

// Backward uses the saved output: dσ/dx = σ(x) * (1 - σ(x)).
func (op *SigmoidOp) Backward(grad *tensor.Tensor) []*tensor.Tensor {
	y := op.out
	oneMinus := cpu.AddScalar(cpu.MulScalar(y, -1), 1)
	return []*tensor.Tensor{cpu.Mul(grad, cpu.Mul(y, oneMinus))}
}

// TanhOp records output = tanh(x).
type TanhOp struct {
	x, out *tensor.Tensor
}

// NewTanhOp creates a tanh operation.
func NewTanhOp(x, out *tensor.Tensor) *TanhOp { return &TanhOp{x: x, out: out} }

func (op *TanhOp) Inputs() []*tensor.Tensor { return []*tensor.Tensor{op.x} }
func (op *TanhOp) Output() *tensor.Tensor   { return op.out }

// Backward uses the saved output: d(tanh x)/dx = 1 - tanh²(x).
func (op *TanhOp) Backward(grad *tensor.Tensor) []*tensor.Tensor {
	y := op.out
	deriv := cpu.AddScalar(cpu.MulScalar(cpu.Mul(y, y), -1), 1)
	return []*tensor.Tensor{cpu.Mul(grad, deriv)}
}

// ReLUOp records output = max(x, 0).
type ReLUOp struct {
	x, out *tensor.Tensor
}

// NewReLUOp creates a ReLU operation.
func NewReLUOp(x, out *tensor.Tensor) *ReLUOp { return &ReLUOp{x: x, out: out} }

func (op *ReLUOp) Inputs() []*tensor.Tensor { return []*tensor.Tensor{op.x} }
func (op *ReLUOp) Output() *tensor.Tensor   { return op.out }

func (op *ReLUOp) Backward(grad *tensor.Tensor) []*tensor.Tensor {
	out := tensor.MustNew(op.x.Shape(), grad.Device())
	src, g, dst := op.x.Data(), grad.Data(), out.Data()
	for i := range dst {
		if src[i] > 0 {
			dst[i] = g[i]
		}
	}
	return []*tensor.Tensor{out}
}

// SoftmaxOp records a softmax along the last axis.
type SoftmaxOp struct {
	x, out *tensor.Tensor
}

// NewSoftmaxOp creates a softmax operation.
func NewSoftmaxOp(x, out *tensor.Tensor) *SoftmaxOp { return &SoftmaxOp{x: x, out: out} }

func (op *SoftmaxOp) Inputs() []*tensor.Tensor { return []*tensor.Tensor{op.x} }
func (op *SoftmaxOp) Output() *tensor.Tensor   { return op.out }

func (op *SoftmaxOp) Backward(grad *tensor.Tensor) []*tensor.Tensor {
	return []*tensor.Tensor{cpu.SoftmaxBackward(op.out, grad)}
}
