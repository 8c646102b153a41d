package ops

import (
	"github.com/caption-ml/caption/internal/backend/cpu"
	"github.com/caption-ml/caption/internal/tensor"
)

// AddOp records output = a + b (with broadcasting).
type AddOp struct {
	a, b, out *tensor.Tensor
}

// NewAddOp creates an addition operation.
func NewAddOp(a, b, out *tensor.Tensor) *AddOp { return &AddOp{a: a, b: b, out: out} }

func (op *AddOp) Inputs() []*tensor.Tensor { return []*tensor.Tensor{op.a, op.b} }
func (op *AddOp) Output() *tensor.Tensor   { return op.out }

// Backward passes the gradient through unchanged, summing away any
// broadcast axes.
func (op *AddOp) Backward(grad *tensor.Tensor) []*tensor.Tensor {
	return []*tensor.Tensor{
		cpu.ReduceTo(grad, op.a.Shape()),
		cpu.ReduceTo(grad, op.b.Shape()),
	}
}

// SubOp records output = a - b (with broadcasting).
type SubOp struct {
	a, b, out *tensor.Tensor
}

// NewSubOp creates a subtraction operation.
func NewSubOp(a, b, out *tensor.Tensor) *SubOp { return &SubOp{a: a, b: b, out: out} }

func (op *SubOp) Inputs() []*tensor.Tensor { return []*tensor.Tensor{op.a, op.b} }
func (op *SubOp) Output() *tensor.Tensor   { return op.out }

func (op *SubOp) Backward(grad *tensor.Tensor) []*tensor.Tensor {
	return []*tensor.Tensor{
		cpu.ReduceTo(grad, op.a.Shape()),
		cpu.ReduceTo(cpu.MulScalar(grad, -1), op.b.Shape()),
	}
}

// MulOp records output = a * b elementwise (with broadcasting).
type MulOp struct {
	a, b, out *tensor.Tensor
}

// NewMulOp creates an elementwise multiplication operation.
func NewMulOp(a, b, out *tensor.Tensor) *MulOp { return &MulOp{a: a, b: b, out: out} }

func (op *MulOp) Inputs() []*tensor.Tensor { return []*tensor.Tensor{op.a, op.b} }
func (op *MulOp) Output() *tensor.Tensor   { return op.out }

// Backward: d(a*b)/da = b and d(a*b)/db = a.
func (op *MulOp) Backward(grad *tensor.Tensor) []*tensor.Tensor {
	return []*tensor.Tensor{
		cpu.ReduceTo(cpu.Mul(grad, op.b), op.a.Shape()),
		cpu.ReduceTo(cpu.Mul(grad, op.a), op.b.Shape()),
	}
}

// DivOp records output = a / b elementwise (with broadcasting).
type DivOp struct {
	a, b, out *tensor.Tensor
}

// NewDivOp creates an elementwise division operation.
func NewDivOp(a, b, out *tensor.Tensor) *DivOp { return &DivOp{a: a, b: b, out: out} }

func (op *DivOp) Inputs() []*tensor.Tensor { return []*tensor.Tensor{op.a, op.b} }
func (op *DivOp) Output() *tensor.Tensor   { return op.out }

// Backward: d(a/b)/da = 1/b and d(a/b)/db = -a/b^2 = -out/b.
func (op *DivOp) Backward(grad *tensor.Tensor) []*tensor.Tensor {
	gb := cpu.MulScalar(cpu.Div(cpu.Mul(grad, op.out), op.b), -1)
	return []*tensor.Tensor{
		cpu.ReduceTo(cpu.Div(grad, op.b), op.a.Shape()),
		cpu.ReduceTo(gb, op.b.Shape()),
	}
}

// AddScalarOp records output = x + s.
type AddScalarOp struct {
	x, out *tensor.Tensor
}

// NewAddScalarOp creates a scalar addition operation.
func NewAddScalarOp(x, out *tensor.Tensor) *AddScalarOp { return &AddScalarOp{x: x, out: out} }

func (op *AddScalarOp) Inputs() []*tensor.Tensor { return []*tensor.Tensor{op.x} }
func (op *AddScalarOp) Output() *tensor.Tensor   { return op.out }

func (op *AddScalarOp) Backward(grad *tensor.Tensor) []*tensor.Tensor {
	return []*tensor.Tensor{grad}
}

// MulScalarOp records output = x * s.
type MulScalarOp struct {
	x, out *tensor.Tensor
	s      float32
}

// NewMulScalarOp creates a scalar multiplication operation.
func NewMulScalarOp(x, out *tensor.Tensor, s float32) *MulScalarOp {
	return &MulScalarOp{x: x, out: out, s: s}
}

func (op *MulScalarOp) Inputs() []*tensor.Tensor { return []*tensor.Tensor{op.x} }
func (op *MulScalarOp) Output() *tensor.Tensor   { return op.out }

func (op *MulScalarOp) Backward(grad *tensor.Tensor) []*tensor.Tensor {
	return []*tensor.Tensor{cpu.MulScalar(grad, op.s)}
}
