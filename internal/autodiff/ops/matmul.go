package ops

import (
	"github.com/caption-ml/caption/internal/backend/cpu"
	"github.com/caption-ml/caption/internal/tensor"
)

// MatMulOp records output = a @ b for 2D operands.
type MatMulOp struct {
	a, b, out *tensor.Tensor
}

// NewMatMulOp creates a matrix multiplication operation.
func NewMatMulOp(a, b, out *tensor.Tensor) *MatMulOp { return &MatMulOp{a: a, b: b, out: out} }

func (op *MatMulOp) Inputs() []*tensor.Tensor { return []*tensor.Tensor{op.a, op.b} }
func (op *MatMulOp) Output() *tensor.Tensor   { return op.out }

// Backward: d(A@B)/dA = grad @ B^T, d(A@B)/dB = A^T @ grad.
func (op *MatMulOp) Backward(grad *tensor.Tensor) []*tensor.Tensor {
	return []*tensor.Tensor{
		cpu.MatMul(grad, cpu.Transpose(op.b)),
		cpu.MatMul(cpu.Transpose(op.a), grad),
	}
}

// TransposeOp records an axis permutation.
type TransposeOp struct {
	x, out *tensor.Tensor
	axes   []int
}

// NewTransposeOp creates a transpose operation with the applied axes.
func NewTransposeOp(x, out *tensor.Tensor, axes []int) *TransposeOp {
	return &TransposeOp{x: x, out: out, axes: axes}
}

func (op *TransposeOp) Inputs() []*tensor.Tensor { return []*tensor.Tensor{op.x} }
func (op *TransposeOp) Output() *tensor.Tensor   { return op.out }

func (op *TransposeOp) Backward(grad *tensor.Tensor) []*tensor.Tensor {
	return []*tensor.Tensor{cpu.Transpose(grad, cpu.InverseAxes(op.axes)...)}
}

// ReshapeOp records a shape change over the same elements.
type ReshapeOp struct {
	x, out *tensor.Tensor
}

// NewReshapeOp creates a reshape operation.
func NewReshapeOp(x, out *tensor.Tensor) *ReshapeOp { return &ReshapeOp{x: x, out: out} }

func (op *ReshapeOp) Inputs() []*tensor.Tensor { return []*tensor.Tensor{op.x} }
func (op *ReshapeOp) Output() *tensor.Tensor   { return op.out }

func (op *ReshapeOp) Backward(grad *tensor.Tensor) []*tensor.Tensor {
	return []*tensor.Tensor{cpu.Reshape(grad, op.x.Shape())}
}
