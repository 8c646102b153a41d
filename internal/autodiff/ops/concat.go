package ops

import (
	"github.com/caption-ml/caption/internal/backend/cpu"
	"github.com/caption-ml/caption/internal/tensor"
)

// ConcatOp records a concatenation of tensors along one axis.
type ConcatOp struct {
	inputs []*tensor.Tensor
	out    *tensor.Tensor
	dim    int
}

// NewConcatOp creates a concat operation.
func NewConcatOp(inputs []*tensor.Tensor, out *tensor.Tensor, dim int) *ConcatOp {
	return &ConcatOp{inputs: inputs, out: out, dim: dim}
}

func (op *ConcatOp) Inputs() []*tensor.Tensor { return op.inputs }
func (op *ConcatOp) Output() *tensor.Tensor   { return op.out }

// Backward slices the upstream gradient back into one piece per input.
func (op *ConcatOp) Backward(grad *tensor.Tensor) []*tensor.Tensor {
	grads := make([]*tensor.Tensor, len(op.inputs))
	offset := 0
	for i, in := range op.inputs {
		length := in.Shape()[op.dim]
		grads[i] = cpu.Narrow(grad, op.dim, offset, length)
		offset += length
	}
	return grads
}

// NarrowOp records a contiguous slice along one axis.
type NarrowOp struct {
	x, out *tensor.Tensor
	dim    int
	start  int
}

// NewNarrowOp creates a narrow operation.
func NewNarrowOp(x, out *tensor.Tensor, dim, start int) *NarrowOp {
	return &NarrowOp{x: x, out: out, dim: dim, start: start}
}

func (op *NarrowOp) Inputs() []*tensor.Tensor { return []*tensor.Tensor{op.x} }
func (op *NarrowOp) Output() *tensor.Tensor   { return op.out }

func (op *NarrowOp) Backward(grad *tensor.Tensor) []*tensor.Tensor {
	return []*tensor.Tensor{cpu.NarrowBackward(grad, op.x.Shape(), op.dim, op.start)}
}

// PadRowsOp records zero-padding a [n, F] tensor to [rows, F].
type PadRowsOp struct {
	x, out *tensor.Tensor
}

// NewPadRowsOp creates a row-padding operation.
func NewPadRowsOp(x, out *tensor.Tensor) *PadRowsOp { return &PadRowsOp{x: x, out: out} }

func (op *PadRowsOp) Inputs() []*tensor.Tensor { return []*tensor.Tensor{op.x} }
func (op *PadRowsOp) Output() *tensor.Tensor   { return op.out }

// Backward drops the gradient rows that landed on padding.
func (op *PadRowsOp) Backward(grad *tensor.Tensor) []*tensor.Tensor {
	n := op.x.Shape()[0]
	return []*tensor.Tensor{cpu.Narrow(grad, 0, 0, n)}
}
