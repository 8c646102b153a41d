package ops

import (
	"github.com/caption-ml/caption/internal/backend/cpu"
	"github.com/caption-ml/caption/internal/tensor"
)

// SumDimOp records a sum over a single axis.
type SumDimOp struct {
	x, out  *tensor.Tensor
	dim     int
	keepDim bool
}

// NewSumDimOp creates a sum-over-axis operation.
func NewSumDimOp(x, out *tensor.Tensor, dim int, keepDim bool) *SumDimOp {
	return &SumDimOp{x: x, out: out, dim: dim, keepDim: keepDim}
}

func (op *SumDimOp) Inputs() []*tensor.Tensor { return []*tensor.Tensor{op.x} }
func (op *SumDimOp) Output() *tensor.Tensor   { return op.out }

// Backward broadcasts the upstream gradient back along the summed axis.
func (op *SumDimOp) Backward(grad *tensor.Tensor) []*tensor.Tensor {
	return []*tensor.Tensor{cpu.SpreadDim(grad, op.x.Shape(), op.dim)}
}

// MeanOp records a full reduction to the mean of all elements.
type MeanOp struct {
	x, out *tensor.Tensor
}

// NewMeanOp creates a mean-over-all-elements operation.
func NewMeanOp(x, out *tensor.Tensor) *MeanOp { return &MeanOp{x: x, out: out} }

func (op *MeanOp) Inputs() []*tensor.Tensor { return []*tensor.Tensor{op.x} }
func (op *MeanOp) Output() *tensor.Tensor   { return op.out }

func (op *MeanOp) Backward(grad *tensor.Tensor) []*tensor.Tensor {
	n := op.x.NumElements()
	g := grad.Item() / float32(n)
	return []*tensor.Tensor{tensor.Full(op.x.Shape(), g, op.x.Device())}
}

// SumOp records a full reduction to the sum of all elements.
type SumOp struct {
	x, out *tensor.Tensor
}

// NewSumOp creates a sum-over-all-elements operation.
func NewSumOp(x, out *tensor.Tensor) *SumOp { return &SumOp{x: x, out: out} }

func (op *SumOp) Inputs() []*tensor.Tensor { return []*tensor.Tensor{op.x} }
func (op *SumOp) Output() *tensor.Tensor   { return op.out }

func (op *SumOp) Backward(grad *tensor.Tensor) []*tensor.Tensor {
	return []*tensor.Tensor{tensor.Full(op.x.Shape(), grad.Item(), op.x.Device())}
}
