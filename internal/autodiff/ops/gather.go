package ops

import (
	"github.com/caption-ml/caption/internal/backend/cpu"
	"github.com/caption-ml/caption/internal/tensor"
)

// GatherRowsOp records selecting rows of a 2D tensor by index. It backs
// both embedding lookups and packing padded sequences into flat rows.
type GatherRowsOp struct {
	x, out *tensor.Tensor
	rows   []int
}

// NewGatherRowsOp creates a row-gather operation.
func NewGatherRowsOp(x, out *tensor.Tensor, rows []int) *GatherRowsOp {
	return &GatherRowsOp{x: x, out: out, rows: rows}
}

func (op *GatherRowsOp) Inputs() []*tensor.Tensor { return []*tensor.Tensor{op.x} }
func (op *GatherRowsOp) Output() *tensor.Tensor   { return op.out }

// Backward scatter-adds gradient rows back to their source rows.
// Repeated indices accumulate, which is what embedding lookups need.
func (op *GatherRowsOp) Backward(grad *tensor.Tensor) []*tensor.Tensor {
	gx := tensor.Zeros(op.x.Shape(), op.x.Device())
	cpu.ScatterAddRows(gx, op.rows, grad)
	return []*tensor.Tensor{gx}
}
