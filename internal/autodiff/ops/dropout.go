package ops

import (
	"github.com/caption-ml/caption/internal/backend/cpu"
	"github.com/caption-ml/caption/internal/tensor"
)

// DropoutOp records an inverted-dropout application. The mask holds
// 1/(1-p) for kept elements and 0 for dropped ones, so the forward pass
// already rescales and the backward pass reuses the same mask.
type DropoutOp struct {
	x, out, mask *tensor.Tensor
}

// NewDropoutOp creates a dropout operation from a precomputed mask.
func NewDropoutOp(x, out, mask *tensor.Tensor) *DropoutOp {
	return &DropoutOp{x: x, out: out, mask: mask}
}

func (op *DropoutOp) Inputs() []*tensor.Tensor { return []*tensor.Tensor{op.x} }
func (op *DropoutOp) Output() *tensor.Tensor   { return op.out }

func (op *DropoutOp) Backward(grad *tensor.Tensor) []*tensor.Tensor {
	return []*tensor.Tensor{cpu.Mul(grad, op.mask)}
}
