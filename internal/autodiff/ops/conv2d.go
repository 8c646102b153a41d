package ops

import (
	"github.com/caption-ml/caption/internal/backend/cpu"
	"github.com/caption-ml/caption/internal/tensor"
)

// Conv2DOp records a 2D convolution of input [N,C,H,W] with kernel
// [C_out,C,kH,kW].
type Conv2DOp struct {
	input, kernel, out *tensor.Tensor
	stride, padding    int
}

// NewConv2DOp creates a convolution operation.
func NewConv2DOp(input, kernel, out *tensor.Tensor, stride, padding int) *Conv2DOp {
	return &Conv2DOp{input: input, kernel: kernel, out: out, stride: stride, padding: padding}
}

func (op *Conv2DOp) Inputs() []*tensor.Tensor { return []*tensor.Tensor{op.input, op.kernel} }
func (op *Conv2DOp) Output() *tensor.Tensor   { return op.out }

func (op *Conv2DOp) Backward(grad *tensor.Tensor) []*tensor.Tensor {
	gradInput, gradKernel := cpu.Conv2DBackward(op.input, op.kernel, grad, op.stride, op.padding)
	return []*tensor.Tensor{gradInput, gradKernel}
}

// MaxPool2DOp records a 2D max pooling. The argmax indices captured in
// the forward pass route gradients to the winning elements.
type MaxPool2DOp struct {
	input, out *tensor.Tensor
	argmax     []int32
}

// NewMaxPool2DOp creates a max-pooling operation.
func NewMaxPool2DOp(input, out *tensor.Tensor, argmax []int32) *MaxPool2DOp {
	return &MaxPool2DOp{input: input, out: out, argmax: argmax}
}

func (op *MaxPool2DOp) Inputs() []*tensor.Tensor { return []*tensor.Tensor{op.input} }
func (op *MaxPool2DOp) Output() *tensor.Tensor   { return op.out }

func (op *MaxPool2DOp) Backward(grad *tensor.Tensor) []*tensor.Tensor {
	return []*tensor.Tensor{cpu.MaxPool2DBackward(op.input.Shape(), op.argmax, grad)}
}
