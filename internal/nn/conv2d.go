package nn

import (
	"math/rand"

	"github.com/caption-ml/caption/internal/autodiff"
	"github.com/caption-ml/caption/internal/tensor"
)

// Conv2D is a 2D convolution layer with kernel [outChannels, inChannels,
// kernelSize, kernelSize] and a per-channel bias.
type Conv2D struct {
	kernel  *Parameter
	bias    *Parameter
	stride  int
	padding int
}

// NewConv2D creates a convolution layer with Xavier-initialized kernel.
func NewConv2D(inChannels, outChannels, kernelSize, stride, padding int, rng *rand.Rand, device tensor.Device) *Conv2D {
	fanIn := inChannels * kernelSize * kernelSize
	fanOut := outChannels * kernelSize * kernelSize
	k := XavierUniform(tensor.Shape{outChannels, inChannels, kernelSize, kernelSize}, fanIn, fanOut, rng, device)
	b := tensor.Zeros(tensor.Shape{outChannels}, device)
	return &Conv2D{
		kernel:  NewParameter("kernel", k),
		bias:    NewParameter("bias", b),
		stride:  stride,
		padding: padding,
	}
}

func (c *Conv2D) Parameters() []*Parameter {
	return []*Parameter{c.kernel, c.bias}
}

// Forward convolves input [N, C, H, W] and adds the bias broadcast over
// the spatial dimensions.
func (c *Conv2D) Forward(tape *autodiff.Tape, x *tensor.Tensor) *tensor.Tensor {
	y := autodiff.Conv2D(tape, x, c.kernel.Tensor(), c.stride, c.padding)
	outChannels := c.kernel.Tensor().Shape()[0]
	b := autodiff.Reshape(tape, c.bias.Tensor(), tensor.Shape{1, outChannels, 1, 1})
	return autodiff.Add(tape, y, b)
}
