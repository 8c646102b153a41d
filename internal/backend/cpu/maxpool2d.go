package cpu

import (
	"fmt"

	"github.com/caption-ml/caption/internal/parallel"
	"github.com/caption-ml/caption/internal/tensor"
)

// MaxPool2D performs 2D max pooling over [N, C, H, W] and additionally
// returns the flat input offset of each selected maximum, which the
// backward pass routes the gradient through.
func MaxPool2D(input *tensor.Tensor, kernelSize, stride int) (*tensor.Tensor, []int32) {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("maxpool2d: input must be 4D [N,C,H,W], got %v", shape))
	}
	if kernelSize <= 0 || stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel %d / stride %d", kernelSize, stride))
	}
	n, c, h, w := shape[0], shape[1], shape[2], shape[3]
	if kernelSize > h || kernelSize > w {
		panic(fmt.Sprintf("maxpool2d: kernel %d exceeds input %dx%d", kernelSize, h, w))
	}
	hOut := (h-kernelSize)/stride + 1
	wOut := (w-kernelSize)/stride + 1

	out := tensor.MustNew(tensor.Shape{n, c, hOut, wOut}, input.Device())
	argmax := make([]int32, out.NumElements())
	src, dst := input.Data(), out.Data()

	parallel.ForRows(n*c, hOut*wOut*kernelSize*kernelSize, par, func(nc int) {
		inBase := nc * h * w
		outBase := nc * hOut * wOut
		for oy := 0; oy < hOut; oy++ {
			for ox := 0; ox < wOut; ox++ {
				bestOff := inBase + oy*stride*w + ox*stride
				best := src[bestOff]
				for ky := 0; ky < kernelSize; ky++ {
					for kx := 0; kx < kernelSize; kx++ {
						off := inBase + (oy*stride+ky)*w + (ox*stride + kx)
						if src[off] > best {
							best = src[off]
							bestOff = off
						}
					}
				}
				o := outBase + oy*wOut + ox
				dst[o] = best
				argmax[o] = int32(bestOff)
			}
		}
	})
	return out, argmax
}

// MaxPool2DBackward scatters the output gradient back to the argmax
// positions recorded during the forward pass.
func MaxPool2DBackward(inputShape tensor.Shape, argmax []int32, grad *tensor.Tensor) *tensor.Tensor {
	if grad.NumElements() != len(argmax) {
		panic(fmt.Sprintf("maxpool2d backward: %d grads for %d argmax entries", grad.NumElements(), len(argmax)))
	}
	out := tensor.MustNew(inputShape, grad.Device())
	dst, g := out.Data(), grad.Data()
	for i, off := range argmax {
		dst[off] += g[i]
	}
	return out
}
