package cpu

import (
	"fmt"

	"github.com/caption-ml/caption/internal/parallel"
	"github.com/caption-ml/caption/internal/tensor"
)

// Conv2D performs 2D convolution.
//
// Input:  [N, C_in, H, W]
// Kernel: [C_out, C_in, KH, KW]
// Output: [N, C_out, H_out, W_out] with
//
//	H_out = (H + 2*padding - KH)/stride + 1
//	W_out = (W + 2*padding - KW)/stride + 1
func Conv2D(input, kernel *tensor.Tensor, stride, padding int) *tensor.Tensor {
	tensor.SameDevice(input, kernel)
	n, cIn, h, w, cOut, kh, kw, hOut, wOut := conv2DDims(input.Shape(), kernel.Shape(), stride, padding)

	out := tensor.MustNew(tensor.Shape{n, cOut, hOut, wOut}, input.Device())
	src, ker, dst := input.Data(), kernel.Data(), out.Data()

	parallel.ForRows(n*cOut, hOut*wOut*cIn*kh*kw, par, func(idx int) {
		b := idx / cOut
		oc := idx % cOut
		for oy := 0; oy < hOut; oy++ {
			for ox := 0; ox < wOut; ox++ {
				var acc float32
				for ic := 0; ic < cIn; ic++ {
					inBase := (b*cIn + ic) * h * w
					kBase := ((oc*cIn + ic) * kh) * kw
					for ky := 0; ky < kh; ky++ {
						iy := oy*stride + ky - padding
						if iy < 0 || iy >= h {
							continue
						}
						for kx := 0; kx < kw; kx++ {
							ix := ox*stride + kx - padding
							if ix < 0 || ix >= w {
								continue
							}
							acc += src[inBase+iy*w+ix] * ker[kBase+ky*kw+kx]
						}
					}
				}
				dst[((b*cOut+oc)*hOut+oy)*wOut+ox] = acc
			}
		}
	})
	return out
}

// Conv2DBackward computes gradients of Conv2D with respect to the input
// and the kernel, given the upstream output gradient.
func Conv2DBackward(input, kernel, gradOut *tensor.Tensor, stride, padding int) (gradInput, gradKernel *tensor.Tensor) {
	n, cIn, h, w, cOut, kh, kw, hOut, wOut := conv2DDims(input.Shape(), kernel.Shape(), stride, padding)
	if !gradOut.Shape().Equal(tensor.Shape{n, cOut, hOut, wOut}) {
		panic(fmt.Sprintf("conv2d backward: grad shape %v, expected [%d %d %d %d]", gradOut.Shape(), n, cOut, hOut, wOut))
	}

	gradInput = tensor.MustNew(input.Shape(), input.Device())
	gradKernel = tensor.MustNew(kernel.Shape(), kernel.Device())
	src, ker := input.Data(), kernel.Data()
	gOut, gIn, gKer := gradOut.Data(), gradInput.Data(), gradKernel.Data()

	// Input gradient: scatter each output gradient back through the
	// kernel taps. Parallel over batch so writes never collide.
	parallel.ForRows(n, cOut*hOut*wOut*cIn*kh*kw, par, func(b int) {
		for oc := 0; oc < cOut; oc++ {
			for oy := 0; oy < hOut; oy++ {
				for ox := 0; ox < wOut; ox++ {
					g := gOut[((b*cOut+oc)*hOut+oy)*wOut+ox]
					if g == 0 {
						continue
					}
					for ic := 0; ic < cIn; ic++ {
						inBase := (b*cIn + ic) * h * w
						kBase := ((oc*cIn + ic) * kh) * kw
						for ky := 0; ky < kh; ky++ {
							iy := oy*stride + ky - padding
							if iy < 0 || iy >= h {
								continue
							}
							for kx := 0; kx < kw; kx++ {
								ix := ox*stride + kx - padding
								if ix < 0 || ix >= w {
									continue
								}
								gIn[inBase+iy*w+ix] += g * ker[kBase+ky*kw+kx]
							}
						}
					}
				}
			}
		}
	})

	// Kernel gradient: parallel over output channel, accumulating over
	// the batch.
	parallel.ForRows(cOut, n*hOut*wOut*cIn*kh*kw, par, func(oc int) {
		for ic := 0; ic < cIn; ic++ {
			kBase := ((oc*cIn + ic) * kh) * kw
			for ky := 0; ky < kh; ky++ {
				for kx := 0; kx < kw; kx++ {
					var acc float32
					for b := 0; b < n; b++ {
						inBase := (b*cIn + ic) * h * w
						for oy := 0; oy < hOut; oy++ {
							iy := oy*stride + ky - padding
							if iy < 0 || iy >= h {
								continue
							}
							for ox := 0; ox < wOut; ox++ {
								ix := ox*stride + kx - padding
								if ix < 0 || ix >= w {
									continue
								}
								acc += gOut[((b*cOut+oc)*hOut+oy)*wOut+ox] * src[inBase+iy*w+ix]
							}
						}
					}
					gKer[kBase+ky*kw+kx] = acc
				}
			}
		}
	})

	return gradInput, gradKernel
}

func conv2DDims(inShape, kShape tensor.Shape, stride, padding int) (n, cIn, h, w, cOut, kh, kw, hOut, wOut int) {
	if len(inShape) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,C,H,W], got %v", inShape))
	}
	if len(kShape) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [C_out,C_in,KH,KW], got %v", kShape))
	}
	if inShape[1] != kShape[1] {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d", inShape[1], kShape[1]))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d", stride))
	}
	n, cIn, h, w = inShape[0], inShape[1], inShape[2], inShape[3]
	cOut, kh, kw = kShape[0], kShape[2], kShape[3]
	hOut = (h+2*padding-kh)/stride + 1
	wOut = (w+2*padding-kw)/stride + 1
	if hOut <= 0 || wOut <= 0 {
		panic(fmt.Sprintf("conv2d: output would be %dx%d (check stride/padding)", hOut, wOut))
	}
	return
}
