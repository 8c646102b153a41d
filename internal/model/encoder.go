// Package model assembles the image captioning model: a convolutional
// encoder that turns images into spatial feature grids, and an
// attention-based LSTM decoder that emits caption tokens.
package model

import (
	"math/rand"

	"github.com/caption-ml/caption/internal/autodiff"
	"github.com/caption-ml/caption/internal/nn"
	"github.com/caption-ml/caption/internal/tensor"
)

// EncoderConfig sizes the convolutional encoder.
type EncoderConfig struct {
	InChannels int // image channels, normally 3
	FeatureDim int // output channels of the final conv block
}

// Encoder is a small convolutional network producing a grid of feature
// vectors per image. Forward maps [B, C, H, W] to [B, L, FeatureDim]
// where L is the number of spatial locations after pooling.
type Encoder struct {
	conv1 *nn.Conv2D
	conv2 *nn.Conv2D
	conv3 *nn.Conv2D

	featureDim int
	frozen     bool
}

// NewEncoder builds the encoder with Xavier-initialized convolutions.
func NewEncoder(cfg EncoderConfig, rng *rand.Rand, device tensor.Device) *Encoder {
	return &Encoder{
		conv1:      nn.NewConv2D(cfg.InChannels, 16, 3, 1, 1, rng, device),
		conv2:      nn.NewConv2D(16, 32, 3, 1, 1, rng, device),
		conv3:      nn.NewConv2D(32, cfg.FeatureDim, 3, 1, 1, rng, device),
		featureDim: cfg.FeatureDim,
	}
}

func (e *Encoder) Parameters() []*nn.Parameter {
	var params []*nn.Parameter
	params = append(params, nn.Prefixed("conv1", e.conv1.Parameters())...)
	params = append(params, nn.Prefixed("conv2", e.conv2.Parameters())...)
	params = append(params, nn.Prefixed("conv3", e.conv3.Parameters())...)
	return params
}

// FeatureDim returns the dimensionality of each spatial feature vector.
func (e *Encoder) FeatureDim() int { return e.featureDim }

// SetFrozen controls whether Forward records onto the tape. A frozen
// encoder still runs but receives no gradients.
func (e *Encoder) SetFrozen(frozen bool) { e.frozen = frozen }

// Frozen reports whether the encoder is excluded from training.
func (e *Encoder) Frozen() bool { return e.frozen }

// Forward encodes images [B, C, H, W] into features [B, L, FeatureDim].
// When the encoder is frozen, its operations stay off the tape.
func (e *Encoder) Forward(tape *autodiff.Tape, images *tensor.Tensor) *tensor.Tensor {
	if e.frozen && tape.IsRecording() {
		tape.StopRecording()
		defer tape.StartRecording()
	}

	x := autodiff.ReLU(tape, e.conv1.Forward(tape, images))
	x = autodiff.MaxPool2D(tape, x, 2, 2)
	x = autodiff.ReLU(tape, e.conv2.Forward(tape, x))
	x = autodiff.MaxPool2D(tape, x, 2, 2)
	x = autodiff.ReLU(tape, e.conv3.Forward(tape, x))
	x = autodiff.MaxPool2D(tape, x, 2, 2)

	// [B, D, h, w] -> [B, D, L] -> [B, L, D]
	s := x.Shape()
	b, d, l := s[0], s[1], s[2]*s[3]
	x = autodiff.Reshape(tape, x, tensor.Shape{b, d, l})
	return autodiff.Transpose(tape, x, 0, 2, 1)
}
