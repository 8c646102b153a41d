package nn

import (
	"math/rand"

	"github.com/caption-ml/caption/internal/autodiff"
	"github.com/caption-ml/caption/internal/tensor"
)

// Attention is additive attention over a set of encoder features. For
// each decoder state it scores every spatial location, normalizes the
// scores with a softmax, and returns the attention-weighted context.
type Attention struct {
	encoderAtt *Linear
	decoderAtt *Linear
	fullAtt    *Linear
}

// NewAttention creates an additive attention module projecting encoder
// features [*, encoderDim] and decoder states [*, decoderDim] into a
// shared attentionDim space.
func NewAttention(encoderDim, decoderDim, attentionDim int, rng *rand.Rand, device tensor.Device) *Attention {
	return &Attention{
		encoderAtt: NewLinear(encoderDim, attentionDim, rng, device),
		decoderAtt: NewLinear(decoderDim, attentionDim, rng, device),
		fullAtt:    NewLinear(attentionDim, 1, rng, device),
	}
}

func (a *Attention) Parameters() []*Parameter {
	var params []*Parameter
	params = append(params, Prefixed("encoder_att", a.encoderAtt.Parameters())...)
	params = append(params, Prefixed("decoder_att", a.decoderAtt.Parameters())...)
	params = append(params, Prefixed("full_att", a.fullAtt.Parameters())...)
	return params
}

// Forward attends over features [B, L, encoderDim] given decoder state
// [B, decoderDim]. It returns the context [B, encoderDim] and the
// attention weights [B, L].
func (a *Attention) Forward(tape *autodiff.Tape, features, hidden *tensor.Tensor) (*tensor.Tensor, *tensor.Tensor) {
	b := features.Shape()[0]
	l := features.Shape()[1]

	att1 := a.encoderAtt.Forward(tape, features) // [B, L, A]
	att2 := a.decoderAtt.Forward(tape, hidden)   // [B, A]
	att2 = autodiff.Reshape(tape, att2, tensor.Shape{b, 1, att2.Shape()[1]})

	e := autodiff.Tanh(tape, autodiff.Add(tape, att1, att2))
	scores := a.fullAtt.Forward(tape, e) // [B, L, 1]
	scores = autodiff.Reshape(tape, scores, tensor.Shape{b, l})

	alpha := autodiff.Softmax(tape, scores) // [B, L]

	// Weight each location's feature vector by its attention weight and
	// sum over locations.
	alpha3 := autodiff.Reshape(tape, alpha, tensor.Shape{b, l, 1})
	weighted := autodiff.Mul(tape, features, alpha3)
	context := autodiff.SumDim(tape, weighted, 1, false) // [B, encoderDim]
	return context, alpha
}
