package nn

import (
	"math/rand"

	"github.com/caption-ml/caption/internal/autodiff"
	"github.com/caption-ml/caption/internal/tensor"
)

// Dropout zeroes elements with probability P during training, rescaling
// survivors so the expected activation is unchanged.
type Dropout struct {
	P   float64
	rng *rand.Rand
}

// NewDropout creates a dropout layer with its own random source.
func NewDropout(p float64, rng *rand.Rand) *Dropout {
	return &Dropout{P: p, rng: rng}
}

func (d *Dropout) Parameters() []*Parameter { return nil }

// Forward applies dropout when training is true; otherwise it is the
// identity.
func (d *Dropout) Forward(tape *autodiff.Tape, x *tensor.Tensor, training bool) *tensor.Tensor {
	return autodiff.Dropout(tape, x, d.P, training, d.rng)
}
