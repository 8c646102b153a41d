package nn

import (
	"math/rand"

	"github.com/caption-ml/caption/internal/autodiff"
	"github.com/caption-ml/caption/internal/tensor"
)

// LSTMCell is a single-step LSTM. Gate weights are packed [4H, in] and
// [4H, H] in i, f, g, o order.
type LSTMCell struct {
	wih *Parameter
	whh *Parameter
	bih *Parameter
	bhh *Parameter

	hidden int
}

// NewLSTMCell creates an LSTM cell with Xavier-initialized weights.
func NewLSTMCell(input, hidden int, rng *rand.Rand, device tensor.Device) *LSTMCell {
	return &LSTMCell{
		wih:    NewParameter("weight_ih", XavierUniform(tensor.Shape{4 * hidden, input}, input, hidden, rng, device)),
		whh:    NewParameter("weight_hh", XavierUniform(tensor.Shape{4 * hidden, hidden}, hidden, hidden, rng, device)),
		bih:    NewParameter("bias_ih", tensor.Zeros(tensor.Shape{4 * hidden}, device)),
		bhh:    NewParameter("bias_hh", tensor.Zeros(tensor.Shape{4 * hidden}, device)),
		hidden: hidden,
	}
}

func (l *LSTMCell) Parameters() []*Parameter {
	return []*Parameter{l.wih, l.whh, l.bih, l.bhh}
}

// HiddenSize returns the cell's hidden dimension.
func (l *LSTMCell) HiddenSize() int { return l.hidden }

// Forward advances the cell one step. x is [B, input]; h and c are
// [B, hidden]. It returns the next hidden and cell states.
func (l *LSTMCell) Forward(tape *autodiff.Tape, x, h, c *tensor.Tensor) (*tensor.Tensor, *tensor.Tensor) {
	zx := autodiff.Add(tape, autodiff.MatMul(tape, x, autodiff.Transpose(tape, l.wih.Tensor())), l.bih.Tensor())
	zh := autodiff.Add(tape, autodiff.MatMul(tape, h, autodiff.Transpose(tape, l.whh.Tensor())), l.bhh.Tensor())
	z := autodiff.Add(tape, zx, zh)

	hd := l.hidden
	i := autodiff.Sigmoid(tape, autodiff.Narrow(tape, z, 1, 0, hd))
	f := autodiff.Sigmoid(tape, autodiff.Narrow(tape, z, 1, hd, hd))
	g := autodiff.Tanh(tape, autodiff.Narrow(tape, z, 1, 2*hd, hd))
	o := autodiff.Sigmoid(tape, autodiff.Narrow(tape, z, 1, 3*hd, hd))

	cNext := autodiff.Add(tape, autodiff.Mul(tape, f, c), autodiff.Mul(tape, i, g))
	hNext := autodiff.Mul(tape, o, autodiff.Tanh(tape, cNext))
	return hNext, cNext
}
