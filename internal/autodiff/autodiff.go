package autodiff

import (
	"math/rand"

	"github.com/caption-ml/caption/internal/autodiff/ops"
	"github.com/caption-ml/caption/internal/backend/cpu"
	"github.com/caption-ml/caption/internal/tensor"
)

// Add returns a + b with broadcasting, recording on the tape.
func Add(t *Tape, a, b *tensor.Tensor) *tensor.Tensor {
	out := cpu.Add(a, b)
	t.Record(ops.NewAddOp(a, b, out))
	return out
}

// Sub returns a - b with broadcasting, recording on the tape.
func Sub(t *Tape, a, b *tensor.Tensor) *tensor.Tensor {
	out := cpu.Sub(a, b)
	t.Record(ops.NewSubOp(a, b, out))
	return out
}

// Mul returns the elementwise product a * b with broadcasting.
func Mul(t *Tape, a, b *tensor.Tensor) *tensor.Tensor {
	out := cpu.Mul(a, b)
	t.Record(ops.NewMulOp(a, b, out))
	return out
}

// Div returns the elementwise quotient a / b with broadcasting.
func Div(t *Tape, a, b *tensor.Tensor) *tensor.Tensor {
	out := cpu.Div(a, b)
	t.Record(ops.NewDivOp(a, b, out))
	return out
}

// AddScalar returns x + s elementwise.
func AddScalar(t *Tape, x *tensor.Tensor, s float32) *tensor.Tensor {
	out := cpu.AddScalar(x, s)
	t.Record(ops.NewAddScalarOp(x, out))
	return out
}

// MulScalar returns x * s elementwise.
func MulScalar(t *Tape, x *tensor.Tensor, s float32) *tensor.Tensor {
	out := cpu.MulScalar(x, s)
	t.Record(ops.NewMulScalarOp(x, out, s))
	return out
}

// MatMul returns the matrix product of a [M,K] and b [K,N].
func MatMul(t *Tape, a, b *tensor.Tensor) *tensor.Tensor {
	out := cpu.MatMul(a, b)
	t.Record(ops.NewMatMulOp(a, b, out))
	return out
}

// Sigmoid applies the logistic function elementwise.
func Sigmoid(t *Tape, x *tensor.Tensor) *tensor.Tensor {
	out := cpu.Sigmoid(x)
	t.Record(ops.NewSigmoidOp(x, out))
	return out
}

// Tanh applies the hyperbolic tangent elementwise.
func Tanh(t *Tape, x *tensor.Tensor) *tensor.Tensor {
	out := cpu.Tanh(x)
	t.Record(ops.NewTanhOp(x, out))
	return out
}

// ReLU applies max(x, 0) elementwise.
func ReLU(t *Tape, x *tensor.Tensor) *tensor.Tensor {
	out := cpu.ReLU(x)
	t.Record(ops.NewReLUOp(x, out))
	return out
}

// Softmax normalizes along the last axis.
func Softmax(t *Tape, x *tensor.Tensor) *tensor.Tensor {
	out := cpu.Softmax(x)
	t.Record(ops.NewSoftmaxOp(x, out))
	return out
}

// SumDim sums over a single axis.
func SumDim(t *Tape, x *tensor.Tensor, dim int, keepDim bool) *tensor.Tensor {
	out := cpu.SumDim(x, dim, keepDim)
	t.Record(ops.NewSumDimOp(x, out, dim, keepDim))
	return out
}

// Sum reduces to the scalar sum of all elements.
func Sum(t *Tape, x *tensor.Tensor) *tensor.Tensor {
	out := cpu.Sum(x)
	t.Record(ops.NewSumOp(x, out))
	return out
}

// Mean reduces to the scalar mean of all elements.
func Mean(t *Tape, x *tensor.Tensor) *tensor.Tensor {
	out := cpu.Mean(x)
	t.Record(ops.NewMeanOp(x, out))
	return out
}

// Reshape returns x with a new shape of equal element count.
func Reshape(t *Tape, x *tensor.Tensor, shape tensor.Shape) *tensor.Tensor {
	out := cpu.Reshape(x, shape)
	t.Record(ops.NewReshapeOp(x, out))
	return out
}

// Transpose permutes the axes of x. With no axes, the order is reversed.
func Transpose(t *Tape, x *tensor.Tensor, axes ...int) *tensor.Tensor {
	out := cpu.Transpose(x, axes...)
	t.Record(ops.NewTransposeOp(x, out, axes))
	return out
}

// Concat joins tensors along an existing axis.
func Concat(t *Tape, inputs []*tensor.Tensor, dim int) *tensor.Tensor {
	out := cpu.Concat(inputs, dim)
	t.Record(ops.NewConcatOp(inputs, out, dim))
	return out
}

// Narrow slices length elements along dim starting at start.
func Narrow(t *Tape, x *tensor.Tensor, dim, start, length int) *tensor.Tensor {
	out := cpu.Narrow(x, dim, start, length)
	t.Record(ops.NewNarrowOp(x, out, dim, start))
	return out
}

// PadRows zero-pads a [n, F] tensor to [rows, F].
func PadRows(t *Tape, x *tensor.Tensor, rows int) *tensor.Tensor {
	out := cpu.PadRows(x, rows)
	t.Record(ops.NewPadRowsOp(x, out))
	return out
}

// Stack joins 2D tensors [B, F] into [B, len(inputs), F] along a new
// middle axis.
func Stack(t *Tape, inputs []*tensor.Tensor) *tensor.Tensor {
	expanded := make([]*tensor.Tensor, len(inputs))
	for i, in := range inputs {
		s := in.Shape()
		expanded[i] = Reshape(t, in, tensor.Shape{s[0], 1, s[1]})
	}
	return Concat(t, expanded, 1)
}

// EmbedRows looks up rows of a 2D table by index, as an embedding layer
// does. Repeated indices share gradient through scatter-add.
func EmbedRows(t *Tape, table *tensor.Tensor, rows []int) *tensor.Tensor {
	out := cpu.GatherRows(table, rows)
	t.Record(ops.NewGatherRowsOp(table, out, rows))
	return out
}

// GatherRows selects rows of a 2D tensor by index.
func GatherRows(t *Tape, x *tensor.Tensor, rows []int) *tensor.Tensor {
	out := cpu.GatherRows(x, rows)
	t.Record(ops.NewGatherRowsOp(x, out, rows))
	return out
}

// Conv2D convolves input [N,C,H,W] with kernel [C_out,C,kH,kW].
func Conv2D(t *Tape, input, kernel *tensor.Tensor, stride, padding int) *tensor.Tensor {
	out := cpu.Conv2D(input, kernel, stride, padding)
	t.Record(ops.NewConv2DOp(input, kernel, out, stride, padding))
	return out
}

// MaxPool2D applies 2D max pooling with a square window.
func MaxPool2D(t *Tape, input *tensor.Tensor, kernelSize, stride int) *tensor.Tensor {
	out, argmax := cpu.MaxPool2D(input, kernelSize, stride)
	t.Record(ops.NewMaxPool2DOp(input, out, argmax))
	return out
}

// Dropout applies inverted dropout with keep-probability 1-p. Outside of
// training, or with p == 0, it returns x unchanged.
func Dropout(t *Tape, x *tensor.Tensor, p float64, training bool, rng *rand.Rand) *tensor.Tensor {
	if !training || p <= 0 {
		return x
	}
	scale := float32(1 / (1 - p))
	mask := tensor.MustNew(x.Shape(), x.Device())
	md := mask.Data()
	for i := range md {
		if rng.Float64() >= p {
			md[i] = scale
		}
	}
	out := cpu.Mul(x, mask)
	t.Record(ops.NewDropoutOp(x, out, mask))
	return out
}

// CrossEntropy returns the mean negative log-likelihood of the targets
// under softmax(logits), as a scalar [1] tensor. logits is [N, V] and
// targets holds N class indices.
func CrossEntropy(t *Tape, logits *tensor.Tensor, targets []int) *tensor.Tensor {
	logProbs := cpu.LogSoftmax(logits)
	v := logits.Shape()[1]
	data := logProbs.Data()
	var loss float32
	for i, tgt := range targets {
		loss -= data[i*v+tgt]
	}
	loss /= float32(len(targets))
	out := tensor.Full(tensor.Shape{1}, loss, logits.Device())
	t.Record(ops.NewCrossEntropyOp(logits, out, targets))
	return out
}
