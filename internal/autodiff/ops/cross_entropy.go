package ops

import (
	"github.com/caption-ml/caption/internal/backend/cpu"
	"github.com/caption-ml/caption/internal/tensor"
)

// CrossEntropyOp records the mean cross-entropy between logits [N, V]
// and integer class targets of length N. The output is a scalar [1].
type CrossEntropyOp struct {
	logits, out *tensor.Tensor
	targets     []int
}

// NewCrossEntropyOp creates a cross-entropy loss operation.
func NewCrossEntropyOp(logits, out *tensor.Tensor, targets []int) *CrossEntropyOp {
	return &CrossEntropyOp{logits: logits, out: out, targets: targets}
}

func (op *CrossEntropyOp) Inputs() []*tensor.Tensor { return []*tensor.Tensor{op.logits} }
func (op *CrossEntropyOp) Output() *tensor.Tensor   { return op.out }

// Backward: dL/dlogits = (softmax(logits) - onehot(targets)) / N,
// scaled by the upstream scalar gradient.
func (op *CrossEntropyOp) Backward(grad *tensor.Tensor) []*tensor.Tensor {
	n := op.logits.Shape()[0]
	v := op.logits.Shape()[1]
	probs := cpu.Softmax(op.logits)
	g := grad.Item() / float32(n)
	data := probs.Data()
	for i, t := range op.targets {
		data[i*v+t] -= 1
	}
	return []*tensor.Tensor{cpu.MulScalar(probs, g)}
}
