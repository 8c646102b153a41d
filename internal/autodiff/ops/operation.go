// Package ops defines the differentiable operations recorded on the
// gradient tape.
//
// Each operation keeps references to its input and output tensors from
// the forward pass and knows how to turn an upstream output gradient
// into gradients for its inputs. The tape walks recorded operations in
// reverse and accumulates per-tensor gradients through these Backward
// implementations.
package ops

import "github.com/caption-ml/caption/internal/tensor"

// Op is one differentiable operation in the recorded computation.
type Op interface {
	// Inputs returns the forward-pass input tensors, in argument order.
	Inputs() []*tensor.Tensor

	// Output returns the tensor produced by the forward pass.
	Output() *tensor.Tensor

	// Backward maps the gradient of the loss with respect to the output
	// into gradients with respect to each input, aligned with Inputs().
	// A nil entry means no gradient flows to that input.
	Backward(grad *tensor.Tensor) []*tensor.Tensor
}
