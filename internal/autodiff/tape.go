// Package autodiff provides reverse-mode automatic differentiation over
// float32 tensors. Operations executed through this package are recorded
// on a Tape; Backward replays the tape in reverse to accumulate gradients.
package autodiff

import (
	"fmt"

	"github.com/caption-ml/caption/internal/autodiff/ops"
	"github.com/caption-ml/caption/internal/backend/cpu"
	"github.com/caption-ml/caption/internal/tensor"
)

// Tape records operations for later differentiation. A Tape is not safe
// for concurrent use.
type Tape struct {
	ops       []ops.Op
	recording bool
}

// NewTape creates a tape with recording enabled.
func NewTape() *Tape {
	return &Tape{recording: true}
}

// StartRecording resumes recording of operations.
func (t *Tape) StartRecording() { t.recording = true }

// StopRecording pauses recording. Operations executed while paused run
// normally but leave no trace on the tape.
func (t *Tape) StopRecording() { t.recording = false }

// IsRecording reports whether operations are currently being recorded.
func (t *Tape) IsRecording() bool { return t.recording }

// Record appends an operation if recording is enabled.
func (t *Tape) Record(op ops.Op) {
	if t.recording {
		t.ops = append(t.ops, op)
	}
}

// Clear drops all recorded operations, keeping the recording flag as is.
func (t *Tape) Clear() { t.ops = t.ops[:0] }

// NumOps returns the number of recorded operations.
func (t *Tape) NumOps() int { return len(t.ops) }

// Backward walks the tape in reverse from output, accumulating gradients
// into a map keyed by tensor identity. seed is the gradient of the final
// objective with respect to output; pass nil for a ones seed.
//
// Recording is paused for the duration of the walk so that backward
// kernels do not themselves land on the tape.
func (t *Tape) Backward(output *tensor.Tensor, seed *tensor.Tensor) (map[*tensor.Tensor]*tensor.Tensor, error) {
	if output == nil {
		return nil, fmt.Errorf("autodiff: backward from nil output")
	}
	if seed == nil {
		seed = tensor.Ones(output.Shape(), output.Device())
	} else if !seed.Shape().Equal(output.Shape()) {
		return nil, fmt.Errorf("autodiff: seed shape %v does not match output shape %v", seed.Shape(), output.Shape())
	}

	wasRecording := t.recording
	t.recording = false
	defer func() { t.recording = wasRecording }()

	grads := map[*tensor.Tensor]*tensor.Tensor{output: seed}
	for i := len(t.ops) - 1; i >= 0; i-- {
		op := t.ops[i]
		g, ok := grads[op.Output()]
		if !ok {
			continue
		}
		inputGrads := op.Backward(g)
		inputs := op.Inputs()
		if len(inputGrads) != len(inputs) {
			return nil, fmt.Errorf("autodiff: op %T returned %d gradients for %d inputs", op, len(inputGrads), len(inputs))
		}
		for j, in := range inputs {
			ig := inputGrads[j]
			if ig == nil {
				continue
			}
			if acc, ok := grads[in]; ok {
				grads[in] = cpu.Add(acc, ig)
			} else {
				grads[in] = ig
			}
		}
	}
	return grads, nil
}
