// Package optim implements gradient-based optimizers and the training
// utilities that operate on them: learning rate decay and gradient
// clipping.
package optim

import (
	"github.com/caption-ml/caption/internal/nn"
	"github.com/caption-ml/caption/internal/tensor"
)

// ParamGroup holds parameters that share a learning rate.
type ParamGroup struct {
	Params []*nn.Parameter
	LR     float64
}

// Optimizer updates parameters from a gradient map keyed by tensor
// identity, as produced by a tape's backward pass.
type Optimizer interface {
	// Step applies one update. Parameters missing from grads are left
	// untouched.
	Step(grads map[*tensor.Tensor]*tensor.Tensor)
	// ParamGroups exposes the optimizer's groups for LR adjustment.
	ParamGroups() []*ParamGroup
	// StateDict captures optimizer state for checkpointing.
	StateDict() map[string]*tensor.Tensor
	// LoadStateDict restores state captured by StateDict.
	LoadStateDict(dict map[string]*tensor.Tensor) error
}

// AdjustLearningRate scales every group's learning rate by shrink.
func AdjustLearningRate(opt Optimizer, shrink float64) {
	for _, g := range opt.ParamGroups() {
		g.LR *= shrink
	}
}

// ClipGradValues clamps each gradient element of the given parameters
// into [-clip, clip]. A clip of zero or less disables clipping.
func ClipGradValues(params []*nn.Parameter, grads map[*tensor.Tensor]*tensor.Tensor, clip float64) {
	if clip <= 0 {
		return
	}
	hi := float32(clip)
	lo := -hi
	for _, p := range params {
		g, ok := grads[p.Tensor()]
		if !ok {
			continue
		}
		data := g.Data()
		for i, v := range data {
			if v > hi {
				data[i] = hi
			} else if v < lo {
				data[i] = lo
			}
		}
	}
}
