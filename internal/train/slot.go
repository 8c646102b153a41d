package train

import "github.com/caption-ml/caption/internal/optim"

// OptimizerSlot is an optional optimizer. A training run always
// optimizes the decoder but only optimizes the encoder when it is not
// frozen; the slot makes that absence explicit instead of a bare nil.
type OptimizerSlot struct {
	opt optim.Optimizer
}

// Some wraps a present optimizer.
func Some(opt optim.Optimizer) OptimizerSlot { return OptimizerSlot{opt: opt} }

// None is the absent optimizer.
func None() OptimizerSlot { return OptimizerSlot{} }

// Present reports whether an optimizer is set.
func (s OptimizerSlot) Present() bool { return s.opt != nil }

// Each calls fn with the optimizer when present.
func (s OptimizerSlot) Each(fn func(optim.Optimizer)) {
	if s.opt != nil {
		fn(s.opt)
	}
}

// Get returns the optimizer; callers must check Present first.
func (s OptimizerSlot) Get() optim.Optimizer { return s.opt }
