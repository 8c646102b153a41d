package optim

import (
	"fmt"
	"math"

	"github.com/caption-ml/caption/internal/tensor"
)

// AdamConfig holds the Adam hyperparameters shared by all groups.
type AdamConfig struct {
	Beta1 float64
	Beta2 float64
	Eps   float64
}

// DefaultAdamConfig returns the standard betas 0.9/0.999 and eps 1e-8.
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{Beta1: 0.9, Beta2: 0.999, Eps: 1e-8}
}

// Adam implements the Adam optimizer with bias correction.
type Adam struct {
	groups []*ParamGroup
	beta1  float64
	beta2  float64
	eps    float64

	step int
	m    map[*tensor.Tensor]*tensor.Tensor
	v    map[*tensor.Tensor]*tensor.Tensor
}

// NewAdam creates an Adam optimizer with the default configuration.
func NewAdam(groups []*ParamGroup) *Adam {
	return NewAdamWithConfig(DefaultAdamConfig(), groups)
}

// NewAdamWithConfig creates an Adam optimizer with explicit
// hyperparameters.
func NewAdamWithConfig(cfg AdamConfig, groups []*ParamGroup) *Adam {
	return &Adam{
		groups: groups,
		beta1:  cfg.Beta1,
		beta2:  cfg.Beta2,
		eps:    cfg.Eps,
		m:      make(map[*tensor.Tensor]*tensor.Tensor),
		v:      make(map[*tensor.Tensor]*tensor.Tensor),
	}
}

func (a *Adam) ParamGroups() []*ParamGroup { return a.groups }

func (a *Adam) Step(grads map[*tensor.Tensor]*tensor.Tensor) {
	a.step++
	bc1 := 1 - math.Pow(a.beta1, float64(a.step))
	bc2 := 1 - math.Pow(a.beta2, float64(a.step))

	for _, group := range a.groups {
		lr := float32(group.LR)
		b1 := float32(a.beta1)
		b2 := float32(a.beta2)
		for _, p := range group.Params {
			pt := p.Tensor()
			g, ok := grads[pt]
			if !ok {
				continue
			}
			m, ok := a.m[pt]
			if !ok {
				m = tensor.Zeros(pt.Shape(), pt.Device())
				a.m[pt] = m
			}
			v, ok := a.v[pt]
			if !ok {
				v = tensor.Zeros(pt.Shape(), pt.Device())
				a.v[pt] = v
			}

			pd, gd, md, vd := pt.Data(), g.Data(), m.Data(), v.Data()
			for i := range pd {
				md[i] = b1*md[i] + (1-b1)*gd[i]
				vd[i] = b2*vd[i] + (1-b2)*gd[i]*gd[i]
				mHat := float64(md[i]) / bc1
				vHat := float64(vd[i]) / bc2
				pd[i] -= lr * float32(mHat/(math.Sqrt(vHat)+a.eps))
			}
		}
	}
}

func (a *Adam) StateDict() map[string]*tensor.Tensor {
	dict := map[string]*tensor.Tensor{
		"step": tensor.Full(tensor.Shape{1}, float32(a.step), tensor.CPU),
	}
	for gi, group := range a.groups {
		dict[fmt.Sprintf("lr.%d", gi)] = tensor.Full(tensor.Shape{1}, float32(group.LR), tensor.CPU)
		for _, p := range group.Params {
			pt := p.Tensor()
			if m, ok := a.m[pt]; ok {
				dict[p.Name()+".exp_avg"] = m.Clone()
			}
			if v, ok := a.v[pt]; ok {
				dict[p.Name()+".exp_avg_sq"] = v.Clone()
			}
		}
	}
	return dict
}

func (a *Adam) LoadStateDict(dict map[string]*tensor.Tensor) error {
	step, ok := dict["step"]
	if !ok {
		return fmt.Errorf("optim: adam state missing step")
	}
	a.step = int(step.Item())
	for gi, group := range a.groups {
		lr, ok := dict[fmt.Sprintf("lr.%d", gi)]
		if !ok {
			return fmt.Errorf("optim: adam state missing lr for group %d", gi)
		}
		group.LR = float64(lr.Item())
		for _, p := range group.Params {
			pt := p.Tensor()
			if m, ok := dict[p.Name()+".exp_avg"]; ok {
				if !m.Shape().Equal(pt.Shape()) {
					return fmt.Errorf("optim: adam state for %q has shape %v, want %v", p.Name(), m.Shape(), pt.Shape())
				}
				a.m[pt] = m.Clone()
			}
			if v, ok := dict[p.Name()+".exp_avg_sq"]; ok {
				if !v.Shape().Equal(pt.Shape()) {
					return fmt.Errorf("optim: adam state for %q has shape %v, want %v", p.Name(), v.Shape(), pt.Shape())
				}
				a.v[pt] = v.Clone()
			}
		}
	}
	return nil
}
