package optim

import (
	"fmt"

	"github.com/caption-ml/caption/internal/tensor"
)

// SGD implements stochastic gradient descent with optional momentum.
type SGD struct {
	groups   []*ParamGroup
	momentum float64

	velocity map[*tensor.Tensor]*tensor.Tensor
}

// NewSGD creates an SGD optimizer. momentum of zero gives plain descent.
func NewSGD(groups []*ParamGroup, momentum float64) *SGD {
	return &SGD{
		groups:   groups,
		momentum: momentum,
		velocity: make(map[*tensor.Tensor]*tensor.Tensor),
	}
}

func (s *SGD) ParamGroups() []*ParamGroup { return s.groups }

func (s *SGD) Step(grads map[*tensor.Tensor]*tensor.Tensor) {
	mu := float32(s.momentum)
	for _, group := range s.groups {
		lr := float32(group.LR)
		for _, p := range group.Params {
			pt := p.Tensor()
			g, ok := grads[pt]
			if !ok {
				continue
			}
			pd, gd := pt.Data(), g.Data()
			if s.momentum == 0 {
				for i := range pd {
					pd[i] -= lr * gd[i]
				}
				continue
			}
			vel, ok := s.velocity[pt]
			if !ok {
				vel = tensor.Zeros(pt.Shape(), pt.Device())
				s.velocity[pt] = vel
			}
			vd := vel.Data()
			for i := range pd {
				vd[i] = mu*vd[i] + gd[i]
				pd[i] -= lr * vd[i]
			}
		}
	}
}

func (s *SGD) StateDict() map[string]*tensor.Tensor {
	dict := make(map[string]*tensor.Tensor)
	for gi, group := range s.groups {
		dict[fmt.Sprintf("lr.%d", gi)] = tensor.Full(tensor.Shape{1}, float32(group.LR), tensor.CPU)
		for _, p := range group.Params {
			if vel, ok := s.velocity[p.Tensor()]; ok {
				dict[p.Name()+".momentum_buffer"] = vel.Clone()
			}
		}
	}
	return dict
}

func (s *SGD) LoadStateDict(dict map[string]*tensor.Tensor) error {
	for gi, group := range s.groups {
		lr, ok := dict[fmt.Sprintf("lr.%d", gi)]
		if !ok {
			return fmt.Errorf("optim: sgd state missing lr for group %d", gi)
		}
		group.LR = float64(lr.Item())
		for _, p := range group.Params {
			pt := p.Tensor()
			if vel, ok := dict[p.Name()+".momentum_buffer"]; ok {
				if !vel.Shape().Equal(pt.Shape()) {
					return fmt.Errorf("optim: sgd state for %q has shape %v, want %v", p.Name(), vel.Shape(), pt.Shape())
				}
				s.velocity[pt] = vel.Clone()
			}
		}
	}
	return nil
}
