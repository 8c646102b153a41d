// Package nn provides neural network building blocks: parameters,
// layers and the module plumbing that ties them to optimizers and
// checkpoints.
package nn

import (
	"fmt"

	"github.com/caption-ml/caption/internal/tensor"
)

// Parameter is a named trainable tensor.
type Parameter struct {
	name   string
	tensor *tensor.Tensor
}

// NewParameter wraps a tensor as a named parameter.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return &Parameter{name: name, tensor: t}
}

// Name returns the parameter's name within its module.
func (p *Parameter) Name() string { return p.name }

// Tensor returns the underlying tensor.
func (p *Parameter) Tensor() *tensor.Tensor { return p.tensor }

// Module is anything that exposes trainable parameters.
type Module interface {
	Parameters() []*Parameter
}

// Tensors extracts the raw tensors behind a parameter list.
func Tensors(params []*Parameter) []*tensor.Tensor {
	ts := make([]*tensor.Tensor, len(params))
	for i, p := range params {
		ts[i] = p.tensor
	}
	return ts
}

// Prefixed returns a copy of params with prefix prepended to each name,
// separated by a dot. Used when nesting modules.
func Prefixed(prefix string, params []*Parameter) []*Parameter {
	out := make([]*Parameter, len(params))
	for i, p := range params {
		out[i] = &Parameter{name: prefix + "." + p.name, tensor: p.tensor}
	}
	return out
}

// StateDict flattens a module's parameters into a name-to-tensor map.
// Duplicate names are an error.
func StateDict(m Module) (map[string]*tensor.Tensor, error) {
	dict := make(map[string]*tensor.Tensor)
	for _, p := range m.Parameters() {
		if _, ok := dict[p.name]; ok {
			return nil, fmt.Errorf("nn: duplicate parameter name %q", p.name)
		}
		dict[p.name] = p.tensor
	}
	return dict, nil
}

// LoadStateDict copies values from dict into the module's parameters,
// matching by name. Every parameter must be present with a matching
// shape; unknown names in dict are an error.
func LoadStateDict(m Module, dict map[string]*tensor.Tensor) error {
	params := m.Parameters()
	seen := make(map[string]bool, len(params))
	for _, p := range params {
		src, ok := dict[p.name]
		if !ok {
			return fmt.Errorf("nn: missing parameter %q", p.name)
		}
		if !src.Shape().Equal(p.tensor.Shape()) {
			return fmt.Errorf("nn: parameter %q shape %v does not match stored shape %v", p.name, p.tensor.Shape(), src.Shape())
		}
		if err := p.tensor.CopyFrom(src); err != nil {
			return fmt.Errorf("nn: loading parameter %q: %w", p.name, err)
		}
		seen[p.name] = true
	}
	for name := range dict {
		if !seen[name] {
			return fmt.Errorf("nn: unknown parameter %q in state dict", name)
		}
	}
	return nil
}
