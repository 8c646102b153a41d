package tensor

import (
	"fmt"
	"math/rand"
)

// FromSlice builds a tensor from a flat slice. The data is copied.
func FromSlice(data []float32, shape Shape, device Device) (*Tensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, got %d", shape, shape.NumElements(), len(data))
	}
	t, err := New(shape, device)
	if err != nil {
		return nil, err
	}
	copy(t.data, data)
	return t, nil
}

// Zeros returns a zero-filled tensor.
func Zeros(shape Shape, device Device) *Tensor {
	return MustNew(shape, device)
}

// Ones returns a tensor filled with ones.
func Ones(shape Shape, device Device) *Tensor {
	return Full(shape, 1, device)
}

// Full returns a tensor filled with the given value.
func Full(shape Shape, value float32, device Device) *Tensor {
	t := MustNew(shape, device)
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// Randn returns a tensor with values drawn from N(0, 1).
func Randn(shape Shape, rng *rand.Rand, device Device) *Tensor {
	t := MustNew(shape, device)
	for i := range t.data {
		t.data[i] = float32(rng.NormFloat64())
	}
	return t
}

// Uniform returns a tensor with values drawn uniformly from [lo, hi).
func Uniform(shape Shape, lo, hi float32, rng *rand.Rand, device Device) *Tensor {
	t := MustNew(shape, device)
	for i := range t.data {
		t.data[i] = lo + rng.Float32()*(hi-lo)
	}
	return t
}
