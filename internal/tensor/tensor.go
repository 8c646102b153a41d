// Package tensor provides the dense float32 tensor type used throughout
// the captioning trainer.
//
// Tensors are row-major and live on an explicit compute Device. Every
// arithmetic kernel in backend/cpu requires its operands to share a
// device; the device is threaded through constructors rather than held
// in process-wide state.
package tensor

import "fmt"

// Device identifies where a tensor's data is resident.
type Device int

// Supported devices. Training is single-host; CPU is the only device
// with kernels behind it, but the tag keeps residency explicit at every
// call site.
const (
	CPU Device = iota
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	default:
		return "Unknown"
	}
}

// Tensor is a dense row-major float32 tensor.
type Tensor struct {
	data   []float32
	shape  Shape
	stride []int
	device Device
}

// New allocates a zero-filled tensor with the given shape.
func New(shape Shape, device Device) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &Tensor{
		data:   make([]float32, shape.NumElements()),
		shape:  shape.Clone(),
		stride: shape.Strides(),
		device: device,
	}, nil
}

// MustNew is New for shapes known to be valid. Panics otherwise.
func MustNew(shape Shape, device Device) *Tensor {
	t, err := New(shape, device)
	if err != nil {
		panic(err)
	}
	return t
}

// Shape returns the tensor's shape. Callers must not mutate it.
func (t *Tensor) Shape() Shape { return t.shape }

// Strides returns the tensor's row-major strides.
func (t *Tensor) Strides() []int { return t.stride }

// Device returns the device the tensor is resident on.
func (t *Tensor) Device() Device { return t.device }

// NumElements returns the total element count.
func (t *Tensor) NumElements() int { return len(t.data) }

// Data returns the backing slice. Writes through it mutate the tensor.
func (t *Tensor) Data() []float32 { return t.data }

// At returns the element at the given multi-dimensional indices.
func (t *Tensor) At(indices ...int) float32 {
	return t.data[t.offset(indices...)]
}

// Set writes the element at the given multi-dimensional indices.
func (t *Tensor) Set(value float32, indices ...int) {
	t.data[t.offset(indices...)] = value
}

func (t *Tensor) offset(indices ...int) int {
	if len(indices) != len(t.shape) {
		panic(fmt.Sprintf("expected %d indices for shape %v, got %d", len(t.shape), t.shape, len(indices)))
	}
	off := 0
	for i, idx := range indices {
		if idx < 0 || idx >= t.shape[i] {
			panic(fmt.Sprintf("index %d out of range for axis %d (size %d)", idx, i, t.shape[i]))
		}
		off += idx * t.stride[i]
	}
	return off
}

// Item returns the value of a single-element tensor.
func (t *Tensor) Item() float32 {
	if len(t.data) != 1 {
		panic(fmt.Sprintf("Item requires a single-element tensor, got shape %v", t.shape))
	}
	return t.data[0]
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	out := MustNew(t.shape, t.device)
	copy(out.data, t.data)
	return out
}

// CopyFrom overwrites the tensor's data from src, which must have the
// same shape.
func (t *Tensor) CopyFrom(src *Tensor) error {
	if !t.shape.Equal(src.shape) {
		return fmt.Errorf("shape mismatch: %v vs %v", t.shape, src.shape)
	}
	copy(t.data, src.data)
	return nil
}

// View returns a tensor sharing this tensor's data under a different
// shape with the same element count.
func (t *Tensor) View(shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid view shape: %w", err)
	}
	if shape.NumElements() != len(t.data) {
		return nil, fmt.Errorf("view shape %v has %d elements, tensor has %d", shape, shape.NumElements(), len(t.data))
	}
	return &Tensor{
		data:   t.data,
		shape:  shape.Clone(),
		stride: shape.Strides(),
		device: t.device,
	}, nil
}

// String summarizes the tensor without dumping its data.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor%v on %s", t.shape, t.device)
}

// SameDevice panics unless all tensors share one device. Kernels call
// this before touching operand data.
func SameDevice(ts ...*Tensor) {
	if len(ts) == 0 {
		return
	}
	d := ts[0].device
	for _, t := range ts[1:] {
		if t.device != d {
			panic(fmt.Sprintf("tensors on different devices: %s vs %s", d, t.device))
		}
	}
}
