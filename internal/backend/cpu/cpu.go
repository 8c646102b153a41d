// Package cpu implements the arithmetic kernels behind tensor
// operations: broadcast elementwise math, matrix multiplication,
// convolution, pooling, softmax, reductions, and row gather/scatter.
//
// Kernels panic on shape or device violations; those are programmer
// errors, not runtime conditions. Heavy loops fan out through the
// parallel package.
package cpu

import (
	"github.com/caption-ml/caption/internal/parallel"
)

var par = parallel.DefaultConfig()

// SetParallelism overrides the worker configuration used by kernels.
// Intended for benchmarks and tests.
func SetParallelism(cfg parallel.Config) {
	par = cfg
}
