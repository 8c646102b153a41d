package nn

import (
	"math"
	"math/rand"

	"github.com/caption-ml/caption/internal/tensor"
)

// XavierUniform fills a weight tensor with values drawn uniformly from
// [-a, a] where a = sqrt(6 / (fanIn + fanOut)).
func XavierUniform(shape tensor.Shape, fanIn, fanOut int, rng *rand.Rand, device tensor.Device) *tensor.Tensor {
	a := float32(math.Sqrt(6.0 / float64(fanIn+fanOut)))
	return tensor.Uniform(shape, -a, a, rng, device)
}

// EmbeddingInit fills an embedding table uniformly from [-0.1, 0.1].
func EmbeddingInit(shape tensor.Shape, rng *rand.Rand, device tensor.Device) *tensor.Tensor {
	return tensor.Uniform(shape, -0.1, 0.1, rng, device)
}
