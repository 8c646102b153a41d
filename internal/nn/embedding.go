package nn

import (
	"math/rand"

	"github.com/caption-ml/caption/internal/autodiff"
	"github.com/caption-ml/caption/internal/tensor"
)

// Embedding maps token indices to dense vectors via a [vocabSize,
// embedDim] lookup table.
type Embedding struct {
	weight *Parameter
}

// NewEmbedding creates an embedding table initialized uniformly in
// [-0.1, 0.1].
func NewEmbedding(vocabSize, embedDim int, rng *rand.Rand, device tensor.Device) *Embedding {
	w := EmbeddingInit(tensor.Shape{vocabSize, embedDim}, rng, device)
	return &Embedding{weight: NewParameter("weight", w)}
}

func (e *Embedding) Parameters() []*Parameter {
	return []*Parameter{e.weight}
}

// Forward looks up one vector per index, returning [len(indices), embedDim].
func (e *Embedding) Forward(tape *autodiff.Tape, indices []int) *tensor.Tensor {
	return autodiff.EmbedRows(tape, e.weight.Tensor(), indices)
}
