package model

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/caption-ml/caption/internal/autodiff"
	"github.com/caption-ml/caption/internal/nn"
	"github.com/caption-ml/caption/internal/tensor"
)

// DecoderConfig sizes the attention decoder.
type DecoderConfig struct {
	AttentionDim int
	EmbedDim     int
	DecoderDim   int
	VocabSize    int
	EncoderDim   int
	Dropout      float64
}

// DecoderOutput carries everything the training step needs from one
// decoder forward pass. Scores and Alphas are ordered by the sorted
// batch; SortIndex maps sorted positions back to the caller's order.
type DecoderOutput struct {
	Scores         *tensor.Tensor // [B, maxDecode, VocabSize]
	Alphas         *tensor.Tensor // [B, maxDecode, L]
	SortedCaptions [][]int
	DecodeLengths  []int
	SortIndex      []int
}

// Decoder generates captions one token at a time, attending over the
// encoder's feature grid at every step. Samples are processed sorted by
// caption length so each timestep runs only the still-active prefix of
// the batch.
type Decoder struct {
	embedding *nn.Embedding
	attention *nn.Attention
	cell      *nn.LSTMCell
	initH     *nn.Linear
	initC     *nn.Linear
	fBeta     *nn.Linear
	dropout   *nn.Dropout
	fc        *nn.Linear

	cfg DecoderConfig
}

// NewDecoder builds the decoder from its configuration.
func NewDecoder(cfg DecoderConfig, rng *rand.Rand, device tensor.Device) *Decoder {
	return &Decoder{
		embedding: nn.NewEmbedding(cfg.VocabSize, cfg.EmbedDim, rng, device),
		attention: nn.NewAttention(cfg.EncoderDim, cfg.DecoderDim, cfg.AttentionDim, rng, device),
		cell:      nn.NewLSTMCell(cfg.EmbedDim+cfg.EncoderDim, cfg.DecoderDim, rng, device),
		initH:     nn.NewLinear(cfg.EncoderDim, cfg.DecoderDim, rng, device),
		initC:     nn.NewLinear(cfg.EncoderDim, cfg.DecoderDim, rng, device),
		fBeta:     nn.NewLinear(cfg.DecoderDim, cfg.EncoderDim, rng, device),
		dropout:   nn.NewDropout(cfg.Dropout, rng),
		fc:        nn.NewLinear(cfg.DecoderDim, cfg.VocabSize, rng, device),
		cfg:       cfg,
	}
}

func (d *Decoder) Parameters() []*nn.Parameter {
	var params []*nn.Parameter
	params = append(params, nn.Prefixed("embedding", d.embedding.Parameters())...)
	params = append(params, nn.Prefixed("attention", d.attention.Parameters())...)
	params = append(params, nn.Prefixed("cell", d.cell.Parameters())...)
	params = append(params, nn.Prefixed("init_h", d.initH.Parameters())...)
	params = append(params, nn.Prefixed("init_c", d.initC.Parameters())...)
	params = append(params, nn.Prefixed("f_beta", d.fBeta.Parameters())...)
	params = append(params, nn.Prefixed("fc", d.fc.Parameters())...)
	return params
}

// Config returns the decoder's configuration.
func (d *Decoder) Config() DecoderConfig { return d.cfg }

// initState produces the initial hidden and cell states from the mean
// encoder feature vector.
func (d *Decoder) initState(tape *autodiff.Tape, features *tensor.Tensor) (*tensor.Tensor, *tensor.Tensor) {
	l := features.Shape()[1]
	mean := autodiff.MulScalar(tape, autodiff.SumDim(tape, features, 1, false), 1/float32(l))
	h := autodiff.Tanh(tape, d.initH.Forward(tape, mean))
	c := autodiff.Tanh(tape, d.initC.Forward(tape, mean))
	return h, c
}

// gatherBatch reorders the batch dimension of a 3D tensor.
func gatherBatch(tape *autodiff.Tape, x *tensor.Tensor, order []int) *tensor.Tensor {
	s := x.Shape()
	flat := autodiff.Reshape(tape, x, tensor.Shape{s[0], s[1] * s[2]})
	flat = autodiff.GatherRows(tape, flat, order)
	return autodiff.Reshape(tape, flat, tensor.Shape{len(order), s[1], s[2]})
}

// Forward teacher-forces the decoder over a padded caption batch.
// features is [B, L, EncoderDim]; captions is the padded [B][maxLen]
// token matrix and lengths the true caption lengths including the start
// and end markers. Each caption decodes for length-1 steps, since the
// end marker is never fed as input.
func (d *Decoder) Forward(tape *autodiff.Tape, features *tensor.Tensor, captions [][]int, lengths []int, training bool) (*DecoderOutput, error) {
	b := features.Shape()[0]
	if len(captions) != b || len(lengths) != b {
		return nil, fmt.Errorf("model: batch size mismatch: %d features, %d captions, %d lengths", b, len(captions), len(lengths))
	}
	for i, l := range lengths {
		if l < 2 {
			return nil, fmt.Errorf("model: caption %d has length %d, need at least 2", i, l)
		}
	}

	// Sort by caption length, longest first, so later timesteps can
	// simply shrink the batch.
	order := make([]int, b)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return lengths[order[i]] > lengths[order[j]] })

	sortedCaptions := make([][]int, b)
	decodeLengths := make([]int, b)
	for i, src := range order {
		sortedCaptions[i] = captions[src]
		decodeLengths[i] = lengths[src] - 1
	}
	features = gatherBatch(tape, features, order)

	h, c := d.initState(tape, features)
	maxDecode := decodeLengths[0]

	stepScores := make([]*tensor.Tensor, maxDecode)
	stepAlphas := make([]*tensor.Tensor, maxDecode)

	for t := 0; t < maxDecode; t++ {
		n := 0
		for _, dl := range decodeLengths {
			if dl > t {
				n++
			}
		}

		// States and features shrink with the active batch. h and c
		// already have the previous step's active size.
		h = autodiff.Narrow(tape, h, 0, 0, n)
		c = autodiff.Narrow(tape, c, 0, 0, n)
		activeFeatures := autodiff.Narrow(tape, features, 0, 0, n)

		tokens := make([]int, n)
		for i := 0; i < n; i++ {
			tokens[i] = sortedCaptions[i][t]
		}
		embedded := d.embedding.Forward(tape, tokens)

		context, alpha := d.attention.Forward(tape, activeFeatures, h)
		gate := autodiff.Sigmoid(tape, d.fBeta.Forward(tape, h))
		context = autodiff.Mul(tape, gate, context)

		h, c = d.cell.Forward(tape, autodiff.Concat(tape, []*tensor.Tensor{embedded, context}, 1), h, c)

		preds := d.fc.Forward(tape, d.dropout.Forward(tape, h, training))
		stepScores[t] = autodiff.PadRows(tape, preds, b)
		stepAlphas[t] = autodiff.PadRows(tape, alpha, b)
	}

	out := &DecoderOutput{
		Scores:         autodiff.Stack(tape, stepScores), // [B, maxDecode, V]
		Alphas:         autodiff.Stack(tape, stepAlphas), // [B, maxDecode, L]
		SortedCaptions: sortedCaptions,
		DecodeLengths:  decodeLengths,
		SortIndex:      order,
	}
	return out, nil
}
