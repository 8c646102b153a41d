package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caption-ml/caption/internal/tensor"
)

// Section name prefixes inside the flat tensor namespace.
const (
	encoderPrefix          = "encoder."
	decoderPrefix          = "decoder."
	encoderOptimizerPrefix = "encoder_optimizer."
	decoderOptimizerPrefix = "decoder_optimizer."
)

// State is everything a training run needs to resume: model weights,
// optimizer state and the loop's progress counters. EncoderOptimizer is
// nil when the encoder is frozen.
type State struct {
	Training TrainingMeta

	Encoder          map[string]*tensor.Tensor
	Decoder          map[string]*tensor.Tensor
	EncoderOptimizer map[string]*tensor.Tensor
	DecoderOptimizer map[string]*tensor.Tensor
}

// Save writes checkpoint_latest.capt under dir, and copies the same
// state to checkpoint_best.capt when isBest is true.
func Save(dir string, state *State, isBest bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating checkpoint directory: %w", err)
	}

	flat := make(map[string]*tensor.Tensor)
	addSection(flat, encoderPrefix, state.Encoder)
	addSection(flat, decoderPrefix, state.Decoder)
	addSection(flat, encoderOptimizerPrefix, state.EncoderOptimizer)
	addSection(flat, decoderOptimizerPrefix, state.DecoderOptimizer)

	var flags uint32
	if len(state.DecoderOptimizer) > 0 || len(state.EncoderOptimizer) > 0 {
		flags |= FlagHasOptimizer
	}

	latest := filepath.Join(dir, LatestName)
	if err := Write(latest, flat, state.Training, flags); err != nil {
		return fmt.Errorf("saving latest checkpoint: %w", err)
	}
	if isBest {
		if err := Write(filepath.Join(dir, BestName), flat, state.Training, flags); err != nil {
			return fmt.Errorf("saving best checkpoint: %w", err)
		}
	}
	return nil
}

// Load reads a checkpoint file and splits its flat tensor namespace
// back into sections.
func Load(path string) (*State, error) {
	f, err := Read(path)
	if err != nil {
		return nil, err
	}

	state := &State{Training: f.Header.Training}
	for name, t := range f.Tensors {
		switch {
		case strings.HasPrefix(name, encoderOptimizerPrefix):
			state.EncoderOptimizer = put(state.EncoderOptimizer, strings.TrimPrefix(name, encoderOptimizerPrefix), t)
		case strings.HasPrefix(name, decoderOptimizerPrefix):
			state.DecoderOptimizer = put(state.DecoderOptimizer, strings.TrimPrefix(name, decoderOptimizerPrefix), t)
		case strings.HasPrefix(name, encoderPrefix):
			state.Encoder = put(state.Encoder, strings.TrimPrefix(name, encoderPrefix), t)
		case strings.HasPrefix(name, decoderPrefix):
			state.Decoder = put(state.Decoder, strings.TrimPrefix(name, decoderPrefix), t)
		default:
			return nil, fmt.Errorf("checkpoint tensor %q belongs to no known section", name)
		}
	}
	return state, nil
}

func addSection(flat map[string]*tensor.Tensor, prefix string, section map[string]*tensor.Tensor) {
	for name, t := range section {
		flat[prefix+name] = t
	}
}

func put(m map[string]*tensor.Tensor, name string, t *tensor.Tensor) map[string]*tensor.Tensor {
	if m == nil {
		m = make(map[string]*tensor.Tensor)
	}
	m[name] = t
	return m
}
