package train

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caption-ml/caption/internal/data"
	"github.com/caption-ml/caption/internal/model"
	"github.com/caption-ml/caption/internal/nn"
	"github.com/caption-ml/caption/internal/optim"
	"github.com/caption-ml/caption/internal/tensor"
)

func newSmokeSetup(t *testing.T, freezeEncoder bool) (*Trainer, *data.Loader) {
	t.Helper()
	rng := rand.New(rand.NewSource(1))

	encoder := model.NewEncoder(model.EncoderConfig{InChannels: 1, FeatureDim: 8}, rng, tensor.CPU)
	encoder.SetFrozen(freezeEncoder)
	decoder := model.NewDecoder(model.DecoderConfig{
		AttentionDim: 6,
		EmbedDim:     5,
		DecoderDim:   7,
		VocabSize:    16,
		EncoderDim:   8,
		Dropout:      0.1,
	}, rng, tensor.CPU)

	decoderOpt := optim.NewAdam([]*optim.ParamGroup{{Params: decoder.Parameters(), LR: 4e-3}})
	encoderSlot := None()
	if !freezeEncoder {
		encoderSlot = Some(optim.NewAdam([]*optim.ParamGroup{{Params: encoder.Parameters(), LR: 1e-3}}))
	}

	ds, err := data.NewSynthetic(data.SyntheticConfig{
		NumSamples: 6,
		Channels:   1,
		Height:     16,
		Width:      16,
		VocabSize:  16,
		MaxWords:   4,
		Seed:       3,
	})
	require.NoError(t, err)
	loader, err := data.NewLoader(ds, data.LoaderConfig{BatchSize: 3, Workers: 2, Shuffle: true, Seed: 3})
	require.NoError(t, err)

	trainer := &Trainer{
		Encoder:    encoder,
		Decoder:    decoder,
		DecoderOpt: decoderOpt,
		EncoderOpt: encoderSlot,
		Cfg:        Config{GradClip: 5, AlphaC: 1, PrintFreq: 0, TopK: 5},
	}
	return trainer, loader
}

func snapshot(params []*nn.Parameter) [][]float32 {
	out := make([][]float32, len(params))
	for i, p := range params {
		out[i] = append([]float32(nil), p.Tensor().Data()...)
	}
	return out
}

func changed(before [][]float32, params []*nn.Parameter) bool {
	for i, p := range params {
		for j, v := range p.Tensor().Data() {
			if v != before[i][j] {
				return true
			}
		}
	}
	return false
}

func TestTrainEpochUpdatesDecoder(t *testing.T) {
	trainer, loader := newSmokeSetup(t, true)
	before := snapshot(trainer.Decoder.Parameters())
	encBefore := snapshot(trainer.Encoder.Parameters())

	stats, err := trainer.TrainEpoch(context.Background(), loader, 0)
	require.NoError(t, err)

	assert.False(t, math.IsNaN(stats.Loss))
	assert.Greater(t, stats.Loss, 0.0)
	assert.True(t, changed(before, trainer.Decoder.Parameters()), "decoder parameters did not move")
	assert.False(t, changed(encBefore, trainer.Encoder.Parameters()), "frozen encoder parameters moved")
}

func TestTrainEpochUpdatesEncoderWhenUnfrozen(t *testing.T) {
	trainer, loader := newSmokeSetup(t, false)
	encBefore := snapshot(trainer.Encoder.Parameters())

	_, err := trainer.TrainEpoch(context.Background(), loader, 0)
	require.NoError(t, err)

	assert.True(t, changed(encBefore, trainer.Encoder.Parameters()), "encoder parameters did not move")
}

func TestTrainingReducesLossOnTinyDataset(t *testing.T) {
	trainer, loader := newSmokeSetup(t, true)

	first, err := trainer.TrainEpoch(context.Background(), loader, 0)
	require.NoError(t, err)
	var last EpochStats
	for epoch := 1; epoch < 8; epoch++ {
		last, err = trainer.TrainEpoch(context.Background(), loader, epoch)
		require.NoError(t, err)
	}
	assert.Less(t, last.Loss, first.Loss, "loss did not decrease over epochs")
}

func TestValidateDoesNotUpdateParams(t *testing.T) {
	trainer, loader := newSmokeSetup(t, false)
	decBefore := snapshot(trainer.Decoder.Parameters())
	encBefore := snapshot(trainer.Encoder.Parameters())

	stats, err := trainer.Validate(context.Background(), loader)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, stats.TopK, 0.0)
	assert.LessOrEqual(t, stats.TopK, 100.0)
	assert.False(t, changed(decBefore, trainer.Decoder.Parameters()))
	assert.False(t, changed(encBefore, trainer.Encoder.Parameters()))
}

func poisonParameter(t *testing.T, params []*nn.Parameter, name string) {
	t.Helper()
	for _, p := range params {
		if p.Name() == name {
			data := p.Tensor().Data()
			data[0] = float32(math.NaN())
			return
		}
	}
	t.Fatalf("no parameter named %q", name)
}

func TestNonFiniteLossIsFatal(t *testing.T) {
	trainer, loader := newSmokeSetup(t, true)
	poisonParameter(t, trainer.Decoder.Parameters(), "fc.weight")

	_, err := trainer.TrainEpoch(context.Background(), loader, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-finite loss")

	_, err = trainer.Validate(context.Background(), loader)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-finite loss")
}

func TestTopKBoundedDuringTraining(t *testing.T) {
	trainer, loader := newSmokeSetup(t, true)

	stats, err := trainer.TrainEpoch(context.Background(), loader, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.TopK, 0.0)
	assert.LessOrEqual(t, stats.TopK, 100.0)
}
