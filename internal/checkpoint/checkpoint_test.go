package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caption-ml/caption/internal/tensor"
)

func testTensor(values ...float32) *tensor.Tensor {
	t := tensor.Zeros(tensor.Shape{len(values)}, tensor.CPU)
	copy(t.Data(), values)
	return t
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.capt")

	tensors := map[string]*tensor.Tensor{
		"a": testTensor(1, 2, 3),
		"b": testTensor(-0.5),
	}
	training := TrainingMeta{Epoch: 4, EpochsSinceImprovement: 2, BestScore: 71.5}

	require.NoError(t, Write(path, tensors, training, FlagHasOptimizer))

	f, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, training, f.Header.Training)
	assert.Equal(t, FlagHasOptimizer, f.Flags)
	assert.Equal(t, []float32{1, 2, 3}, f.Tensors["a"].Data())
	assert.Equal(t, []float32{-0.5}, f.Tensors["b"].Data())
}

func TestReadRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.capt")
	require.NoError(t, os.WriteFile(path, []byte("NOPE-not-a-checkpoint"), 0o644))

	_, err := Read(path)
	require.Error(t, err)
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nothing.capt"))
	require.Error(t, err)
}

func TestSaveWritesLatestOnly(t *testing.T) {
	dir := t.TempDir()
	state := &State{
		Training: TrainingMeta{Epoch: 1},
		Decoder:  map[string]*tensor.Tensor{"fc.weight": testTensor(1)},
	}

	require.NoError(t, Save(dir, state, false))

	_, err := os.Stat(filepath.Join(dir, LatestName))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, BestName))
	assert.True(t, os.IsNotExist(err))
}

func TestSaveWritesBestCopy(t *testing.T) {
	dir := t.TempDir()
	state := &State{
		Training: TrainingMeta{Epoch: 2, BestScore: 80},
		Decoder:  map[string]*tensor.Tensor{"fc.weight": testTensor(7)},
	}

	require.NoError(t, Save(dir, state, true))

	best, err := Load(filepath.Join(dir, BestName))
	require.NoError(t, err)
	assert.Equal(t, 80.0, best.Training.BestScore)
	assert.Equal(t, []float32{7}, best.Decoder["fc.weight"].Data())
}

func TestSaveLoadSections(t *testing.T) {
	dir := t.TempDir()
	state := &State{
		Training:         TrainingMeta{Epoch: 3, EpochsSinceImprovement: 1, BestScore: 60},
		Encoder:          map[string]*tensor.Tensor{"conv1.kernel": testTensor(1, 2)},
		Decoder:          map[string]*tensor.Tensor{"embedding.weight": testTensor(3, 4)},
		EncoderOptimizer: map[string]*tensor.Tensor{"lr.0": testTensor(0.0001)},
		DecoderOptimizer: map[string]*tensor.Tensor{"lr.0": testTensor(0.0004), "step": testTensor(12)},
	}

	require.NoError(t, Save(dir, state, false))

	loaded, err := Load(filepath.Join(dir, LatestName))
	require.NoError(t, err)

	assert.Equal(t, state.Training, loaded.Training)
	assert.Equal(t, []float32{1, 2}, loaded.Encoder["conv1.kernel"].Data())
	assert.Equal(t, []float32{3, 4}, loaded.Decoder["embedding.weight"].Data())
	assert.Equal(t, []float32{0.0001}, loaded.EncoderOptimizer["lr.0"].Data())
	assert.Equal(t, []float32{12}, loaded.DecoderOptimizer["step"].Data())
	assert.Nil(t, loaded.EncoderOptimizer["step"])
}

func TestSaveOverwritesLatest(t *testing.T) {
	dir := t.TempDir()
	first := &State{Training: TrainingMeta{Epoch: 1}, Decoder: map[string]*tensor.Tensor{"w": testTensor(1)}}
	second := &State{Training: TrainingMeta{Epoch: 2}, Decoder: map[string]*tensor.Tensor{"w": testTensor(2)}}

	require.NoError(t, Save(dir, first, false))
	require.NoError(t, Save(dir, second, false))

	loaded, err := Load(filepath.Join(dir, LatestName))
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Training.Epoch)
	assert.Equal(t, []float32{2}, loaded.Decoder["w"].Data())
}
