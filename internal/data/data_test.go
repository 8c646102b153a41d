package data

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caption-ml/caption/internal/tensor"
)

func newSyntheticForTest(t *testing.T, n int) *Synthetic {
	t.Helper()
	ds, err := NewSynthetic(SyntheticConfig{
		NumSamples: n,
		Channels:   1,
		Height:     8,
		Width:      8,
		VocabSize:  20,
		MaxWords:   5,
		Seed:       42,
	})
	require.NoError(t, err)
	return ds
}

func TestSyntheticDeterministic(t *testing.T) {
	ds := newSyntheticForTest(t, 4)

	a, err := ds.Sample(2)
	require.NoError(t, err)
	b, err := ds.Sample(2)
	require.NoError(t, err)

	assert.Equal(t, a.Caption, b.Caption)
	assert.Equal(t, a.Image.Data(), b.Image.Data())
}

func TestSyntheticCaptionFraming(t *testing.T) {
	ds := newSyntheticForTest(t, 8)
	for i := 0; i < 8; i++ {
		s, err := ds.Sample(i)
		require.NoError(t, err)
		assert.Equal(t, SyntheticStart, s.Caption[0])
		assert.Equal(t, SyntheticEnd, s.Caption[len(s.Caption)-1])
		assert.GreaterOrEqual(t, len(s.Caption), 3)
	}
}

func TestSyntheticRejectsOutOfRange(t *testing.T) {
	ds := newSyntheticForTest(t, 2)
	_, err := ds.Sample(2)
	require.Error(t, err)
	_, err = ds.Sample(-1)
	require.Error(t, err)
}

func TestCollatePadsToWidest(t *testing.T) {
	img := func() *tensor.Tensor { return tensor.Ones(tensor.Shape{1, 2, 2}, tensor.CPU) }
	samples := []*Sample{
		{Image: img(), Caption: []int{1, 4, 5, 2}},
		{Image: img(), Caption: []int{1, 4, 2}},
	}

	batch, err := Collate(samples, 0)
	require.NoError(t, err)

	assert.True(t, batch.Images.Shape().Equal(tensor.Shape{2, 1, 2, 2}))
	assert.Equal(t, [][]int{{1, 4, 5, 2}, {1, 4, 2, 0}}, batch.Captions)
	assert.Equal(t, []int{4, 3}, batch.Lengths)
}

func TestCollateRejectsMixedImageShapes(t *testing.T) {
	samples := []*Sample{
		{Image: tensor.Ones(tensor.Shape{1, 2, 2}, tensor.CPU), Caption: []int{1, 2}},
		{Image: tensor.Ones(tensor.Shape{1, 3, 3}, tensor.CPU), Caption: []int{1, 2}},
	}
	_, err := Collate(samples, 0)
	require.Error(t, err)
}

func TestBatchValidateRejectsShortCaption(t *testing.T) {
	batch := &Batch{
		Images:   tensor.Ones(tensor.Shape{1, 1, 2, 2}, tensor.CPU),
		Captions: [][]int{{1, 0}},
		Lengths:  []int{1},
	}
	require.Error(t, batch.Validate())
}

func TestLoaderDeliversAllBatchesInOrder(t *testing.T) {
	ds := newSyntheticForTest(t, 10)
	loader, err := NewLoader(ds, LoaderConfig{BatchSize: 3, Workers: 4})
	require.NoError(t, err)

	assert.Equal(t, 4, loader.NumBatches())

	var indices []int
	var total int
	err = loader.Epoch(context.Background(), func(i int, b *Batch) error {
		indices = append(indices, i)
		total += len(b.Captions)
		return b.Validate()
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, indices)
	assert.Equal(t, 10, total)
}

func TestLoaderShuffleChangesOrder(t *testing.T) {
	ds := newSyntheticForTest(t, 12)

	firstCaption := func(shuffle bool) [][]int {
		loader, err := NewLoader(ds, LoaderConfig{BatchSize: 4, Workers: 2, Shuffle: shuffle, Seed: 7})
		require.NoError(t, err)
		var caps [][]int
		require.NoError(t, loader.Epoch(context.Background(), func(i int, b *Batch) error {
			caps = append(caps, b.Captions[0])
			return nil
		}))
		return caps
	}

	assert.NotEqual(t, firstCaption(false), firstCaption(true))
}

func TestLoaderStopsOnCallbackError(t *testing.T) {
	ds := newSyntheticForTest(t, 20)
	loader, err := NewLoader(ds, LoaderConfig{BatchSize: 2, Workers: 2})
	require.NoError(t, err)

	sentinel := errors.New("stop")
	var calls atomic.Int32
	err = loader.Epoch(context.Background(), func(i int, b *Batch) error {
		if calls.Add(1) == 2 {
			return sentinel
		}
		return nil
	})
	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLoaderHonorsContextCancel(t *testing.T) {
	ds := newSyntheticForTest(t, 20)
	loader, err := NewLoader(ds, LoaderConfig{BatchSize: 2, Workers: 2})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = loader.Epoch(ctx, func(i int, b *Batch) error { return nil })
	require.NoError(t, err)
}

func TestLoaderRejectsBadBatchSize(t *testing.T) {
	ds := newSyntheticForTest(t, 4)
	_, err := NewLoader(ds, LoaderConfig{BatchSize: 0})
	require.Error(t, err)
}
