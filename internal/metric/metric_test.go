package metric

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caption-ml/caption/internal/tensor"
)

func TestMeterWeightedAverage(t *testing.T) {
	m := NewMeter()
	m.Update(2, 3) // sum 6
	m.Update(4, 1) // sum 10, count 4

	assert.Equal(t, 4.0, m.Val())
	assert.Equal(t, 10.0, m.Sum())
	assert.Equal(t, 4, m.Count())
	assert.InDelta(t, 2.5, m.Avg(), 1e-9)
}

func TestMeterZeroWeight(t *testing.T) {
	m := NewMeter()
	m.Update(5, 0)

	assert.Equal(t, 5.0, m.Val())
	assert.Equal(t, 0.0, m.Avg())
	assert.Equal(t, 0, m.Count())
}

func TestMeterReset(t *testing.T) {
	m := NewMeter()
	m.Update(3, 2)
	m.Reset()

	assert.Equal(t, 0.0, m.Val())
	assert.Equal(t, 0.0, m.Avg())
	assert.Equal(t, 0, m.Count())
}

func scoresFrom(t *testing.T, rows [][]float32) *tensor.Tensor {
	t.Helper()
	n, v := len(rows), len(rows[0])
	out := tensor.Zeros(tensor.Shape{n, v}, tensor.CPU)
	for i, row := range rows {
		copy(out.Data()[i*v:(i+1)*v], row)
	}
	return out
}

func TestTopKAccuracyExact(t *testing.T) {
	scores := scoresFrom(t, [][]float32{
		{0.1, 0.9, 0.0, 0.0}, // target 1 is top-1
		{0.5, 0.4, 0.3, 0.2}, // target 2 is rank 3
		{0.9, 0.1, 0.0, 0.0}, // target 3 is last
	})
	targets := []int{1, 2, 3}

	top1, err := TopKAccuracy(scores, targets, 1)
	require.NoError(t, err)
	assert.InDelta(t, 100.0/3, top1, 1e-9)

	top3, err := TopKAccuracy(scores, targets, 3)
	require.NoError(t, err)
	assert.InDelta(t, 200.0/3, top3, 1e-9)

	top4, err := TopKAccuracy(scores, targets, 4)
	require.NoError(t, err)
	assert.Equal(t, 100.0, top4)
}

func TestTopKAccuracyRejectsBadK(t *testing.T) {
	scores := scoresFrom(t, [][]float32{{0.1, 0.9}})

	_, err := TopKAccuracy(scores, []int{0}, 3)
	require.Error(t, err)

	_, err = TopKAccuracy(scores, []int{0}, 0)
	require.Error(t, err)
}

func TestTopKAccuracyRejectsLengthMismatch(t *testing.T) {
	scores := scoresFrom(t, [][]float32{{0.1, 0.9}})
	_, err := TopKAccuracy(scores, []int{0, 1}, 1)
	require.Error(t, err)
}
