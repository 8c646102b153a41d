package train

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caption-ml/caption/internal/nn"
	"github.com/caption-ml/caption/internal/optim"
	"github.com/caption-ml/caption/internal/tensor"
)

// stubRunner feeds a scripted sequence of validation scores.
type stubRunner struct {
	scores      []float64
	trainCalls  int
	validated   int
	trainEpochs []int
}

func (s *stubRunner) TrainEpoch(_ context.Context, epoch int) error {
	s.trainCalls++
	s.trainEpochs = append(s.trainEpochs, epoch)
	return nil
}

func (s *stubRunner) Validate(context.Context) (float64, error) {
	score := s.scores[s.validated%len(s.scores)]
	s.validated++
	return score, nil
}

type savedCall struct {
	p      Progress
	isBest bool
}

type stubSaver struct {
	calls []savedCall
}

func (s *stubSaver) Save(p Progress, isBest bool) error {
	s.calls = append(s.calls, savedCall{p: p, isBest: isBest})
	return nil
}

func newLROptimizer(lr float64) optim.Optimizer {
	p := nn.NewParameter("w", tensor.Zeros(tensor.Shape{1}, tensor.CPU))
	return optim.NewAdam([]*optim.ParamGroup{{Params: []*nn.Parameter{p}, LR: lr}})
}

func TestLoopTracksBestScore(t *testing.T) {
	runner := &stubRunner{scores: []float64{0.3, 0.5, 0.4, 0.6}}
	saver := &stubSaver{}
	loop := &Loop{Cfg: DefaultLoopConfig(4), Runner: runner, Saver: saver}

	p, err := loop.Run(context.Background(), Progress{})
	require.NoError(t, err)

	assert.Equal(t, 0.6, p.BestScore)
	assert.Equal(t, 0, p.EpochsSinceImprovement)
	assert.Equal(t, 4, p.Epoch)

	require.Len(t, saver.calls, 4)
	wantBest := []bool{true, true, false, true}
	for i, call := range saver.calls {
		assert.Equal(t, wantBest[i], call.isBest, "epoch %d", i)
	}
}

func TestLoopEarlyStopsAfterTwentyStagnantEpochs(t *testing.T) {
	// Improvement only on the first epoch; afterwards the counter grows
	// by one per epoch and the loop must stop before training epoch 21
	// of stagnation.
	runner := &stubRunner{scores: []float64{0.5}}
	loop := &Loop{Cfg: DefaultLoopConfig(100), Runner: runner}

	p, err := loop.Run(context.Background(), Progress{})
	require.NoError(t, err)

	assert.Equal(t, Stopped, loop.State())
	assert.Equal(t, 20, p.EpochsSinceImprovement)
	// Epoch 0 improves, epochs 1-20 stagnate, epoch 21 never trains.
	assert.Equal(t, 21, runner.trainCalls)
}

func TestLoopDecaysAtStagnationMultiplesOfEight(t *testing.T) {
	runner := &stubRunner{scores: []float64{0.5}}
	opt := newLROptimizer(1.0)
	loop := &Loop{Cfg: DefaultLoopConfig(100), Runner: runner, Optimizers: []optim.Optimizer{opt}}

	_, err := loop.Run(context.Background(), Progress{})
	require.NoError(t, err)

	// Two decays (at stagnation counts 8 and 16): 1.0 * 0.8^2.
	assert.InDelta(t, 0.64, opt.ParamGroups()[0].LR, 1e-9)
}

func TestLoopNoDecayAtZeroStagnation(t *testing.T) {
	runner := &stubRunner{scores: []float64{0.1, 0.2, 0.3, 0.4}}
	opt := newLROptimizer(1.0)
	loop := &Loop{Cfg: DefaultLoopConfig(4), Runner: runner, Optimizers: []optim.Optimizer{opt}}

	_, err := loop.Run(context.Background(), Progress{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, opt.ParamGroups()[0].LR)
}

func TestLoopSaveFreqGatesCheckpoints(t *testing.T) {
	runner := &stubRunner{scores: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}}
	saver := &stubSaver{}
	cfg := DefaultLoopConfig(6)
	cfg.SaveFreq = 3
	loop := &Loop{Cfg: cfg, Runner: runner, Saver: saver}

	_, err := loop.Run(context.Background(), Progress{})
	require.NoError(t, err)

	require.Len(t, saver.calls, 2)
	assert.Equal(t, 3, saver.calls[0].p.Epoch)
	assert.Equal(t, 6, saver.calls[1].p.Epoch)
}

func TestLoopResumesFromProgress(t *testing.T) {
	runner := &stubRunner{scores: []float64{0.9}}
	loop := &Loop{Cfg: DefaultLoopConfig(5), Runner: runner}

	p, err := loop.Run(context.Background(), Progress{Epoch: 3, BestScore: 0.5})
	require.NoError(t, err)

	assert.Equal(t, []int{3, 4}, runner.trainEpochs)
	assert.Equal(t, 0.9, p.BestScore)
}

func TestLoopResumedStagnationStillStops(t *testing.T) {
	runner := &stubRunner{scores: []float64{0.1}}
	loop := &Loop{Cfg: DefaultLoopConfig(100), Runner: runner}

	p, err := loop.Run(context.Background(), Progress{EpochsSinceImprovement: 20, BestScore: 0.5})
	require.NoError(t, err)

	assert.Equal(t, 0, runner.trainCalls)
	assert.Equal(t, 20, p.EpochsSinceImprovement)
	assert.Equal(t, Stopped, loop.State())
}

func TestLoopContextCancellation(t *testing.T) {
	runner := &stubRunner{scores: []float64{0.5}}
	loop := &Loop{Cfg: DefaultLoopConfig(10), Runner: runner}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loop.Run(ctx, Progress{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, runner.trainCalls)
}

func TestOptimizerSlot(t *testing.T) {
	assert.False(t, None().Present())

	opt := newLROptimizer(0.1)
	slot := Some(opt)
	require.True(t, slot.Present())
	assert.Equal(t, opt, slot.Get())

	called := 0
	slot.Each(func(optim.Optimizer) { called++ })
	None().Each(func(optim.Optimizer) { called += 100 })
	assert.Equal(t, 1, called)
}
