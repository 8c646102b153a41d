package optim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caption-ml/caption/internal/nn"
	"github.com/caption-ml/caption/internal/tensor"
)

func newParam(name string, values []float32) *nn.Parameter {
	t := tensor.Zeros(tensor.Shape{len(values)}, tensor.CPU)
	copy(t.Data(), values)
	return nn.NewParameter(name, t)
}

func gradsFor(p *nn.Parameter, values []float32) map[*tensor.Tensor]*tensor.Tensor {
	g := tensor.Zeros(p.Tensor().Shape(), tensor.CPU)
	copy(g.Data(), values)
	return map[*tensor.Tensor]*tensor.Tensor{p.Tensor(): g}
}

func TestSGDStep(t *testing.T) {
	p := newParam("w", []float32{1, 2})
	opt := NewSGD([]*ParamGroup{{Params: []*nn.Parameter{p}, LR: 0.1}}, 0)

	opt.Step(gradsFor(p, []float32{1, -1}))
	assert.InDelta(t, 0.9, p.Tensor().Data()[0], 1e-6)
	assert.InDelta(t, 2.1, p.Tensor().Data()[1], 1e-6)
}

func TestSGDMomentumAccumulates(t *testing.T) {
	p := newParam("w", []float32{0})
	opt := NewSGD([]*ParamGroup{{Params: []*nn.Parameter{p}, LR: 1}}, 0.9)

	opt.Step(gradsFor(p, []float32{1}))
	assert.InDelta(t, -1.0, p.Tensor().Data()[0], 1e-6)

	// Second step: velocity = 0.9*1 + 1 = 1.9.
	opt.Step(gradsFor(p, []float32{1}))
	assert.InDelta(t, -2.9, p.Tensor().Data()[0], 1e-6)
}

func TestAdamFirstStepIsLRSized(t *testing.T) {
	// With bias correction, the first Adam step moves by roughly lr
	// regardless of gradient scale.
	p := newParam("w", []float32{0})
	opt := NewAdam([]*ParamGroup{{Params: []*nn.Parameter{p}, LR: 0.01}})

	opt.Step(gradsFor(p, []float32{100}))
	assert.InDelta(t, -0.01, p.Tensor().Data()[0], 1e-4)
}

func TestAdamConvergesOnQuadratic(t *testing.T) {
	// Minimize (w - 3)^2 by feeding the analytic gradient.
	p := newParam("w", []float32{0})
	opt := NewAdam([]*ParamGroup{{Params: []*nn.Parameter{p}, LR: 0.1}})

	for i := 0; i < 500; i++ {
		w := p.Tensor().Data()[0]
		opt.Step(gradsFor(p, []float32{2 * (w - 3)}))
	}
	assert.InDelta(t, 3.0, p.Tensor().Data()[0], 0.05)
}

func TestAdamSkipsParamsWithoutGrads(t *testing.T) {
	p1 := newParam("a", []float32{1})
	p2 := newParam("b", []float32{1})
	opt := NewAdam([]*ParamGroup{{Params: []*nn.Parameter{p1, p2}, LR: 0.1}})

	opt.Step(gradsFor(p1, []float32{1}))
	assert.Equal(t, float32(1), p2.Tensor().Data()[0])
	assert.NotEqual(t, float32(1), p1.Tensor().Data()[0])
}

func TestAdjustLearningRateCompounds(t *testing.T) {
	p := newParam("w", []float32{0})
	opt := NewAdam([]*ParamGroup{{Params: []*nn.Parameter{p}, LR: 1.0}})

	AdjustLearningRate(opt, 0.8)
	assert.InDelta(t, 0.8, opt.ParamGroups()[0].LR, 1e-9)

	AdjustLearningRate(opt, 0.8)
	assert.InDelta(t, 0.64, opt.ParamGroups()[0].LR, 1e-9)
}

func TestAdjustLearningRateAllGroups(t *testing.T) {
	p1 := newParam("a", []float32{0})
	p2 := newParam("b", []float32{0})
	opt := NewAdam([]*ParamGroup{
		{Params: []*nn.Parameter{p1}, LR: 1.0},
		{Params: []*nn.Parameter{p2}, LR: 0.5},
	})

	AdjustLearningRate(opt, 0.8)
	assert.InDelta(t, 0.8, opt.ParamGroups()[0].LR, 1e-9)
	assert.InDelta(t, 0.4, opt.ParamGroups()[1].LR, 1e-9)
}

func TestClipGradValues(t *testing.T) {
	p := newParam("w", []float32{0, 0, 0})
	grads := gradsFor(p, []float32{10, -10, 0.5})

	ClipGradValues([]*nn.Parameter{p}, grads, 5)
	g := grads[p.Tensor()].Data()
	assert.Equal(t, []float32{5, -5, 0.5}, g)
}

func TestClipGradValuesDisabled(t *testing.T) {
	p := newParam("w", []float32{0})
	grads := gradsFor(p, []float32{10})

	ClipGradValues([]*nn.Parameter{p}, grads, 0)
	assert.Equal(t, float32(10), grads[p.Tensor()].Data()[0])
}

func TestAdamStateDictRoundTrip(t *testing.T) {
	p1 := newParam("w", []float32{0, 0})
	opt1 := NewAdam([]*ParamGroup{{Params: []*nn.Parameter{p1}, LR: 0.05}})
	opt1.Step(gradsFor(p1, []float32{1, 2}))
	opt1.Step(gradsFor(p1, []float32{1, 2}))
	AdjustLearningRate(opt1, 0.8)

	p2 := newParam("w", []float32{0, 0})
	opt2 := NewAdam([]*ParamGroup{{Params: []*nn.Parameter{p2}, LR: 0.05}})
	require.NoError(t, opt2.LoadStateDict(opt1.StateDict()))
	copy(p2.Tensor().Data(), p1.Tensor().Data())

	assert.InDelta(t, 0.04, opt2.ParamGroups()[0].LR, 1e-9)

	// Both optimizers should now take identical steps.
	opt1.Step(gradsFor(p1, []float32{3, -1}))
	opt2.Step(gradsFor(p2, []float32{3, -1}))
	for i := range p1.Tensor().Data() {
		delta1 := p1.Tensor().Data()[i]
		delta2 := p2.Tensor().Data()[i]
		if math.Abs(float64(delta1-delta2)) > 1e-6 {
			t.Fatalf("restored optimizer diverged at %d: %v vs %v", i, delta1, delta2)
		}
	}
}

func TestAdamLoadStateDictRejectsBadMomentShapes(t *testing.T) {
	p1 := newParam("w", []float32{0, 0})
	opt1 := NewAdam([]*ParamGroup{{Params: []*nn.Parameter{p1}, LR: 0.05}})
	opt1.Step(gradsFor(p1, []float32{1, 2}))

	for _, key := range []string{"w.exp_avg", "w.exp_avg_sq"} {
		dict := opt1.StateDict()
		dict[key] = tensor.Zeros(tensor.Shape{3}, tensor.CPU)

		p2 := newParam("w", []float32{0, 0})
		opt2 := NewAdam([]*ParamGroup{{Params: []*nn.Parameter{p2}, LR: 0.05}})
		assert.Error(t, opt2.LoadStateDict(dict), key)
	}
}

func TestSGDStateDictRoundTrip(t *testing.T) {
	p1 := newParam("w", []float32{0})
	opt1 := NewSGD([]*ParamGroup{{Params: []*nn.Parameter{p1}, LR: 0.1}}, 0.9)
	opt1.Step(gradsFor(p1, []float32{1}))

	p2 := newParam("w", []float32{0})
	opt2 := NewSGD([]*ParamGroup{{Params: []*nn.Parameter{p2}, LR: 0.1}}, 0.9)
	require.NoError(t, opt2.LoadStateDict(opt1.StateDict()))
	p2.Tensor().Data()[0] = p1.Tensor().Data()[0]

	opt1.Step(gradsFor(p1, []float32{1}))
	opt2.Step(gradsFor(p2, []float32{1}))
	assert.InDelta(t, float64(p1.Tensor().Data()[0]), float64(p2.Tensor().Data()[0]), 1e-7)
}
