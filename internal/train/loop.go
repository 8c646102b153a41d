package train

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/caption-ml/caption/internal/optim"
)

// Loop state machine.
type State int

const (
	Running      State = iota
	DecayPending       // an LR decay is due before the next training pass
	Stopped            // early stop triggered
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case DecayPending:
		return "decay_pending"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Progress is the loop's resumable position, passed by value so every
// hand-off is explicit.
type Progress struct {
	Epoch                  int
	EpochsSinceImprovement int
	BestScore              float64
}

// Runner abstracts the expensive epoch work so the orchestration rules
// can be tested with stubs.
type Runner interface {
	TrainEpoch(ctx context.Context, epoch int) error
	Validate(ctx context.Context) (float64, error)
}

// Saver persists progress after an epoch.
type Saver interface {
	Save(p Progress, isBest bool) error
}

// LoopConfig holds the orchestration constants.
type LoopConfig struct {
	Epochs        int // upper bound on epochs, counted from zero
	SaveFreq      int // checkpoint every SaveFreq epochs; <= 1 means every epoch
	StopAfter     int // stagnant epochs before early stop
	DecayInterval int // stagnant-epoch multiple that triggers LR decay
	DecayFactor   float64
}

// DefaultLoopConfig mirrors the reference training schedule: stop after
// 20 stagnant epochs, shrink LRs by 0.8 at every eighth stagnant epoch.
func DefaultLoopConfig(epochs int) LoopConfig {
	return LoopConfig{
		Epochs:        epochs,
		SaveFreq:      1,
		StopAfter:     20,
		DecayInterval: 8,
		DecayFactor:   0.8,
	}
}

// Loop orchestrates epochs: decay, train, validate, track the best
// score, checkpoint.
type Loop struct {
	Cfg        LoopConfig
	Runner     Runner
	Saver      Saver
	Optimizers []optim.Optimizer // every optimizer subject to LR decay
	Log        *slog.Logger

	state State
}

// State returns the loop's current state.
func (l *Loop) State() State { return l.state }

// Run executes epochs from start.Epoch until the epoch budget is spent
// or early stopping fires, returning the final progress.
func (l *Loop) Run(ctx context.Context, start Progress) (Progress, error) {
	p := start
	l.state = Running

	for epoch := p.Epoch; epoch < l.Cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return p, err
		}

		if p.EpochsSinceImprovement >= l.Cfg.StopAfter {
			l.state = Stopped
			l.logger().Info("early stop",
				"epoch", epoch, "epochs_since_improvement", p.EpochsSinceImprovement)
			break
		}
		if p.EpochsSinceImprovement > 0 && p.EpochsSinceImprovement%l.Cfg.DecayInterval == 0 {
			l.state = DecayPending
			for _, opt := range l.Optimizers {
				optim.AdjustLearningRate(opt, l.Cfg.DecayFactor)
			}
			l.logger().Info("learning rate decayed",
				"epoch", epoch, "factor", l.Cfg.DecayFactor,
				"epochs_since_improvement", p.EpochsSinceImprovement)
			l.state = Running
		}

		if err := l.Runner.TrainEpoch(ctx, epoch); err != nil {
			return p, fmt.Errorf("training epoch %d: %w", epoch, err)
		}

		score, err := l.Runner.Validate(ctx)
		if err != nil {
			return p, fmt.Errorf("validating after epoch %d: %w", epoch, err)
		}

		isBest := score > p.BestScore
		if isBest {
			p.BestScore = score
			p.EpochsSinceImprovement = 0
		} else {
			p.EpochsSinceImprovement++
			l.logger().Info("no improvement",
				"epoch", epoch, "score", score, "best", p.BestScore,
				"epochs_since_improvement", p.EpochsSinceImprovement)
		}
		p.Epoch = epoch + 1

		saveFreq := l.Cfg.SaveFreq
		if saveFreq < 1 {
			saveFreq = 1
		}
		if l.Saver != nil && (epoch+1)%saveFreq == 0 {
			if err := l.Saver.Save(p, isBest); err != nil {
				return p, fmt.Errorf("saving checkpoint after epoch %d: %w", epoch, err)
			}
		}
	}

	if l.state != Stopped {
		l.state = Stopped
	}
	return p, nil
}

func (l *Loop) logger() *slog.Logger {
	if l.Log != nil {
		return l.Log
	}
	return slog.Default()
}
