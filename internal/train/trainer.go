// Package train drives the captioning model: the per-batch training and
// validation steps, and the epoch orchestrator with LR decay, early
// stopping and checkpointing.
package train

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/caption-ml/caption/internal/autodiff"
	"github.com/caption-ml/caption/internal/backend/cpu"
	"github.com/caption-ml/caption/internal/data"
	"github.com/caption-ml/caption/internal/metric"
	"github.com/caption-ml/caption/internal/model"
	"github.com/caption-ml/caption/internal/optim"
	"github.com/caption-ml/caption/internal/seq"
	"github.com/caption-ml/caption/internal/tensor"
)

// Config holds the per-step training hyperparameters.
type Config struct {
	GradClip  float64 // elementwise gradient clamp, <= 0 disables
	AlphaC    float64 // weight of the attention regularization term
	PrintFreq int     // log a progress line every PrintFreq batches
	TopK      int     // accuracy rank, 5 in the reference setup
}

// EpochStats summarizes one pass over a loader.
type EpochStats struct {
	Loss     float64
	TopK     float64
	Batches  int
	Duration time.Duration
}

// Trainer runs training and validation steps for an encoder/decoder
// pair. EncoderOpt is None when the encoder is frozen.
type Trainer struct {
	Encoder    *model.Encoder
	Decoder    *model.Decoder
	DecoderOpt optim.Optimizer
	EncoderOpt OptimizerSlot
	Cfg        Config
	Log        *slog.Logger
}

// batchLoss runs the shared forward pass: encode, decode, pack the
// scores and targets, and combine cross-entropy with the attention
// regularizer. It returns the loss, the packed scores and targets for
// accuracy scoring, and the total number of scored tokens.
func (tr *Trainer) batchLoss(tape *autodiff.Tape, batch *data.Batch, training bool) (*tensor.Tensor, *tensor.Tensor, []int, int, error) {
	features := tr.Encoder.Forward(tape, batch.Images)

	out, err := tr.Decoder.Forward(tape, features, batch.Captions, batch.Lengths, training)
	if err != nil {
		return nil, nil, nil, 0, err
	}

	maxDecode := out.DecodeLengths[0]
	rows, err := seq.PackPlan(out.DecodeLengths, maxDecode)
	if err != nil {
		return nil, nil, nil, 0, err
	}

	// Targets are the caption shifted left one step: the word each
	// timestep should predict, packed the same way as the scores.
	targets := make([]int, 0, len(rows))
	for b, dl := range out.DecodeLengths {
		for t := 0; t < dl; t++ {
			targets = append(targets, out.SortedCaptions[b][t+1])
		}
	}

	b := out.Scores.Shape()[0]
	vocab := out.Scores.Shape()[2]
	scores2d := autodiff.Reshape(tape, out.Scores, tensor.Shape{b * maxDecode, vocab})
	packed := autodiff.GatherRows(tape, scores2d, rows)

	loss := autodiff.CrossEntropy(tape, packed, targets)

	if tr.Cfg.AlphaC > 0 {
		// Doubly stochastic attention regularization: encourage each
		// spatial location's attention to sum to one across timesteps.
		alphaSum := autodiff.SumDim(tape, out.Alphas, 1, false)
		diff := autodiff.AddScalar(tape, autodiff.MulScalar(tape, alphaSum, -1), 1)
		penalty := autodiff.Mean(tape, autodiff.Mul(tape, diff, diff))
		loss = autodiff.Add(tape, loss, autodiff.MulScalar(tape, penalty, float32(tr.Cfg.AlphaC)))
	}

	if cpu.HasNonFinite(loss) {
		return nil, nil, nil, 0, fmt.Errorf("train: non-finite loss")
	}
	return loss, packed, targets, seq.SumLengths(out.DecodeLengths), nil
}

// TrainEpoch runs one full training pass over the loader.
func (tr *Trainer) TrainEpoch(ctx context.Context, loader *data.Loader, epoch int) (EpochStats, error) {
	lossMeter := metric.NewMeter()
	topMeter := metric.NewMeter()
	batchTime := metric.NewMeter()
	dataTime := metric.NewMeter()

	start := time.Now()
	last := start

	err := loader.Epoch(ctx, func(i int, batch *data.Batch) error {
		dataTime.Update(time.Since(last).Seconds(), 1)

		tape := autodiff.NewTape()
		loss, packed, targets, tokens, err := tr.batchLoss(tape, batch, true)
		if err != nil {
			return err
		}

		grads, err := tape.Backward(loss, nil)
		if err != nil {
			return err
		}

		if tr.Cfg.GradClip > 0 {
			optim.ClipGradValues(tr.Decoder.Parameters(), grads, tr.Cfg.GradClip)
			tr.EncoderOpt.Each(func(optim.Optimizer) {
				optim.ClipGradValues(tr.Encoder.Parameters(), grads, tr.Cfg.GradClip)
			})
		}

		tr.DecoderOpt.Step(grads)
		tr.EncoderOpt.Each(func(opt optim.Optimizer) { opt.Step(grads) })

		acc, err := metric.TopKAccuracy(packed, targets, tr.Cfg.TopK)
		if err != nil {
			return err
		}
		lossMeter.Update(float64(loss.Item()), tokens)
		topMeter.Update(acc, tokens)

		now := time.Now()
		batchTime.Update(now.Sub(last).Seconds(), 1)
		last = now

		if tr.Cfg.PrintFreq > 0 && (i+1)%tr.Cfg.PrintFreq == 0 {
			tr.logger().Info("train batch",
				"epoch", epoch,
				"batch", i,
				"batches", loader.NumBatches(),
				"loss", lossMeter.Val(),
				"loss_avg", lossMeter.Avg(),
				fmt.Sprintf("top%d", tr.Cfg.TopK), topMeter.Val(),
				fmt.Sprintf("top%d_avg", tr.Cfg.TopK), topMeter.Avg(),
				"batch_time", batchTime.Val(),
				"data_time", dataTime.Val(),
			)
		}
		return nil
	})
	if err != nil {
		return EpochStats{}, err
	}

	stats := EpochStats{
		Loss:     lossMeter.Avg(),
		TopK:     topMeter.Avg(),
		Batches:  loader.NumBatches(),
		Duration: time.Since(start),
	}
	tr.logger().Info("train epoch done",
		"epoch", epoch, "loss", stats.Loss, fmt.Sprintf("top%d", tr.Cfg.TopK), stats.TopK,
		"duration", stats.Duration)
	return stats, nil
}

// Validate runs one evaluation pass: no recording, no dropout, no
// parameter updates. It returns the epoch's average top-k accuracy.
func (tr *Trainer) Validate(ctx context.Context, loader *data.Loader) (EpochStats, error) {
	lossMeter := metric.NewMeter()
	topMeter := metric.NewMeter()
	start := time.Now()

	tape := autodiff.NewTape()
	tape.StopRecording()

	err := loader.Epoch(ctx, func(i int, batch *data.Batch) error {
		loss, packed, targets, tokens, err := tr.batchLoss(tape, batch, false)
		if err != nil {
			return err
		}
		acc, err := metric.TopKAccuracy(packed, targets, tr.Cfg.TopK)
		if err != nil {
			return err
		}
		lossMeter.Update(float64(loss.Item()), tokens)
		topMeter.Update(acc, tokens)
		return nil
	})
	if err != nil {
		return EpochStats{}, err
	}

	stats := EpochStats{
		Loss:     lossMeter.Avg(),
		TopK:     topMeter.Avg(),
		Batches:  loader.NumBatches(),
		Duration: time.Since(start),
	}
	tr.logger().Info("validation done",
		"loss", stats.Loss, fmt.Sprintf("top%d", tr.Cfg.TopK), stats.TopK,
		"duration", stats.Duration)
	return stats, nil
}

func (tr *Trainer) logger() *slog.Logger {
	if tr.Log != nil {
		return tr.Log
	}
	return slog.Default()
}
