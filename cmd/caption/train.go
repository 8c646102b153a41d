package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/caption-ml/caption/internal/checkpoint"
	"github.com/caption-ml/caption/internal/data"
	"github.com/caption-ml/caption/internal/model"
	"github.com/caption-ml/caption/internal/nn"
	"github.com/caption-ml/caption/internal/optim"
	"github.com/caption-ml/caption/internal/tensor"
	"github.com/caption-ml/caption/internal/train"
	"github.com/caption-ml/caption/internal/vocab"
)

type trainOptions struct {
	saveDir   string
	saveFreq  int
	dataDir   string
	dataName  string
	wordMap   string
	tokenizer string

	synthetic bool
	samples   int
	seed      int64

	epochs    int
	batchSize int
	workers   int
	printFreq int

	gradClip float64
	alphaC   float64

	encoderLR     float64
	decoderLR     float64
	freezeEncoder bool

	attentionDim int
	embedDim     int
	decoderDim   int
	featureDim   int
	dropout      float64

	resume string
}

func newTrainCmd() *cobra.Command {
	opts := &trainOptions{}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Run the training loop",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrain(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.saveDir, "save-dir", "checkpoints", "directory for checkpoint files")
	f.IntVar(&opts.saveFreq, "save-freq", 1, "checkpoint every N epochs")
	f.StringVar(&opts.dataDir, "data-dir", "", "dataset directory")
	f.StringVar(&opts.dataName, "data-name", "", "dataset base name inside --data-dir")
	f.StringVar(&opts.wordMap, "wordmap", "", "path to the word map JSON file")
	f.StringVar(&opts.tokenizer, "tokenizer", "", "tiktoken encoding for subword vocabularies (e.g. cl100k_base)")
	f.BoolVar(&opts.synthetic, "synthetic", false, "train on a generated synthetic dataset")
	f.IntVar(&opts.samples, "samples", 256, "synthetic dataset size")
	f.Int64Var(&opts.seed, "seed", 42, "random seed")
	f.IntVar(&opts.epochs, "epochs", 120, "maximum number of epochs")
	f.IntVar(&opts.batchSize, "batch-size", 32, "samples per batch")
	f.IntVar(&opts.workers, "workers", 4, "batch assembly workers")
	f.IntVar(&opts.printFreq, "print-freq", 100, "log every N batches")
	f.Float64Var(&opts.gradClip, "grad-clip", 5, "elementwise gradient clip, 0 disables")
	f.Float64Var(&opts.alphaC, "alpha-c", 1, "attention regularization weight")
	f.Float64Var(&opts.encoderLR, "encoder-lr", 1e-4, "encoder learning rate")
	f.Float64Var(&opts.decoderLR, "decoder-lr", 4e-4, "decoder learning rate")
	f.BoolVar(&opts.freezeEncoder, "freeze-encoder", true, "train the decoder only")
	f.IntVar(&opts.attentionDim, "attention-dim", 512, "attention layer size")
	f.IntVar(&opts.embedDim, "embed-dim", 512, "word embedding size")
	f.IntVar(&opts.decoderDim, "decoder-dim", 512, "decoder LSTM size")
	f.IntVar(&opts.featureDim, "feature-dim", 64, "encoder feature channels")
	f.Float64Var(&opts.dropout, "dropout", 0.5, "dropout before the vocab projection")
	f.StringVar(&opts.resume, "resume", "", "checkpoint file to resume from")

	return cmd
}

func vocabSize(opts *trainOptions) (int, error) {
	switch {
	case opts.synthetic:
		return 256, nil
	case opts.wordMap != "":
		v, err := vocab.Load(opts.wordMap)
		if err != nil {
			return 0, err
		}
		return v.Size(), nil
	case opts.tokenizer != "":
		// Subword runs take the encoding's full cardinality.
		tok, err := vocab.NewBPETokenizer(opts.tokenizer)
		if err != nil {
			return 0, err
		}
		return tok.VocabSize(), nil
	default:
		return 0, fmt.Errorf("one of --wordmap, --tokenizer or --synthetic is required")
	}
}

func runTrain(ctx context.Context, opts *trainOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	vsize, err := vocabSize(opts)
	if err != nil {
		return err
	}
	if !opts.synthetic {
		return fmt.Errorf("no dataset reader is registered for --data-dir %q; use --synthetic or provide a data.Dataset implementation", opts.dataDir)
	}

	rng := rand.New(rand.NewSource(opts.seed))

	encoder := model.NewEncoder(model.EncoderConfig{InChannels: 3, FeatureDim: opts.featureDim}, rng, tensor.CPU)
	encoder.SetFrozen(opts.freezeEncoder)
	decoder := model.NewDecoder(model.DecoderConfig{
		AttentionDim: opts.attentionDim,
		EmbedDim:     opts.embedDim,
		DecoderDim:   opts.decoderDim,
		VocabSize:    vsize,
		EncoderDim:   opts.featureDim,
		Dropout:      opts.dropout,
	}, rng, tensor.CPU)

	decoderOpt := optim.NewAdam([]*optim.ParamGroup{{Params: decoder.Parameters(), LR: opts.decoderLR}})
	encoderSlot := train.None()
	if !opts.freezeEncoder {
		encoderSlot = train.Some(optim.NewAdam([]*optim.ParamGroup{{Params: encoder.Parameters(), LR: opts.encoderLR}}))
	}

	start := train.Progress{}
	if opts.resume != "" {
		start, err = restore(opts.resume, encoder, decoder, decoderOpt, encoderSlot)
		if err != nil {
			return fmt.Errorf("resuming from %s: %w", opts.resume, err)
		}
		log.Info("resumed", "epoch", start.Epoch, "best", start.BestScore)
	}

	ds, err := data.NewSynthetic(data.SyntheticConfig{
		NumSamples: opts.samples,
		Channels:   3,
		Height:     64,
		Width:      64,
		VocabSize:  vsize,
		MaxWords:   12,
		Seed:       opts.seed,
	})
	if err != nil {
		return err
	}
	valSize := opts.samples / 5
	if valSize < 1 {
		valSize = 1
	}
	valDS, err := data.NewSynthetic(data.SyntheticConfig{
		NumSamples: valSize,
		Channels:   3,
		Height:     64,
		Width:      64,
		VocabSize:  vsize,
		MaxWords:   12,
		Seed:       opts.seed + 1,
	})
	if err != nil {
		return err
	}

	trainLoader, err := data.NewLoader(ds, data.LoaderConfig{
		BatchSize: opts.batchSize, Shuffle: true, Workers: opts.workers,
		PadValue: data.SyntheticPad, Seed: opts.seed,
	})
	if err != nil {
		return err
	}
	valLoader, err := data.NewLoader(valDS, data.LoaderConfig{
		BatchSize: opts.batchSize, Workers: opts.workers, PadValue: data.SyntheticPad,
	})
	if err != nil {
		return err
	}

	trainer := &train.Trainer{
		Encoder:    encoder,
		Decoder:    decoder,
		DecoderOpt: decoderOpt,
		EncoderOpt: encoderSlot,
		Cfg: train.Config{
			GradClip:  opts.gradClip,
			AlphaC:    opts.alphaC,
			PrintFreq: opts.printFreq,
			TopK:      5,
		},
		Log: log,
	}

	optimizers := []optim.Optimizer{decoderOpt}
	encoderSlot.Each(func(o optim.Optimizer) { optimizers = append(optimizers, o) })

	cfg := train.DefaultLoopConfig(opts.epochs)
	cfg.SaveFreq = opts.saveFreq
	loop := &train.Loop{
		Cfg:        cfg,
		Runner:     &epochRunner{trainer: trainer, trainLoader: trainLoader, valLoader: valLoader},
		Saver:      &checkpointSaver{dir: opts.saveDir, encoder: encoder, decoder: decoder, decoderOpt: decoderOpt, encoderOpt: encoderSlot},
		Optimizers: optimizers,
		Log:        log,
	}

	final, err := loop.Run(ctx, start)
	if err != nil {
		return err
	}
	log.Info("training finished", "epochs", final.Epoch, "best", final.BestScore)
	return nil
}

// epochRunner adapts the Trainer to the Loop's Runner interface.
type epochRunner struct {
	trainer     *train.Trainer
	trainLoader *data.Loader
	valLoader   *data.Loader
}

func (r *epochRunner) TrainEpoch(ctx context.Context, epoch int) error {
	_, err := r.trainer.TrainEpoch(ctx, r.trainLoader, epoch)
	return err
}

func (r *epochRunner) Validate(ctx context.Context) (float64, error) {
	stats, err := r.trainer.Validate(ctx, r.valLoader)
	if err != nil {
		return 0, err
	}
	return stats.TopK, nil
}

// checkpointSaver persists the full training state through the
// checkpoint package.
type checkpointSaver struct {
	dir        string
	encoder    *model.Encoder
	decoder    *model.Decoder
	decoderOpt optim.Optimizer
	encoderOpt train.OptimizerSlot
}

func (s *checkpointSaver) Save(p train.Progress, isBest bool) error {
	encDict, err := nn.StateDict(paramSet(s.encoder.Parameters()))
	if err != nil {
		return err
	}
	decDict, err := nn.StateDict(paramSet(s.decoder.Parameters()))
	if err != nil {
		return err
	}

	state := &checkpoint.State{
		Training: checkpoint.TrainingMeta{
			Epoch:                  p.Epoch,
			EpochsSinceImprovement: p.EpochsSinceImprovement,
			BestScore:              p.BestScore,
		},
		Encoder:          encDict,
		Decoder:          decDict,
		DecoderOptimizer: s.decoderOpt.StateDict(),
	}
	s.encoderOpt.Each(func(o optim.Optimizer) { state.EncoderOptimizer = o.StateDict() })

	return checkpoint.Save(s.dir, state, isBest)
}

// paramSet lets a bare parameter slice satisfy nn.Module.
type paramSet []*nn.Parameter

func (p paramSet) Parameters() []*nn.Parameter { return p }

func restore(path string, encoder *model.Encoder, decoder *model.Decoder, decoderOpt optim.Optimizer, encoderSlot train.OptimizerSlot) (train.Progress, error) {
	state, err := checkpoint.Load(path)
	if err != nil {
		return train.Progress{}, err
	}
	if err := nn.LoadStateDict(paramSet(encoder.Parameters()), state.Encoder); err != nil {
		return train.Progress{}, fmt.Errorf("restoring encoder: %w", err)
	}
	if err := nn.LoadStateDict(paramSet(decoder.Parameters()), state.Decoder); err != nil {
		return train.Progress{}, fmt.Errorf("restoring decoder: %w", err)
	}
	if err := decoderOpt.LoadStateDict(state.DecoderOptimizer); err != nil {
		return train.Progress{}, fmt.Errorf("restoring decoder optimizer: %w", err)
	}
	if encoderSlot.Present() && state.EncoderOptimizer != nil {
		if err := encoderSlot.Get().LoadStateDict(state.EncoderOptimizer); err != nil {
			return train.Progress{}, fmt.Errorf("restoring encoder optimizer: %w", err)
		}
	}
	return train.Progress{
		Epoch:                  state.Training.Epoch,
		EpochsSinceImprovement: state.Training.EpochsSinceImprovement,
		BestScore:              state.Training.BestScore,
	}, nil
}
