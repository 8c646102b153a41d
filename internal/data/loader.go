package data

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"golang.org/x/sync/errgroup"
)

// LoaderConfig controls batching and prefetching.
type LoaderConfig struct {
	BatchSize int
	Shuffle   bool // shuffle sample order each epoch (training only)
	Workers   int  // parallel batch assembly goroutines
	PadValue  int  // caption padding token
	Seed      int64
}

// Loader batches a dataset, assembling batches in parallel while
// delivering them in order.
type Loader struct {
	ds  Dataset
	cfg LoaderConfig
	rng *rand.Rand
}

// NewLoader creates a loader. BatchSize must be positive; Workers
// defaults to 1 when not set.
func NewLoader(ds Dataset, cfg LoaderConfig) (*Loader, error) {
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("data: batch size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Loader{ds: ds, cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}, nil
}

// NumBatches returns the number of batches per epoch. A trailing
// partial batch counts.
func (l *Loader) NumBatches() int {
	return (l.ds.Len() + l.cfg.BatchSize - 1) / l.cfg.BatchSize
}

// Epoch runs fn over every batch of one epoch, in order. Batches are
// assembled concurrently by the configured number of workers. The first
// error from assembly or fn stops the epoch.
func (l *Loader) Epoch(ctx context.Context, fn func(batchIndex int, batch *Batch) error) error {
	order := make([]int, l.ds.Len())
	for i := range order {
		order[i] = i
	}
	if l.cfg.Shuffle {
		l.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	numBatches := l.NumBatches()
	slots := make([]chan *Batch, numBatches)
	for i := range slots {
		slots[i] = make(chan *Batch, 1)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.Workers)

	launched := make(chan struct{})
	go func() {
		defer close(launched)
		for i := 0; i < numBatches; i++ {
			i := i
			g.Go(func() error {
				lo := i * l.cfg.BatchSize
				hi := lo + l.cfg.BatchSize
				if hi > len(order) {
					hi = len(order)
				}
				samples := make([]*Sample, 0, hi-lo)
				for _, idx := range order[lo:hi] {
					s, err := l.ds.Sample(idx)
					if err != nil {
						return fmt.Errorf("loading sample %d: %w", idx, err)
					}
					samples = append(samples, s)
				}
				batch, err := Collate(samples, l.cfg.PadValue)
				if err != nil {
					return err
				}
				select {
				case slots[i] <- batch:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}
	}()

	var fnErr error
	for i := 0; i < numBatches; i++ {
		select {
		case batch := <-slots[i]:
			if err := fn(i, batch); err != nil {
				fnErr = err
			}
		case <-gctx.Done():
		}
		if fnErr != nil || gctx.Err() != nil {
			cancel()
			break
		}
	}

	<-launched
	if err := g.Wait(); err != nil && fnErr == nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return fnErr
}
