package data

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/caption-ml/caption/internal/tensor"
)

// SyntheticConfig sizes a generated dataset.
type SyntheticConfig struct {
	NumSamples int
	Channels   int
	Height     int
	Width      int
	VocabSize  int // must leave room for the pad/start/end indices 0-2
	MaxWords   int // caption body length varies in [1, MaxWords]
	Seed       int64
}

// Synthetic special token indices, matching the layout a generated word
// map would use.
const (
	SyntheticPad   = 0
	SyntheticStart = 1
	SyntheticEnd   = 2
)

// Synthetic is a deterministic in-memory dataset of random images and
// captions, used for smoke training runs and benchmarks. Sample i is
// the same tensor every time it is requested.
type Synthetic struct {
	cfg SyntheticConfig

	mu    sync.Mutex
	cache map[int]*Sample
}

// NewSynthetic creates a synthetic dataset.
func NewSynthetic(cfg SyntheticConfig) (*Synthetic, error) {
	if cfg.NumSamples < 1 {
		return nil, fmt.Errorf("data: synthetic dataset needs at least one sample")
	}
	if cfg.VocabSize < 4 {
		return nil, fmt.Errorf("data: synthetic vocab size %d leaves no room for words", cfg.VocabSize)
	}
	if cfg.MaxWords < 1 {
		return nil, fmt.Errorf("data: synthetic captions need at least one word")
	}
	return &Synthetic{cfg: cfg, cache: make(map[int]*Sample)}, nil
}

func (s *Synthetic) Len() int { return s.cfg.NumSamples }

func (s *Synthetic) Sample(i int) (*Sample, error) {
	if i < 0 || i >= s.cfg.NumSamples {
		return nil, fmt.Errorf("data: sample index %d out of range [0, %d)", i, s.cfg.NumSamples)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cache[i]; ok {
		return cached, nil
	}

	rng := rand.New(rand.NewSource(s.cfg.Seed + int64(i)))
	image := tensor.Randn(tensor.Shape{s.cfg.Channels, s.cfg.Height, s.cfg.Width}, rng, tensor.CPU)

	words := 1 + rng.Intn(s.cfg.MaxWords)
	caption := make([]int, 0, words+2)
	caption = append(caption, SyntheticStart)
	for w := 0; w < words; w++ {
		caption = append(caption, 3+rng.Intn(s.cfg.VocabSize-3))
	}
	caption = append(caption, SyntheticEnd)

	sample := &Sample{Image: image, Caption: caption, References: [][]int{caption}}
	s.cache[i] = sample
	return sample, nil
}
