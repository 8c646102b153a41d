// Package data supplies training batches: dataset access, batching with
// caption padding, and a parallel prefetching loader.
package data

import (
	"fmt"

	"github.com/caption-ml/caption/internal/seq"
	"github.com/caption-ml/caption/internal/tensor"
)

// Sample is one image with its caption, already encoded as vocabulary
// indices (including the start and end markers). References holds all
// captions of the image for validation scoring.
type Sample struct {
	Image      *tensor.Tensor // [C, H, W]
	Caption    []int
	References [][]int
}

// Dataset provides random access to samples.
type Dataset interface {
	Len() int
	Sample(i int) (*Sample, error)
}

// Batch is a collated group of samples. Captions are padded to the
// batch's longest caption; Lengths holds the true lengths.
type Batch struct {
	Images     *tensor.Tensor // [B, C, H, W]
	Captions   [][]int
	Lengths    []int
	References [][][]int
}

// Validate checks the batch's internal consistency. Training cannot
// proceed on a malformed batch, so callers treat an error as fatal.
func (b *Batch) Validate() error {
	n := len(b.Captions)
	if b.Images.Shape()[0] != n {
		return fmt.Errorf("data: batch has %d images but %d captions", b.Images.Shape()[0], n)
	}
	if len(b.Lengths) != n {
		return fmt.Errorf("data: batch has %d captions but %d lengths", n, len(b.Lengths))
	}
	if n == 0 {
		return fmt.Errorf("data: empty batch")
	}
	width := len(b.Captions[0])
	for i, c := range b.Captions {
		if len(c) != width {
			return fmt.Errorf("data: caption %d has width %d, batch width is %d", i, len(c), width)
		}
		if b.Lengths[i] < 2 {
			return fmt.Errorf("data: caption %d has length %d, need at least start and end markers", i, b.Lengths[i])
		}
		if b.Lengths[i] > width {
			return fmt.Errorf("data: caption %d has length %d exceeding width %d", i, b.Lengths[i], width)
		}
	}
	return nil
}

// Collate assembles samples into a batch, stacking images and padding
// captions with padValue.
func Collate(samples []*Sample, padValue int) (*Batch, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("data: cannot collate an empty batch")
	}

	imgShape := samples[0].Image.Shape()
	images := tensor.Zeros(tensor.Shape{len(samples), imgShape[0], imgShape[1], imgShape[2]}, samples[0].Image.Device())
	stride := imgShape.NumElements()
	captions := make([][]int, len(samples))
	references := make([][][]int, len(samples))
	for i, s := range samples {
		if !s.Image.Shape().Equal(imgShape) {
			return nil, fmt.Errorf("data: image %d has shape %v, batch expects %v", i, s.Image.Shape(), imgShape)
		}
		copy(images.Data()[i*stride:(i+1)*stride], s.Image.Data())
		captions[i] = s.Caption
		references[i] = s.References
	}

	padded, lengths := seq.Pad(captions, padValue)
	batch := &Batch{Images: images, Captions: padded, Lengths: lengths, References: references}
	if err := batch.Validate(); err != nil {
		return nil, err
	}
	return batch, nil
}
