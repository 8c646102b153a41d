// Package metric provides running averages and accuracy measures used
// to track training progress.
package metric

import (
	"fmt"
	"sort"

	"github.com/caption-ml/caption/internal/tensor"
)

// Meter keeps a running weighted average of a scalar series.
type Meter struct {
	val   float64
	sum   float64
	count int
}

// NewMeter returns a zeroed meter.
func NewMeter() *Meter { return &Meter{} }

// Reset clears the meter back to its initial state.
func (m *Meter) Reset() { *m = Meter{} }

// Update records value with the given weight. A weight of zero leaves
// the running average unchanged but still records the latest value.
func (m *Meter) Update(value float64, n int) {
	m.val = value
	m.sum += value * float64(n)
	m.count += n
}

// Val returns the most recently recorded value.
func (m *Meter) Val() float64 { return m.val }

// Sum returns the weighted sum of recorded values.
func (m *Meter) Sum() float64 { return m.sum }

// Count returns the total weight recorded.
func (m *Meter) Count() int { return m.count }

// Avg returns the weighted average, or zero before any weighted update.
func (m *Meter) Avg() float64 {
	if m.count == 0 {
		return 0
	}
	return m.sum / float64(m.count)
}

// TopKAccuracy returns the percentage of rows in scores [N, V] whose
// target class ranks among the k highest scores, in [0, 100].
func TopKAccuracy(scores *tensor.Tensor, targets []int, k int) (float64, error) {
	s := scores.Shape()
	if len(s) != 2 {
		return 0, fmt.Errorf("metric: scores must be 2D, got shape %v", s)
	}
	n, v := s[0], s[1]
	if len(targets) != n {
		return 0, fmt.Errorf("metric: %d targets for %d score rows", len(targets), n)
	}
	if k < 1 || k > v {
		return 0, fmt.Errorf("metric: k=%d out of range for %d classes", k, v)
	}
	if n == 0 {
		return 0, nil
	}

	data := scores.Data()
	idx := make([]int, v)
	correct := 0
	for row := 0; row < n; row++ {
		rowData := data[row*v : (row+1)*v]
		for i := range idx {
			idx[i] = i
		}
		sort.Slice(idx, func(a, b int) bool { return rowData[idx[a]] > rowData[idx[b]] })
		for _, class := range idx[:k] {
			if class == targets[row] {
				correct++
				break
			}
		}
	}
	return float64(correct) * 100 / float64(n), nil
}
