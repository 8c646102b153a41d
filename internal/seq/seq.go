// Package seq holds utilities for working with batches of variable-length
// token sequences: padding them into rectangular form and planning the
// packed layout that strips padding back out.
package seq

import "fmt"

// Pad right-pads sequences with padValue into a rectangular [B, maxLen]
// layout and returns the padded batch alongside the original lengths.
func Pad(sequences [][]int, padValue int) ([][]int, []int) {
	maxLen := 0
	for _, s := range sequences {
		if len(s) > maxLen {
			maxLen = len(s)
		}
	}
	padded := make([][]int, len(sequences))
	lengths := make([]int, len(sequences))
	for i, s := range sequences {
		row := make([]int, maxLen)
		copy(row, s)
		for j := len(s); j < maxLen; j++ {
			row[j] = padValue
		}
		padded[i] = row
		lengths[i] = len(s)
	}
	return padded, lengths
}

// PackPlan computes the flat row indices that select the valid positions
// of a padded [B, width] batch, sample by sample: all valid steps of
// sample 0, then all valid steps of sample 1, and so on. The total
// number of rows is the sum of lengths.
//
// lengths must be sorted in descending order and each length must fit
// within width.
func PackPlan(lengths []int, width int) ([]int, error) {
	total := 0
	for i, l := range lengths {
		if l < 0 || l > width {
			return nil, fmt.Errorf("seq: length %d at index %d out of range [0, %d]", l, i, width)
		}
		if i > 0 && l > lengths[i-1] {
			return nil, fmt.Errorf("seq: lengths not sorted descending at index %d (%d > %d)", i, l, lengths[i-1])
		}
		total += l
	}
	rows := make([]int, 0, total)
	for b, l := range lengths {
		for t := 0; t < l; t++ {
			rows = append(rows, b*width+t)
		}
	}
	return rows, nil
}

// SumLengths returns the total number of valid steps across the batch.
func SumLengths(lengths []int) int {
	total := 0
	for _, l := range lengths {
		total += l
	}
	return total
}
