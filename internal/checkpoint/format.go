// Package checkpoint persists training state to disk in the .capt
// binary container: a fixed header, a JSON index of tensors and
// training metadata, and an aligned float32 payload.
package checkpoint

import "time"

// Format constants.
const (
	MagicBytes      = "CAPT"
	FormatVersion   = 1
	HeaderAlignment = 64 // tensor payload is aligned for mmap-friendly reads

	// Fixed file names inside a checkpoint directory.
	LatestName = "checkpoint_latest.capt"
	BestName   = "checkpoint_best.capt"
)

// Flags for the .capt format.
const (
	FlagHasOptimizer uint32 = 1 << 0 // optimizer state included
)

// Header is the JSON index of a .capt file.
type Header struct {
	FormatVersion int          `json:"format_version"`
	CreatedAt     time.Time    `json:"created_at"`
	Tensors       []TensorMeta `json:"tensors"`
	Training      TrainingMeta `json:"training"`
}

// TrainingMeta carries the loop state a resumed run needs.
type TrainingMeta struct {
	Epoch                  int     `json:"epoch"`
	EpochsSinceImprovement int     `json:"epochs_since_improvement"`
	BestScore              float64 `json:"best_score"`
}

// TensorMeta describes one tensor in the payload section.
type TensorMeta struct {
	Name   string `json:"name"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // bytes from the start of the payload
	Size   int64  `json:"size"`   // bytes
}
