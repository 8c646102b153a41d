// Package parallel provides chunked parallel execution for CPU kernels.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls how work is split across goroutines.
type Config struct {
	Enabled      bool // run work concurrently when true
	NumWorkers   int  // goroutine count
	MinChunkSize int  // below this many items the loop stays sequential
}

// DefaultConfig sizes the pool from the CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64,
	}
}

// For runs f(i) for i in [0, n), splitting the range into contiguous
// chunks. Falls back to a plain loop when parallelism is disabled or the
// range is small.
func For(n int, cfg Config, f func(i int)) {
	if !cfg.Enabled || n < cfg.MinChunkSize {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	chunk := (n + cfg.NumWorkers - 1) / cfg.NumWorkers
	if chunk < cfg.MinChunkSize {
		chunk = cfg.MinChunkSize
	}

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// ForRows parallelizes over the rows of a rows*cols iteration, passing
// the row index. Used by matmul and conv kernels where each row is an
// independent unit of work.
func ForRows(rows, cols int, cfg Config, f func(row int)) {
	// Scale the chunk decision by row cost so short-but-wide work still
	// fans out.
	if cols > 0 && rows*cols >= cfg.MinChunkSize {
		inner := cfg
		inner.MinChunkSize = 1
		For(rows, inner, f)
		return
	}
	For(rows, cfg, f)
}
