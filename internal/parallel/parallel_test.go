package parallel

import (
	"sync/atomic"
	"testing"
)

func TestForCoversRangeSequential(t *testing.T) {
	cfg := Config{Enabled: false}
	var sum int64
	For(100, cfg, func(i int) { sum += int64(i) })
	if sum != 4950 {
		t.Errorf("sum = %d, want 4950", sum)
	}
}

func TestForCoversRangeParallel(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}
	var sum int64
	For(1000, cfg, func(i int) { atomic.AddInt64(&sum, int64(i)) })
	if sum != 499500 {
		t.Errorf("sum = %d, want 499500", sum)
	}
}

func TestForEachIndexOnce(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 8, MinChunkSize: 1}
	seen := make([]int32, 512)
	For(512, cfg, func(i int) { atomic.AddInt32(&seen[i], 1) })
	for i, n := range seen {
		if n != 1 {
			t.Fatalf("index %d visited %d times", i, n)
		}
	}
}

func TestForRowsSmall(t *testing.T) {
	cfg := DefaultConfig()
	var visited int64
	ForRows(3, 100000, cfg, func(row int) { atomic.AddInt64(&visited, 1) })
	if visited != 3 {
		t.Errorf("visited = %d, want 3", visited)
	}
}
