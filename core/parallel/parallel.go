// Package parallel runs index ranges across CPU cores.
//
// The comparison pipeline itself is sequential; these helpers only split the
// inner loops of a single estimator (neighbour search, forest fitting, grid
// evaluation). Callers must make fn write to disjoint indices.
package parallel

import (
	"runtime"
	"sync"
)

// Parallelize divides [0, items) into one contiguous chunk per CPU core and
// runs fn(start, end) for each chunk concurrently. It returns once every chunk
// has finished.
func Parallelize(items int, fn func(start, end int)) {
	if items <= 0 {
		return
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for start := 0; start < items; start += chunkSize {
		end := start + chunkSize
		if end > items {
			end = items
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn(0, items) on the calling goroutine when
// items does not exceed threshold, and Parallelize otherwise.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		if items > 0 {
			fn(0, items)
		}
		return
	}
	Parallelize(items, fn)
}

// ForEach calls fn(i) for every i in [0, items), in parallel above threshold.
func ForEach(items int, threshold int, fn func(i int)) {
	ParallelizeWithThreshold(items, threshold, func(start, end int) {
		for i := start; i < end; i++ {
			fn(i)
		}
	})
}
