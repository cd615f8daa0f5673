package utils

import (
	"sync"
)

const parallelChunkSize = 256

// ParallelFor calls fn for every index in [0, n) using up to workers goroutines
// and returns after all calls are done. workers <= 1 runs in caller goroutine.
func ParallelFor(n int, workers int, fn func(i int)) {
	if workers <= 1 || n <= parallelChunkSize {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	chunks := make(chan int, workers*2)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for start := range chunks {
				end := start + parallelChunkSize
				if end > n {
					end = n
				}
				for i := start; i < end; i++ {
					fn(i)
				}
			}
		}()
	}

	for start := 0; start < n; start += parallelChunkSize {
		chunks <- start
	}
	close(chunks)

	wg.Wait()
}
