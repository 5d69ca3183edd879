package utils

import (
	"runtime"
	"sync"
)

// ParallelMap evaluates fn for every index in [0, n) on a fixed pool of
// workers and returns the results in input order. Each task writes only its
// own slot, so no synchronization beyond the final join is needed; the
// reduce stage downstream sees a deterministic ordering regardless of how
// the tasks were scheduled.
func ParallelMap[T any](n, workers int, fn func(i int) T) []T {
	if n <= 0 {
		return nil
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	if workers > n {
		workers = n
	}

	results := make([]T, n)

	if workers == 1 {
		for i := 0; i < n; i++ {
			results[i] = fn(i)
		}

		return results
	}

	jobs := make(chan int)

	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range jobs {
				results[i] = fn(i)
			}
		}()
	}

	for i := 0; i < n; i++ {
		jobs <- i
	}

	close(jobs)
	wg.Wait()

	return results
}
