package util

import "sync"

// RunPool calls fn(i) for every i in [0, count) using numWorkers goroutines.
// All jobs run even when some fail; the first error (by job index) is returned.
func RunPool(count, numWorkers int, fn func(i int) error) error {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if numWorkers > count {
		numWorkers = count
	}

	errs := make([]error, count)
	workQueue := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range workQueue {
				errs[i] = fn(i)
			}
		}()
	}

	for i := 0; i < count; i++ {
		workQueue <- i
	}
	close(workQueue)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
