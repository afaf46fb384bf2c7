package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
)

// Options controls a bulk enrichment run.
type Options struct {
	// Concurrency is the fixed number of worker goroutines. Values below
	// one run a single worker.
	Concurrency int

	// MinDelay and MaxDelay bound the uniform politeness sleep each worker
	// takes after finishing a unit of work. Zero MaxDelay disables the sleep.
	MinDelay time.Duration
	MaxDelay time.Duration

	// OnProgress, when set, is invoked after every completed unit with the
	// number done so far and the total.
	OnProgress func(done, total int)

	Logger arbor.ILogger
}

// Enrich runs lookup over every key with a fixed pool of workers and returns
// a map holding exactly one result per key. A lookup failure or panic
// degrades that key to the zero value of R; it never aborts the batch. Each
// key is written once, so results are stable across runs regardless of
// worker interleaving.
func Enrich[K comparable, R any](ctx context.Context, keys []K, lookup func(ctx context.Context, key K) (R, error), opts Options) map[K]R {
	results := make(map[K]R, len(keys))
	if len(keys) == 0 {
		return results
	}

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = arbor.NewLogger()
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		done int
	)
	tasks := make(chan K)

	record := func(key K, result R) {
		mu.Lock()
		if _, seen := results[key]; !seen {
			results[key] = result
		}
		done++
		completed := done
		mu.Unlock()

		if opts.OnProgress != nil {
			opts.OnProgress(completed, len(keys))
		}
	}

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for key := range tasks {
				result := runOne(ctx, logger, workerID, key, lookup)
				record(key, result)

				if opts.MaxDelay > 0 {
					politeSleep(ctx, opts.MinDelay, opts.MaxDelay)
				}
			}
		}(i)
	}

	for _, key := range keys {
		select {
		case <-ctx.Done():
		case tasks <- key:
			continue
		}
		break
	}
	close(tasks)
	wg.Wait()

	// Cancellation can leave keys undispatched; fill them with zero values
	// so the one-result-per-key contract holds.
	mu.Lock()
	for _, key := range keys {
		if _, seen := results[key]; !seen {
			var zero R
			results[key] = zero
		}
	}
	mu.Unlock()

	return results
}

// runOne executes a single lookup, converting errors and panics into the
// zero result for the key.
func runOne[K comparable, R any](ctx context.Context, logger arbor.ILogger, workerID int, key K, lookup func(ctx context.Context, key K) (R, error)) (result R) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Int("worker", workerID).
				Str("key", fmt.Sprint(key)).
				Str("panic", fmt.Sprint(r)).
				Msg("Enrichment task panicked, recording empty result")
			var zero R
			result = zero
		}
	}()

	result, err := lookup(ctx, key)
	if err != nil {
		logger.Warn().
			Int("worker", workerID).
			Str("key", fmt.Sprint(key)).
			Err(err).
			Msg("Enrichment task failed, recording empty result")
		var zero R
		return zero
	}
	return result
}

// politeSleep waits a uniform random duration in [min, max), or until the
// context is cancelled.
func politeSleep(ctx context.Context, min, max time.Duration) {
	if max <= min {
		return
	}
	delay := min + time.Duration(rand.Int63n(int64(max-min)))
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}
