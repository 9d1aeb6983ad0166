package admin

import (
	"context"
	"math/rand"
	"sort"

	"golang.org/x/sync/errgroup"
)

// ShardBySize hands every item, in order, to the worker with the smallest
// assigned total so far. Ties go to the lowest worker index.
func ShardBySize[T any](items []T, workers int, size func(T) uint64) [][]T {
	if workers < 1 {
		workers = 1
	}
	shards := make([][]T, workers)
	loads := make([]uint64, workers)
	for _, item := range items {
		next := 0
		for w := 1; w < workers; w++ {
			if loads[w] < loads[next] {
				next = w
			}
		}
		shards[next] = append(shards[next], item)
		loads[next] += size(item)
	}
	return shards
}

func ShardRoundRobin[T any](items []T, workers int) [][]T {
	if workers < 1 {
		workers = 1
	}
	shards := make([][]T, workers)
	for i, item := range items {
		shards[i%workers] = append(shards[i%workers], item)
	}
	return shards
}

func shuffle[T any](items []T) {
	rand.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
}

// WorkerResult is what a worker reports back after its queue is done.
type WorkerResult struct {
	Worker  int
	Done    int
	Skipped int
	Failed  int
	// Err is set when the worker stopped before finishing its queue.
	Err error
}

// runWorkers runs one goroutine per shard, each on its own copy of the admin with
// separate remote connections. A single shard runs inline as worker 0.
// Workers never stop each other.
func runWorkers[T any](ctx context.Context, a *Admin, shards [][]T, process func(ctx context.Context, w *Admin, worker int, jobs []T) WorkerResult) []WorkerResult {
	if len(shards) == 1 {
		return []WorkerResult{process(ctx, a, 0, shards[0])}
	}

	results := make(chan WorkerResult, len(shards))
	var g errgroup.Group
	g.SetLimit(len(shards))
	for i, shard := range shards {
		worker, jobs := i+1, shard
		g.Go(func() error {
			w := a.forWorker()
			defer w.Close()
			results <- process(ctx, w, worker, jobs)
			return nil
		})
	}
	g.Wait()
	close(results)

	var collected []WorkerResult
	for result := range results {
		collected = append(collected, result)
	}
	sort.Slice(collected, func(i, j int) bool { return collected[i].Worker < collected[j].Worker })
	return collected
}
