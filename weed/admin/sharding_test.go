package admin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShardBySize(t *testing.T) {
	identity := func(n uint64) uint64 { return n }

	shards := ShardBySize([]uint64{50, 30, 20, 10}, 2, identity)
	assert.Equal(t, [][]uint64{{50, 10}, {30, 20}}, shards)

	shards = ShardBySize([]uint64{10, 10, 10}, 3, identity)
	assert.Equal(t, [][]uint64{{10}, {10}, {10}}, shards)

	shards = ShardBySize([]uint64{5, 7}, 0, identity)
	assert.Equal(t, [][]uint64{{5, 7}}, shards)
}

func TestShardRoundRobin(t *testing.T) {
	shards := ShardRoundRobin([]int{1, 2, 3, 4, 5}, 2)
	assert.Equal(t, [][]int{{1, 3, 5}, {2, 4}}, shards)
}

func TestRunWorkersCollectsEveryResult(t *testing.T) {
	admin := newTestAdmin(t, newFakeCluster(), nil, nil)
	shards := [][]int{{1, 2}, {3}, {4, 5, 6}}

	results := runWorkers(context.Background(), admin, shards, func(ctx context.Context, w *Admin, worker int, jobs []int) WorkerResult {
		return WorkerResult{Worker: worker, Done: len(jobs)}
	})
	assert.Equal(t, []WorkerResult{{Worker: 1, Done: 2}, {Worker: 2, Done: 1}, {Worker: 3, Done: 3}}, results)

	single := runWorkers(context.Background(), admin, shards[:1], func(ctx context.Context, w *Admin, worker int, jobs []int) WorkerResult {
		assert.Same(t, admin, w)
		return WorkerResult{Worker: worker, Done: len(jobs)}
	})
	assert.Equal(t, []WorkerResult{{Worker: 0, Done: 2}}, single)
}
