package deletequeue

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/brstgt/seaweed-admin/weed/stats"
	"github.com/brstgt/seaweed-admin/weed/store"
)

const (
	BackoffTime       = time.Minute
	BackoffMultiplier = 1.5
	DefaultPopLimit   = 100
	// MaxRetryDelay keeps retry_at within what every store can hold.
	MaxRetryDelay = 100 * 365 * 24 * time.Hour
)

// RetryDelay is BackoffTime * BackoffMultiplier^tryCount in whole seconds,
// saturating at MaxRetryDelay so high try counts never wrap around.
func RetryDelay(tryCount int) time.Duration {
	seconds := BackoffTime.Seconds()
	for i := 0; i < tryCount; i++ {
		seconds *= BackoffMultiplier
		if seconds >= MaxRetryDelay.Seconds() {
			return MaxRetryDelay
		}
	}
	return time.Duration(int64(seconds)) * time.Second
}

// Queue is a durable list of file ids whose delete has to be retried.
// Items are never dropped: a failing delete is pushed back with a longer backoff.
type Queue struct {
	store store.DeleteQueueStore

	mu  sync.Mutex
	now *time.Time
}

func NewQueue(s store.DeleteQueueStore) *Queue {
	return &Queue{store: s}
}

// SetNow pins the clock, mostly for tests.
func (q *Queue) SetNow(now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.now = &now
}

func (q *Queue) Now() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.now != nil {
		return *q.now
	}
	return time.Now()
}

func (q *Queue) Enqueue(ctx context.Context, fid, collection, replication string) error {
	now := q.Now()
	err := q.store.InsertDelete(ctx, &store.DeleteQueueItem{
		FileId:       fid,
		Collection:   collection,
		Replication:  replication,
		TryCount:     0,
		EnqueuedAt:   now,
		StatusChange: now,
		RetryAt:      now.Add(BackoffTime),
	})
	if err != nil {
		return err
	}
	stats.DeleteQueueCounter.WithLabelValues(collection, "enqueued").Inc()
	glog.V(1).Infof("enqueued delete of %s (%s)", fid, collection)
	return nil
}

// Requeue records a failed attempt. tryCount is the count the item was popped with.
func (q *Queue) Requeue(ctx context.Context, fid string, tryCount int, cause error) error {
	tryCount++
	now := q.Now()
	exception := ""
	if cause != nil {
		exception = cause.Error()
	}
	return q.store.UpdateDelete(ctx, &store.DeleteQueueItem{
		FileId:       fid,
		TryCount:     tryCount,
		StatusChange: now,
		RetryAt:      now.Add(RetryDelay(tryCount)),
		Exception:    exception,
	})
}

// Pop returns up to limit items that are due for a retry. They stay in the
// queue until Dequeue or Requeue is called for them.
func (q *Queue) Pop(ctx context.Context, limit int) ([]*store.DeleteQueueItem, error) {
	if limit <= 0 {
		limit = DefaultPopLimit
	}
	return q.store.PopDeletes(ctx, q.Now(), limit)
}

func (q *Queue) Get(ctx context.Context, fid string) (*store.DeleteQueueItem, error) {
	return q.store.FindDelete(ctx, fid)
}

func (q *Queue) Dequeue(ctx context.Context, fid string) error {
	return q.store.RemoveDelete(ctx, fid)
}

func (q *Queue) Count(ctx context.Context) (int64, error) {
	return q.store.CountDeletes(ctx)
}

func (q *Queue) Flush(ctx context.Context) error {
	return q.store.TruncateDeletes(ctx)
}
