package deletequeue

import (
	"context"
	"errors"
	"time"

	"github.com/golang/glog"

	"github.com/brstgt/seaweed-admin/weed/stats"
	"github.com/brstgt/seaweed-admin/weed/util"
)

// Deleter performs the real delete without falling back to the queue.
type Deleter interface {
	DeleteNoQueue(ctx context.Context, fid, collection string) error
}

type ProcessResult struct {
	Deleted  int
	Requeued int
}

type Processor struct {
	queue   *Queue
	deleter Deleter
}

func NewProcessor(queue *Queue, deleter Deleter) *Processor {
	return &Processor{queue: queue, deleter: deleter}
}

// Process drains one batch of due items. Every item ends up either
// dequeued after a successful delete or requeued with its error.
func (p *Processor) Process(ctx context.Context, limit int) (*ProcessResult, error) {
	items, err := p.queue.Pop(ctx, limit)
	if err != nil {
		return nil, err
	}

	result := &ProcessResult{}
	var errs []error
	maxTryCount := 0
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		if item.TryCount > maxTryCount {
			maxTryCount = item.TryCount
		}
		if deleteErr := p.deleter.DeleteNoQueue(ctx, item.FileId, item.Collection); deleteErr != nil {
			glog.V(1).Infof("delete %s failed, try %d: %v", item.FileId, item.TryCount+1, deleteErr)
			if err := p.queue.Requeue(ctx, item.FileId, item.TryCount, deleteErr); err != nil {
				errs = append(errs, err)
				continue
			}
			result.Requeued++
			stats.DeleteQueueCounter.WithLabelValues(item.Collection, "requeued").Inc()
			continue
		}
		if err := p.queue.Dequeue(ctx, item.FileId); err != nil {
			errs = append(errs, err)
			continue
		}
		result.Deleted++
		stats.DeleteQueueCounter.WithLabelValues(item.Collection, "dequeued").Inc()
	}
	stats.DeleteQueueMaxTryCountGauge.Set(float64(maxTryCount))

	return result, errors.Join(errs...)
}

// Run processes batches every interval until ctx is done.
func (p *Processor) Run(ctx context.Context, interval time.Duration, limit int) error {
	for {
		result, err := p.Process(ctx, limit)
		if err != nil {
			glog.Errorf("process delete queue: %v", err)
		} else if result.Deleted+result.Requeued > 0 {
			glog.V(0).Infof("delete queue: %d deleted, %d requeued", result.Deleted, result.Requeued)
		}
		if count, err := p.queue.Count(ctx); err == nil {
			stats.DeleteQueueSizeGauge.Set(float64(count))
		}

		// a full batch means there is more work due right away
		if err == nil && result.Deleted+result.Requeued >= limitOrDefault(limit) {
			continue
		}
		if err := util.WaitFor(ctx, interval); err != nil {
			return nil
		}
	}
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return DefaultPopLimit
	}
	return limit
}
