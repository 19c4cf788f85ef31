// Package dispatch fans enrichment work out in bounded, rate-limited
// batches. One bad meeting must not block the rest of the day.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"meetsync/internal/models"
)

// Worker processes a single enrichment task. A returned error is logged at
// the batch boundary and never aborts the batch.
type Worker func(ctx context.Context, task *models.EnrichmentTask) error

// Dispatcher runs tasks in consecutive batches of a fixed size, enforcing a
// minimum wall-clock gap between batch starts. The gap is a fixed floor,
// not a token bucket: it holds even when every call in a batch returns
// instantly, which is what keeps us under the enrichment API's implicit
// rate ceiling.
type Dispatcher struct {
	logger *slog.Logger
}

// New creates a Dispatcher.
func New(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{logger: logger}
}

// Run partitions tasks into batches of size concurrency (the last batch may
// be smaller), runs each batch's workers concurrently, and waits for all of
// them to settle before moving on. Batch N+1 never starts before batch N
// has fully settled. After every batch except the last, Run sleeps out the
// remainder of minInterval.
//
// Failed tasks are logged with their meeting title and dropped; retries are
// the caller's concern. The only error Run returns is ctx.Err() when the
// context is cancelled between batches or mid-delay.
func (d *Dispatcher) Run(ctx context.Context, tasks []*models.EnrichmentTask, concurrency int, minInterval time.Duration, worker Worker) error {
	if concurrency < 1 {
		concurrency = 1
	}

	for start := 0; start < len(tasks); start += concurrency {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + concurrency
		if end > len(tasks) {
			end = len(tasks)
		}
		batch := tasks[start:end]
		batchStart := time.Now()

		var wg sync.WaitGroup
		for _, task := range batch {
			wg.Add(1)
			go func(task *models.EnrichmentTask) {
				defer wg.Done()
				if err := worker(ctx, task); err != nil {
					title := ""
					if task.Event != nil {
						title = task.Event.Title
					}
					d.logger.Error("Enrichment task failed.", "title", title, "id", task.SeriesID, "error", err)
				}
			}(task)
		}
		wg.Wait()

		if end < len(tasks) {
			if err := d.waitFloor(ctx, minInterval-time.Since(batchStart)); err != nil {
				return err
			}
		}
	}
	return nil
}

// waitFloor sleeps out the remaining inter-batch delay, waking early only
// on cancellation.
func (d *Dispatcher) waitFloor(ctx context.Context, remaining time.Duration) error {
	if remaining <= 0 {
		return nil
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
