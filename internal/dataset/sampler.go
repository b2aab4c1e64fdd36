package dataset

import (
	"context"
	"errors"
	"sync"
)

// SamplerOptions configures a single pass over a list of shards.
type SamplerOptions struct {
	// Shards are read in this order; samples keep shard order.
	Shards     []string
	NumWorkers int
	PendingCap int
}

// StartSampler streams every sample of opts.Shards once. Shards are opened
// by NumWorkers workers in parallel but delivered strictly in list order.
// Both returned channels are closed when the pass ends or ctx is canceled.
func StartSampler(parent context.Context, opts SamplerOptions) (<-chan Sample, <-chan error, error) {
	if len(opts.Shards) == 0 {
		return nil, nil, errors.New("sampler: no shards provided")
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 1
	}
	if opts.PendingCap <= 0 {
		opts.PendingCap = defaultPendingCap
	}

	ctx, cancel := context.WithCancel(parent)

	jobs := make(chan shardJob, opts.NumWorkers)
	cursors := make(chan shardCursor, opts.NumWorkers)
	out := make(chan Sample, opts.NumWorkers*2)
	errCh := make(chan error, 1)

	go produceJobs(ctx, jobs, opts.Shards)

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(ctx, jobs, cursors, opts.PendingCap)
		}()
	}

	go func() {
		wg.Wait()
		close(cursors)
	}()

	go func() {
		defer cancel()
		defer close(out)
		defer close(errCh)
		if err := runAggregator(ctx, cursors, out); err != nil {
			errCh <- err
		}
	}()

	return out, errCh, nil
}

type shardJob struct {
	id   int
	path string
}

type shardCursor struct {
	id      int
	samples <-chan Sample
	errCh   <-chan error
}

func worker(ctx context.Context, jobs <-chan shardJob, cursors chan<- shardCursor, pendingCap int) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			samples, errCh := StreamShard(ctx, job.path, pendingCap)
			select {
			case <-ctx.Done():
				return
			case cursors <- shardCursor{id: job.id, samples: samples, errCh: errCh}:
			}
		}
	}
}

// runAggregator forwards shard streams in job order, parking streams that
// arrive early.
func runAggregator(ctx context.Context, cursors <-chan shardCursor, out chan<- Sample) error {
	pending := make(map[int]shardCursor)
	next := 0
	for {
		cursor, ok := pending[next]
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case c, open := <-cursors:
				if !open {
					return nil
				}
				pending[c.id] = c
			}
			continue
		}

		if err := drain(ctx, cursor, out); err != nil {
			return err
		}
		delete(pending, next)
		next++
	}
}

func drain(ctx context.Context, cursor shardCursor, out chan<- Sample) error {
	for sample := range cursor.samples {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- sample:
		}
	}
	return <-cursor.errCh
}

func produceJobs(ctx context.Context, jobs chan<- shardJob, shards []string) {
	defer close(jobs)
	for id, path := range shards {
		select {
		case <-ctx.Done():
			return
		case jobs <- shardJob{id: id, path: path}:
		}
	}
}
