package vanity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/beltctx"
	"github.com/facebookincubator/go-belt/pkg/field"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/exp/constraints"
	"golang.org/x/sync/semaphore"
)

// Result is the outcome of a search.
type Result struct {
	Status FindStatus

	// WorkerIndex, Buffer and Digest are set only if Status is FindStatusFound.
	WorkerIndex uint
	Buffer      []byte
	Digest      Digest

	Guesses        uint64
	PartialMatches uint64
	Wraparounds    uint64
	Elapsed        time.Duration

	Workers []WorkerResult
}

// Found returns true if a buffer with a matching digest was found.
func (r *Result) Found() bool {
	return r != nil && r.Status == FindStatusFound
}

type searcher struct {
	// immutable:
	settings Settings
}

func newSearcher(settings Settings) (*searcher, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &searcher{
		settings: settings.clone(),
	}, nil
}

// Search runs Settings.WorkerCount workers until one of them finds a buffer
// whose digest starts with Settings.TargetPattern, or until the search
// is cancelled (by `ctx` or by Settings.MaxGuesses), or until all workers
// are exhausted (see Settings.StopAtPartitionEnd).
//
// If a worker fails, the whole search is stopped and the error is returned
// together with the result collected so far.
func Search(
	ctx context.Context,
	settings Settings,
) (*Result, error) {
	s, err := newSearcher(settings)
	if err != nil {
		return nil, err
	}

	return s.Execute(ctx)
}

func (s *searcher) Execute(
	ctx context.Context,
) (*Result, error) {
	startedAt := time.Now()
	shared := &searchShared{}

	searchEnded := make(chan struct{})
	defer close(searchEnded)
	go func() {
		select {
		case <-ctx.Done():
			if shared.stop(FindStatusCancelled) {
				logger.FromCtx(ctx).Debugf("cancelled: %v", ctx.Err())
			}
		case <-searchEnded:
		}
	}()

	offsets := s.settings.startOffsets()
	ends := partitionEnds(offsets, s.settings.CounterWidth)
	jobs := make([]workerJob, 0, len(offsets))
	for idx, offset := range offsets {
		jobs = append(jobs, workerJob{
			Index:        uint(idx),
			StartOffset:  offset,
			PartitionEnd: ends[idx],
		})
	}

	var sem *semaphore.Weighted
	if s.settings.MaxParallel != 0 {
		sem = semaphore.NewWeighted(int64(min(s.settings.MaxParallel, s.settings.WorkerCount)))
	}

	ctx = beltctx.WithField(ctx, "target", s.settings.TargetPattern.String())
	ctx = beltctx.WithFields(ctx, field.Map[uint]{
		"workers":       s.settings.WorkerCount,
		"counter_width": s.settings.CounterWidth,
	})
	logger.FromCtx(ctx).Debugf("starting the search")

	result := executeWorkers(
		ctx,
		sem,
		jobs,
		s.executeWorker,
		s.aggregateWorkerResults,
		shared,
	)
	result.Result.Guesses = shared.GuessCount.Load()
	result.Result.Elapsed = time.Since(startedAt)
	switch {
	case result.Result.Found():
	case result.Error != nil:
		result.Result.Status = FindStatusFailed
	default:
		result.Result.Status = shared.status()
	}
	if result.Result.Status != FindStatusFound {
		var notStarted []uint
		for _, w := range result.Result.Workers {
			if w.State == WorkerStateNotStarted {
				notStarted = append(notStarted, w.WorkerIndex)
			}
		}
		if len(notStarted) > 0 {
			logger.FromCtx(ctx).Warnf("the search ended with status %s, and workers %v have never started: their partitions were not searched", result.Result.Status, notStarted)
		}
	}
	return result.Result, result.Error
}

func executeWorkers[job any, result any, aggregated any, sharedData any](
	ctx context.Context,
	sem *semaphore.Weighted,
	jobs []job,
	workerExec func(context.Context, *job, sharedData) result,
	aggregateResults func(results <-chan result) aggregated,
	shared sharedData,
) aggregated {
	var wg sync.WaitGroup

	ctx, cancelFn := context.WithCancel(ctx)

	workerResultCh := make(chan result, len(jobs))
	for _, j := range jobs {
		if sem != nil {
			err := sem.Acquire(ctx, 1)
			if err != nil {
				// the workers which are not started yet would have nothing to do anyway
				logger.FromCtx(ctx).Debugf("stopped starting workers: %v", err)
				break
			}
		}
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			if sem != nil {
				defer sem.Release(1)
			}
			ctx := beltctx.WithField(ctx, "job", j)
			workerResultCh <- workerExec(ctx, &j, shared)
		}(j)
	}

	go func() {
		wg.Wait()
		cancelFn()
		close(workerResultCh)
	}()

	return aggregateResults(workerResultCh)
}

func (s *searcher) executeWorker(
	ctx context.Context,
	job *workerJob,
	shared *searchShared,
) WorkerResult {
	buffer := s.settings.NewMessageBuffer(job.StartOffset)
	return newWorker(ctx, job.Index, &s.settings, shared, buffer, job.PartitionEnd).Run(ctx)
}

type searchAggregate struct {
	Result *Result
	Error  error
}

func (s *searcher) aggregateWorkerResults(
	resultChan <-chan WorkerResult,
) searchAggregate {
	result := &Result{
		Workers: make([]WorkerResult, s.settings.WorkerCount),
	}
	for idx := range result.Workers {
		// overwritten by the workers which were started
		result.Workers[idx] = WorkerResult{
			WorkerIndex: uint(idx),
			State:       WorkerStateNotStarted,
		}
	}

	var errors *multierror.Error
	for r := range resultChan {
		result.Workers[r.WorkerIndex] = r
		result.PartialMatches += r.PartialMatches
		result.Wraparounds += r.Wraparounds
		errors = multierror.Append(errors, r.Error)
		if r.State != WorkerStateFound || result.Found() {
			continue
		}
		result.Status = FindStatusFound
		result.WorkerIndex = r.WorkerIndex
		result.Buffer = r.Buffer
		result.Digest = r.Digest
	}

	var err error
	if e := errors.ErrorOrNil(); e != nil {
		err = fmt.Errorf("the search failed: %w", e)
	}
	return searchAggregate{
		Result: result,
		Error:  err,
	}
}

func min[T constraints.Integer](v0 T, vs ...T) T {
	vMin := v0
	for _, vCmp := range vs {
		if vCmp < vMin {
			vMin = vCmp
		}
	}
	return vMin
}

func max[T constraints.Integer](v0 T, vs ...T) T {
	vMax := v0
	for _, vCmp := range vs {
		if vCmp > vMax {
			vMax = vCmp
		}
	}
	return vMax
}
