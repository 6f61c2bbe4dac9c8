package vanity

import (
	"bytes"
	"context"
	"fmt"
	"hash"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
)

// WorkerState is the state of a single worker.
//
// Every worker starts in WorkerStateSearching and moves to exactly
// one of the other states, after which it does not change anymore.
type WorkerState uint32

const (
	WorkerStateSearching = WorkerState(iota)
	WorkerStateFound
	WorkerStateCancelled
	WorkerStateExhausted
	WorkerStateFailed

	// WorkerStateNotStarted means the search was stopped before the worker
	// checked anything, so its partition was not searched at all.
	WorkerStateNotStarted
)

func (s WorkerState) String() string {
	switch s {
	case WorkerStateSearching:
		return "searching"
	case WorkerStateFound:
		return "found"
	case WorkerStateCancelled:
		return "cancelled"
	case WorkerStateExhausted:
		return "exhausted"
	case WorkerStateFailed:
		return "failed"
	case WorkerStateNotStarted:
		return "not_started"
	}
	return fmt.Sprintf("unknown_state_%d", uint32(s))
}

// FindStatus is the status of the whole search.
type FindStatus uint32

const (
	FindStatusNotFound = FindStatus(iota)
	FindStatusFound
	FindStatusCancelled
	FindStatusFailed
)

func (s FindStatus) String() string {
	switch s {
	case FindStatusNotFound:
		return "not_found"
	case FindStatusFound:
		return "found"
	case FindStatusCancelled:
		return "cancelled"
	case FindStatusFailed:
		return "failed"
	}
	return fmt.Sprintf("unknown_status_%d", uint32(s))
}

type searchShared struct {
	GuessCount atomic.Uint64

	// Status is a global signaler if somebody already
	// found a solution (or failed, or the search was cancelled)
	// and everybody else should stop wasting CPU.
	//
	// It is polled on every iteration instead of ctx.Done() because
	// reading an atomic is much cheaper than a select.
	Status atomic.Uint32
}

func (s *searchShared) status() FindStatus {
	return FindStatus(s.Status.Load())
}

// stop switches the status from "not found" to the given one, and
// does nothing if somebody already stopped the search.
func (s *searchShared) stop(status FindStatus) bool {
	return s.Status.CompareAndSwap(uint32(FindStatusNotFound), uint32(status))
}

type workerJob struct {
	Index        uint
	StartOffset  *big.Int
	PartitionEnd *big.Int
}

// WorkerResult is the final report of a worker.
type WorkerResult struct {
	WorkerIndex    uint
	State          WorkerState
	Buffer         []byte
	Digest         Digest
	Guesses        uint64
	PartialMatches uint64
	Wraparounds    uint64
	Elapsed        time.Duration
	Error          error
}

type worker struct {
	// immutable:
	index    uint
	settings *Settings
	shared   *searchShared

	// owned exclusively by the worker:
	buffer       []byte
	hasher       hash.Hash
	digest       []byte
	partitionEnd []byte

	isTracingEnabled bool
}

func newWorker(
	ctx context.Context,
	index uint,
	settings *Settings,
	shared *searchShared,
	buffer []byte,
	partitionEnd *big.Int,
) *worker {
	hasher := settings.HasherFactory()
	end := make([]byte, settings.CounterWidth)
	SetCounter(end, settings.CounterWidth, partitionEnd)
	return &worker{
		index:            index,
		settings:         settings,
		shared:           shared,
		buffer:           buffer,
		hasher:           hasher,
		digest:           make([]byte, 0, hasher.Size()),
		partitionEnd:     end,
		isTracingEnabled: logger.FromCtx(ctx).Level() >= logger.LevelTrace,
	}
}

// Run increments, hashes and compares until it finds the target pattern
// or the search is stopped.
func (w *worker) Run(ctx context.Context) (result WorkerResult) {
	startedAt := time.Now()
	result.WorkerIndex = w.index

	logger.FromCtx(ctx).Debugf("started the search at %X", w.buffer[len(w.buffer)-int(w.settings.CounterWidth):])
	defer func() {
		if r := recover(); r != nil {
			result.State = WorkerStateFailed
			result.Error = fmt.Errorf("worker #%d panicked: %v", w.index, r)
			w.shared.stop(FindStatusFailed)
		}
		result.Elapsed = time.Since(startedAt)
		logger.FromCtx(ctx).Debugf("ended the search; state: %s, guesses: %d, partial matches: %d",
			result.State, result.Guesses, result.PartialMatches)
	}()

	var (
		buffer             = w.buffer
		counter            = buffer[len(buffer)-int(w.settings.CounterWidth):]
		partitionEnd       = w.partitionEnd
		hasher             = w.hasher
		digest             = w.digest
		pattern            = w.settings.TargetPattern
		partialLength      = w.settings.PartialLength
		counterWidth       = w.settings.CounterWidth
		stopAtPartitionEnd = w.settings.StopAtPartitionEnd
		guessLimit         = w.settings.MaxGuesses
		onPartialMatch     = w.settings.OnPartialMatch
		guessCount         = &w.shared.GuessCount
		leftPartition      bool
	)

	if w.shared.status() != FindStatusNotFound {
		result.State = WorkerStateNotStarted
		return
	}

	for {
		if w.shared.status() != FindStatusNotFound {
			result.State = WorkerStateCancelled
			return
		}

		if Increment(buffer, counterWidth) {
			result.Wraparounds++
			logger.FromCtx(ctx).Debugf("the counter wrapped around after %d guesses", result.Guesses)
		}

		hasher.Reset()
		if _, err := hasher.Write(buffer); err != nil {
			result.State = WorkerStateFailed
			result.Error = fmt.Errorf("worker #%d is unable to hash the buffer: %w", w.index, err)
			w.shared.stop(FindStatusFailed)
			return
		}
		digest = hasher.Sum(digest[:0])
		result.Guesses++
		if w.isTracingEnabled {
			logger.FromCtx(ctx).Tracef("%X: %X", buffer, digest)
		}

		if pattern.IsPartialMatch(digest, partialLength) {
			result.PartialMatches++
			elapsed := time.Since(startedAt)
			logger.FromCtx(ctx).Infof("worker %d found %d times %d correct starting bytes - %d seconds elapsed",
				w.index, result.PartialMatches, partialLength, int64(elapsed.Seconds()))
			if onPartialMatch != nil {
				onPartialMatch(ctx, PartialMatch{
					WorkerIndex: w.index,
					Count:       result.PartialMatches,
					Elapsed:     elapsed,
					Buffer:      bytes.Clone(buffer),
					Digest:      bytes.Clone(digest),
				})
			}
		}
		if pattern.IsFullMatch(digest) {
			result.State = WorkerStateFound
			result.Buffer = bytes.Clone(buffer)
			result.Digest = bytes.Clone(digest)
			guessCount.Add(1)
			if !w.shared.stop(FindStatusFound) {
				logger.FromCtx(ctx).Debugf("found a match, but the search was already stopped with status %s", w.shared.status())
			}
			return
		}

		v := guessCount.Add(1)
		if !leftPartition && bytes.Equal(counter, partitionEnd) {
			if stopAtPartitionEnd {
				result.State = WorkerStateExhausted
				return
			}
			leftPartition = true
			logger.FromCtx(ctx).Warnf("the partition is exhausted after %d guesses; continuing into the partition of the next worker", result.Guesses)
		}
		if guessLimit != 0 && v >= guessLimit {
			w.shared.stop(FindStatusCancelled)
			result.State = WorkerStateCancelled
			return
		}
	}
}
