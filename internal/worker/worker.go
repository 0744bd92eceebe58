// ============================================================================
// Card Recovery Worker - Range Scanning Unit
// ============================================================================
//
// Package: internal/worker
// File: worker.go
// Function: Evaluates every candidate of one static sub-range in ascending order
//
// How it works:
//   Each Worker runs in its own goroutine and owns one Task:
//   1. Build a private Probe (hash state + number buffer)
//   2. For index := Start; index < End; index++
//      ├─ check cancellation at the candidate boundary
//      ├─ (early-exit) stop once index passes the best known match
//      ├─ probe(index), remember the first match
//      └─ every ReportEvery candidates, send the processed delta
//   3. Flush the remaining delta and return a local Result
//
// Execution Model:
//   ┌─────────────────────────────────────┐
//   │  Worker Goroutine                   │
//   │  ┌──────────────────────────────┐   │
//   │  │ for index in [Start, End)    │   │
//   │  │   ├─ <-done ?  → Stopped     │   │
//   │  │   ├─ probe(index)            │   │
//   │  │   └─ progress <- delta       │   │
//   │  └──────────────────────────────┘   │
//   └─────────────────────────────────────┘
//
// Error Handling:
//   - Probe error: wrapped in types.WorkerError
//   - Panic (e.g. runtime out of memory in a probe): recovered into types.WorkerError
//   - Cancellation is not an error: the Result is marked Stopped and Cancelled
//
// Shared State:
//   Workers write nothing shared except, in early-exit mode, the atomic best
//   index which only ever decreases.
//
// ============================================================================

package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ChuLiYu/card-recovery/pkg/types"
)

// Worker scans one Task
type Worker struct {
	id          int           // Worker unique identifier, used for logging and errors
	task        Task          // Static sub-range assigned at start
	probe       Probe         // Private candidate evaluator
	progress    chan<- int64  // Processed deltas (write-only), may be nil
	reportEvery int64         // Candidates between progress sends
	best        *atomic.Int64 // Lowest match index seen by any worker, nil in exhaustive mode
}

// newWorker creates a new Worker instance
func newWorker(task Task, probe Probe, progress chan<- int64, reportEvery int64, best *atomic.Int64) *Worker {
	if reportEvery <= 0 {
		reportEvery = DefaultReportEvery
	}
	return &Worker{
		id:          task.ID,
		task:        task,
		probe:       probe,
		progress:    progress,
		reportEvery: reportEvery,
		best:        best,
	}
}

// Run scans the Task range and returns the local Result.
// A non-nil error is always a *types.WorkerError.
func (w *Worker) Run(ctx context.Context) (result Result, err error) {
	start := time.Now()
	done := ctx.Done()

	result = Result{
		WorkerID:   w.id,
		Range:      w.task.Range,
		MatchIndex: NoMatch,
	}

	index := w.task.Range.Start
	var pending int64

	defer func() {
		if r := recover(); r != nil {
			err = &types.WorkerError{WorkerID: w.id, Index: index, Cause: fmt.Errorf("panic: %v", r)}
		}
		w.report(done, pending)
		result.Duration = time.Since(start)
	}()

	for ; index < w.task.Range.End; index++ {
		select {
		case <-done:
			result.Stopped = true
			result.Cancelled = true
			return result, nil
		default:
		}

		if w.best != nil && index > w.best.Load() {
			// A lower match already exists, nothing left here can win
			result.Stopped = true
			return result, nil
		}

		ok, probeErr := w.probe(index)
		if probeErr != nil {
			return result, &types.WorkerError{WorkerID: w.id, Index: index, Cause: probeErr}
		}

		result.Processed++
		pending++

		if ok && result.MatchIndex == NoMatch {
			result.MatchIndex = index
			w.offerBest(index)
		}

		if pending >= w.reportEvery {
			w.report(done, pending)
			pending = 0
		}
	}

	return result, nil
}

// report sends a processed delta. It gives up if the search was cancelled so
// a stalled aggregator never blocks shutdown.
func (w *Worker) report(done <-chan struct{}, delta int64) {
	if w.progress == nil || delta == 0 {
		return
	}
	select {
	case w.progress <- delta:
	case <-done:
	}
}

// offerBest lowers the shared best index to index if it is smaller.
func (w *Worker) offerBest(index int64) {
	if w.best == nil {
		return
	}
	for {
		cur := w.best.Load()
		if index >= cur || w.best.CompareAndSwap(cur, index) {
			return
		}
	}
}
