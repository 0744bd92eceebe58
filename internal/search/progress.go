package search

import (
	"github.com/ChuLiYu/card-recovery/pkg/types"
)

// ProgressFunc receives advisory progress. It is never invoked concurrently and
// successive Processed values never decrease.
type ProgressFunc func(types.ProgressEvent)

// aggregator sums worker deltas into one cumulative count.
//
//	workers --delta--> deltas chan --> run() --latest (cap 1)--> dispatch() --> ProgressFunc
//
// run() never waits on the callback: if the callback is slow, intermediate
// counts are coalesced and only the newest one is delivered next.
type aggregator struct {
	total      int64
	onProgress ProgressFunc
	latest     chan int64
	done       chan struct{}
	processed  int64 // owned by run() until done is closed
}

func newAggregator(total int64, onProgress ProgressFunc) *aggregator {
	return &aggregator{
		total:      total,
		onProgress: onProgress,
		latest:     make(chan int64, 1),
		done:       make(chan struct{}),
	}
}

// run consumes deltas until the channel is closed, then waits for the last
// callback to return.
func (a *aggregator) run(deltas <-chan int64) {
	dispatched := make(chan struct{})
	go a.dispatch(dispatched)

	for d := range deltas {
		a.processed = min(a.processed+d, a.total)
		a.offer(a.processed)
	}

	close(a.latest)
	<-dispatched
	close(a.done)
}

// offer replaces any undelivered count with v. Only run() sends on latest,
// so after the drain the send cannot block.
func (a *aggregator) offer(v int64) {
	select {
	case <-a.latest:
	default:
	}
	a.latest <- v
}

func (a *aggregator) dispatch(dispatched chan<- struct{}) {
	defer close(dispatched)

	notify := a.onProgress
	for v := range a.latest {
		if notify == nil {
			continue
		}
		if !a.safeNotify(notify, v) {
			notify = nil
		}
	}
}

// safeNotify shields the search from a panicking callback; the callback is
// dropped for the rest of the search.
func (a *aggregator) safeNotify(notify ProgressFunc, v int64) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Progress callback panicked, disabling progress", "panic", r)
			ok = false
		}
	}()
	notify(types.ProgressEvent{Processed: v, Total: a.total})
	return true
}

// wait blocks until run() has finished and returns the final count.
func (a *aggregator) wait() int64 {
	<-a.done
	return a.processed
}
