package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/card-recovery/internal/hashmatch"
	"github.com/ChuLiYu/card-recovery/internal/metrics"
	"github.com/ChuLiYu/card-recovery/internal/worker"
	"github.com/ChuLiYu/card-recovery/pkg/types"
)

const (
	testPrefix = "220220"
	testSuffix = "5688"
	testWidth  = 4 // 10^4 candidates keeps every search well under a second
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = quietLogger()
	}
	if cfg.ReportEvery == 0 {
		cfg.ReportEvery = 64
	}
	return NewEngine(cfg)
}

// plantedSpec returns a spec whose only match is the candidate at index k.
func plantedSpec(t *testing.T, k int64, workers int) types.SearchSpec {
	t.Helper()
	number := fmt.Sprintf("%s%0*d%s", testPrefix, testWidth, k, testSuffix)
	digest, err := hashmatch.Digest("sha1", number)
	require.NoError(t, err)
	return types.SearchSpec{
		TargetDigest: digest,
		Prefix:       testPrefix,
		Suffix:       testSuffix,
		InfixWidth:   testWidth,
		WorkerCount:  workers,
	}
}

// matchIndices replaces hashing with a probe that matches the given indices.
func matchIndices(e *Engine, indices ...int64) {
	set := make(map[int64]bool, len(indices))
	for _, i := range indices {
		set[i] = true
	}
	e.probes = func(*plan) worker.ProbeFactory {
		return func() worker.Probe {
			return func(index int64) (bool, error) { return set[index], nil }
		}
	}
}

type progressLog struct {
	mu      sync.Mutex
	events  []types.ProgressEvent
	active  atomic.Int32
	overlap atomic.Bool
}

func (p *progressLog) record(ev types.ProgressEvent) {
	if p.active.Add(1) > 1 {
		p.overlap.Store(true)
	}
	defer p.active.Add(-1)

	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}

func (p *progressLog) snapshot() []types.ProgressEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]types.ProgressEvent(nil), p.events...)
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []int
	err   error
}

func (f *fakeRecorder) RecordStat(_ float64, workerCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, workerCount)
	return f.err
}

func TestSearch_FindsPlantedNumber(t *testing.T) {
	const k = 4242
	for _, workers := range []int{1, 2, 8} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			e := newTestEngine(Config{})

			res, err := e.Search(context.Background(), plantedSpec(t, k, workers), nil)
			require.NoError(t, err)

			assert.Equal(t, types.OutcomeFound, res.Outcome)
			assert.True(t, res.Found())
			assert.Equal(t, int64(k), res.Index)
			assert.Equal(t, "2202204242"+testSuffix, res.Number)
			assert.Equal(t, int64(10000), res.Total)
			assert.Equal(t, res.Total, res.Processed, "exhaustive mode sweeps the whole space")
			assert.Equal(t, workers, res.WorkerCount)
			assert.NotEmpty(t, res.SearchID)
		})
	}
}

func TestSearch_BoundaryIndices(t *testing.T) {
	for _, k := range []int64{0, 9999} {
		t.Run(fmt.Sprintf("index=%d", k), func(t *testing.T) {
			res, err := newTestEngine(Config{}).Search(context.Background(), plantedSpec(t, k, 3), nil)
			require.NoError(t, err)
			assert.Equal(t, k, res.Index)
		})
	}
}

func TestSearch_NotFoundReportsFullProgress(t *testing.T) {
	spec := plantedSpec(t, 0, 4)
	spec.Prefix = "999999" // planted number is no longer in the space

	var progress progressLog
	res, err := newTestEngine(Config{}).Search(context.Background(), spec, progress.record)
	require.NoError(t, err, "not found is an outcome, not an error")

	assert.Equal(t, types.OutcomeNotFound, res.Outcome)
	assert.False(t, res.Found())
	assert.Empty(t, res.Number)
	assert.Equal(t, int64(worker.NoMatch), res.Index)
	assert.Equal(t, res.Total, res.Processed)

	events := progress.snapshot()
	require.NotEmpty(t, events)
	assert.Equal(t, res.Total, events[len(events)-1].Processed)
}

func TestSearch_ProgressMonotonicAndSerialized(t *testing.T) {
	spec := plantedSpec(t, 5000, 8)

	var progress progressLog
	_, err := newTestEngine(Config{ReportEvery: 7}).Search(context.Background(), spec, func(ev types.ProgressEvent) {
		progress.record(ev)
		time.Sleep(50 * time.Microsecond)
	})
	require.NoError(t, err)

	events := progress.snapshot()
	require.NotEmpty(t, events)
	assert.False(t, progress.overlap.Load(), "callback must never run concurrently")

	var last int64
	for _, ev := range events {
		assert.GreaterOrEqual(t, ev.Processed, last)
		assert.LessOrEqual(t, ev.Processed, ev.Total)
		assert.Equal(t, int64(10000), ev.Total)
		last = ev.Processed
	}
	assert.Equal(t, int64(10000), last)
}

func TestSearch_LowestIndexWinsRegardlessOfWorkersAndMode(t *testing.T) {
	for _, mode := range []types.SearchMode{types.ModeExhaustive, types.ModeEarlyExit} {
		for _, workers := range []int{1, 2, 8, 16} {
			t.Run(fmt.Sprintf("%s/workers=%d", mode, workers), func(t *testing.T) {
				e := newTestEngine(Config{})
				matchIndices(e, 9000, 700, 300)

				spec := plantedSpec(t, 0, workers)
				spec.Mode = mode
				res, err := e.Search(context.Background(), spec, nil)
				require.NoError(t, err)

				assert.Equal(t, int64(300), res.Index)
				assert.Equal(t, "2202200300"+testSuffix, res.Number)
				assert.LessOrEqual(t, res.Processed, res.Total)
				if mode == types.ModeExhaustive {
					assert.Equal(t, res.Total, res.Processed)
				}
			})
		}
	}
}

func TestSearch_EarlyExitStopsSooner(t *testing.T) {
	e := newTestEngine(Config{})
	matchIndices(e, 10)

	spec := plantedSpec(t, 0, 1)
	spec.Mode = types.ModeEarlyExit
	res, err := e.Search(context.Background(), spec, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(10), res.Index)
	assert.Equal(t, int64(11), res.Processed, "single worker stops right after its match")
}

func TestSearch_SubRange(t *testing.T) {
	spec := plantedSpec(t, 1500, 4)
	spec.Range = types.Range{Start: 1000, End: 2000}

	res, err := newTestEngine(Config{}).Search(context.Background(), spec, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), res.Index)
	assert.Equal(t, int64(1000), res.Total)

	spec.Range = types.Range{Start: 0, End: 1000}
	res, err = newTestEngine(Config{}).Search(context.Background(), spec, nil)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeNotFound, res.Outcome)
}

func TestSearch_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats := &fakeRecorder{}
	res, err := newTestEngine(Config{Stats: stats}).Search(ctx, plantedSpec(t, 10, 4), nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, types.OutcomeCancelled, res.Outcome)
	assert.Empty(t, res.Number)
	assert.Empty(t, stats.calls, "cancelled searches are not recorded")
}

func TestSearch_CancelMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	spec := plantedSpec(t, 0, 2)
	spec.Prefix = "999999"
	spec.InfixWidth = 6

	start := time.Now()
	res, err := newTestEngine(Config{ReportEvery: 16}).Search(ctx, spec, func(ev types.ProgressEvent) {
		if ev.Processed > 0 {
			cancel()
		}
	})

	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, types.OutcomeCancelled, res.Outcome)
	assert.Less(t, res.Processed, res.Total)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSearch_CancelCause(t *testing.T) {
	cause := errors.New("operator interrupt")
	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(cause)

	_, err := newTestEngine(Config{}).Search(ctx, plantedSpec(t, 1, 2), nil)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, cause)
}

func TestSearch_InvalidSpec(t *testing.T) {
	valid := plantedSpec(t, 1, 2)

	testCases := []struct {
		name   string
		mutate func(*types.SearchSpec)
	}{
		{"non-hex digest", func(s *types.SearchSpec) { s.TargetDigest = "zz" + s.TargetDigest[2:] }},
		{"short digest", func(s *types.SearchSpec) { s.TargetDigest = s.TargetDigest[:20] }},
		{"empty digest", func(s *types.SearchSpec) { s.TargetDigest = "" }},
		{"unknown algorithm", func(s *types.SearchSpec) { s.Algorithm = "crc32" }},
		{"letters in prefix", func(s *types.SearchSpec) { s.Prefix = "22O220" }},
		{"letters in suffix", func(s *types.SearchSpec) { s.Suffix = "56 88" }},
		{"zero width", func(s *types.SearchSpec) { s.InfixWidth = 0 }},
		{"range past space", func(s *types.SearchSpec) { s.Range = types.Range{Start: 0, End: 20000} }},
		{"length mismatch", func(s *types.SearchSpec) { s.CardLength = 16 }},
		{"unknown mode", func(s *types.SearchSpec) { s.Mode = "random" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			spec := valid
			tc.mutate(&spec)

			e := newTestEngine(Config{})
			assert.ErrorIs(t, e.Validate(spec), ErrInvalidSpec)

			res, err := e.Search(context.Background(), spec, nil)
			assert.ErrorIs(t, err, ErrInvalidSpec)
			assert.False(t, errors.Is(err, ErrWorkerFailure))
			assert.Empty(t, res.Outcome)
		})
	}
}

func TestSearch_CardLengthAccepted(t *testing.T) {
	spec := plantedSpec(t, 77, 2)
	spec.CardLength = len(testPrefix) + testWidth + len(testSuffix)

	res, err := newTestEngine(Config{}).Search(context.Background(), spec, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(77), res.Index)
}

func TestSearch_WorkerFailureAbortsSearch(t *testing.T) {
	stats := &fakeRecorder{}
	e := newTestEngine(Config{Stats: stats})
	boom := errors.New("out of memory")
	e.probes = func(*plan) worker.ProbeFactory {
		return func() worker.Probe {
			return func(index int64) (bool, error) {
				if index == 1234 {
					return false, boom
				}
				return index == 9000, nil
			}
		}
	}

	res, err := e.Search(context.Background(), plantedSpec(t, 0, 4), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWorkerFailure)
	assert.ErrorIs(t, err, boom)
	assert.True(t, IsWorkerFailure(err))
	assert.False(t, errors.Is(err, ErrCancelled))

	var werr *types.WorkerError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, int64(1234), werr.Index)

	assert.Empty(t, res.Outcome, "partial results are discarded")
	assert.Empty(t, res.Number)
	assert.Empty(t, stats.calls)
}

func TestSearch_WorkerPanicIsFailure(t *testing.T) {
	e := newTestEngine(Config{})
	e.probes = func(*plan) worker.ProbeFactory {
		return func() worker.Probe {
			return func(index int64) (bool, error) {
				if index == 42 {
					panic("corrupted state")
				}
				return false, nil
			}
		}
	}

	_, err := e.Search(context.Background(), plantedSpec(t, 0, 2), nil)
	assert.ErrorIs(t, err, ErrWorkerFailure)
}

func TestSearch_PanickingProgressCallback(t *testing.T) {
	res, err := newTestEngine(Config{}).Search(context.Background(), plantedSpec(t, 321, 4), func(types.ProgressEvent) {
		panic("ui crashed")
	})
	require.NoError(t, err)
	assert.Equal(t, int64(321), res.Index)
}

func TestSearch_RecordsStatsOnce(t *testing.T) {
	stats := &fakeRecorder{}
	e := newTestEngine(Config{Stats: stats})

	_, err := e.Search(context.Background(), plantedSpec(t, 10, 3), nil)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, stats.calls)

	spec := plantedSpec(t, 10, 5)
	spec.Suffix = "0000"
	_, err = e.Search(context.Background(), spec, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 5}, stats.calls, "not found searches are recorded too")
}

func TestSearch_StatsErrorDoesNotFailSearch(t *testing.T) {
	stats := &fakeRecorder{err: errors.New("disk full")}
	res, err := newTestEngine(Config{Stats: stats}).Search(context.Background(), plantedSpec(t, 10, 2), nil)
	require.NoError(t, err)
	assert.True(t, res.Found())
	assert.Len(t, stats.calls, 1)
}

func TestSearch_DefaultWorkers(t *testing.T) {
	res, err := newTestEngine(Config{DefaultWorkers: 3}).Search(context.Background(), plantedSpec(t, 10, 0), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.WorkerCount)

	res, err = newTestEngine(Config{}).Search(context.Background(), plantedSpec(t, 10, -1), nil)
	require.NoError(t, err)
	assert.Positive(t, res.WorkerCount)
}

func TestSearch_MoreWorkersThanCandidates(t *testing.T) {
	spec := plantedSpec(t, 3, 64)
	spec.Range = types.Range{Start: 0, End: 5}

	res, err := newTestEngine(Config{}).Search(context.Background(), spec, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Index)
	assert.Equal(t, int64(5), res.Processed)
}

func TestSearch_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := newTestEngine(Config{Metrics: metrics.NewCollector(reg)})

	_, err := e.Search(context.Background(), plantedSpec(t, 10, 2), nil)
	require.NoError(t, err)

	bad := plantedSpec(t, 10, 2)
	bad.Algorithm = "nope"
	_, err = e.Search(context.Background(), bad, nil)
	require.ErrorIs(t, err, ErrInvalidSpec)

	rec := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	assert.Contains(t, body, `card_recovery_searches_total{outcome="found"} 1`)
	assert.Contains(t, body, `card_recovery_searches_total{outcome="invalid_spec"} 1`)
	assert.Contains(t, body, "card_recovery_candidates_evaluated_total 10000")
	assert.Contains(t, body, "card_recovery_searches_in_flight 0")
}

func TestSearch_OtherAlgorithms(t *testing.T) {
	number := "2202200042" + testSuffix
	for _, alg := range []string{"md5", "sha256", "sha3-256", "blake2b-256"} {
		t.Run(alg, func(t *testing.T) {
			digest, err := hashmatch.Digest(alg, number)
			require.NoError(t, err)

			res, err := newTestEngine(Config{}).Search(context.Background(), types.SearchSpec{
				TargetDigest: digest,
				Prefix:       testPrefix,
				Suffix:       testSuffix,
				InfixWidth:   testWidth,
				WorkerCount:  4,
				Algorithm:    alg,
			}, nil)
			require.NoError(t, err)
			assert.Equal(t, number, res.Number)
		})
	}
}

func TestSearch_ConcurrentSearchesShareEngine(t *testing.T) {
	e := newTestEngine(Config{})

	var wg sync.WaitGroup
	for _, k := range []int64{11, 2222, 7777} {
		spec := plantedSpec(t, k, 2)
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.Search(context.Background(), spec, nil)
			assert.NoError(t, err)
			assert.Equal(t, k, res.Index)
		}()
	}
	wg.Wait()
}

func BenchmarkSearch_FullSpace(b *testing.B) {
	number := "2202209999995688"
	digest, _ := hashmatch.Digest("sha1", number)
	spec := types.SearchSpec{TargetDigest: digest, Prefix: testPrefix, Suffix: testSuffix, InfixWidth: 6}
	e := NewEngine(Config{Logger: quietLogger()})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Search(context.Background(), spec, nil); err != nil {
			b.Fatal(err)
		}
	}
}
