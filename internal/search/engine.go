// ============================================================================
// Card Recovery Search Engine
// ============================================================================
//
// Package: internal/search
// File: engine.go
// Purpose: Runs one brute-force search and reduces worker results to a winner
//
// Flow:
//   Search(ctx, spec, onProgress)
//     1. prepare: validate spec → Generator + Matcher + worker count
//     2. partition the infix range, one static sub-range per worker
//     3. workers hash every candidate, progress deltas → aggregator → onProgress
//     4. wait for all workers (full sweep) or cancellation / failure
//     5. reduce: lowest matching index wins, independent of completion order
//     6. record stats + metrics, return SearchResult exactly once
//
// Modes:
//   exhaustive  every candidate is evaluated before returning; the final
//               progress count equals Total
//   early-exit  workers whose remaining indices are all above a known match
//               stop early; the winner is still the lowest matching index,
//               but Processed may be below Total
//
// Error taxonomy:
//   ErrInvalidSpec    malformed input, surfaced before any worker starts
//   ErrWorkerFailure  a worker failed, whole search aborted, no partial result
//   ErrCancelled      ctx cancelled, Outcome = cancelled
//   not found is an Outcome, never an error
//
// ============================================================================

package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ChuLiYu/card-recovery/internal/candidate"
	"github.com/ChuLiYu/card-recovery/internal/hashmatch"
	"github.com/ChuLiYu/card-recovery/internal/metrics"
	"github.com/ChuLiYu/card-recovery/internal/stats"
	"github.com/ChuLiYu/card-recovery/internal/worker"
	"github.com/ChuLiYu/card-recovery/pkg/types"
)

var log = slog.Default()

const tracerName = "github.com/ChuLiYu/card-recovery/internal/search"

var (
	ErrInvalidSpec   = types.ErrInvalidSpec
	ErrWorkerFailure = types.ErrWorkerFailure
	ErrCancelled     = types.ErrCancelled
)

// Config Engine 配置，所有欄位皆可省略
type Config struct {
	DefaultWorkers int                // Used when SearchSpec.WorkerCount <= 0, GOMAXPROCS if also <= 0
	ReportEvery    int64              // Candidates per progress delta, worker.DefaultReportEvery if <= 0
	Metrics        *metrics.Collector // Prometheus collector, nil disables metrics
	Stats          stats.Recorder     // Receives one row per completed search, may be nil
	Logger         *slog.Logger       // Defaults to slog.Default()
	Tracer         trace.Tracer       // Defaults to the global otel tracer
}

// Engine runs searches. It holds no per-search state and is safe for concurrent use.
type Engine struct {
	cfg    Config
	log    *slog.Logger
	tracer trace.Tracer
	probes func(*plan) worker.ProbeFactory
}

// NewEngine 建立搜尋引擎
func NewEngine(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = log
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	e := &Engine{cfg: cfg, log: logger, tracer: tracer}
	e.probes = e.probeFactory
	return e
}

// plan is a validated, ready to run search.
type plan struct {
	spec    types.SearchSpec
	gen     *candidate.Generator
	matcher *hashmatch.Matcher
	workers int
	mode    types.SearchMode
}

// Validate checks spec without running it.
func (e *Engine) Validate(spec types.SearchSpec) error {
	_, err := e.prepare(spec)
	return err
}

func (e *Engine) prepare(spec types.SearchSpec) (*plan, error) {
	if !isDigits(spec.Prefix) {
		return nil, types.InvalidSpecf("prefix %q must contain only digits", spec.Prefix)
	}
	if !isDigits(spec.Suffix) {
		return nil, types.InvalidSpecf("suffix %q must contain only digits", spec.Suffix)
	}

	mode := spec.Mode
	switch mode {
	case "":
		mode = types.ModeExhaustive
	case types.ModeExhaustive, types.ModeEarlyExit:
	default:
		return nil, types.InvalidSpecf("unknown search mode %q", spec.Mode)
	}

	gen, err := candidate.NewGenerator(spec.Prefix, spec.Suffix, spec.InfixWidth, spec.Range)
	if err != nil {
		return nil, err
	}
	if spec.CardLength > 0 && gen.NumberLen() != spec.CardLength {
		return nil, types.InvalidSpecf("prefix(%d) + infix(%d) + suffix(%d) = %d digits, want %d",
			len(spec.Prefix), spec.InfixWidth, len(spec.Suffix), gen.NumberLen(), spec.CardLength)
	}

	matcher, err := hashmatch.NewMatcher(spec.Algorithm, spec.TargetDigest)
	if err != nil {
		return nil, err
	}

	return &plan{
		spec:    spec,
		gen:     gen,
		matcher: matcher,
		workers: e.workerCount(spec.WorkerCount),
		mode:    mode,
	}, nil
}

func (e *Engine) workerCount(requested int) int {
	if requested > 0 {
		return requested
	}
	if e.cfg.DefaultWorkers > 0 {
		return e.cfg.DefaultWorkers
	}
	return runtime.GOMAXPROCS(0)
}

// Search 執行一次完整搜尋
//
// 參數：
//   - ctx: 取消訊號，Worker 在每個候選邊界檢查
//   - spec: 搜尋參數，不會被修改
//   - onProgress: 可選的進度回呼，序列化呼叫且單調不減
//
// 返回值：
//   - types.SearchResult: found / not_found / cancelled
//   - error: ErrInvalidSpec / ErrWorkerFailure / ErrCancelled
func (e *Engine) Search(ctx context.Context, spec types.SearchSpec, onProgress ProgressFunc) (types.SearchResult, error) {
	start := time.Now()
	result := types.SearchResult{
		SearchID: uuid.NewString(),
		Index:    worker.NoMatch,
	}
	logger := e.log.With("search_id", result.SearchID)

	ctx, span := e.tracer.Start(ctx, "search.run", trace.WithAttributes(
		attribute.String("search.id", result.SearchID),
		attribute.String("search.algorithm", spec.Algorithm),
		attribute.String("search.mode", string(spec.Mode)),
	))
	defer span.End()

	p, err := e.prepare(spec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid search spec")
		if e.cfg.Metrics != nil {
			e.cfg.Metrics.SearchRejected()
		}
		logger.Warn("Rejected search spec", "error", err)
		return result, err
	}

	result.Total = p.gen.Len()
	result.WorkerCount = p.workers
	span.SetAttributes(
		attribute.Int("search.workers", p.workers),
		attribute.Int64("search.total", result.Total),
	)

	if e.cfg.Metrics != nil {
		e.cfg.Metrics.SearchStarted(p.workers)
	}
	logger.Info("Search started",
		"algorithm", p.matcher.Algorithm().Name,
		"workers", p.workers,
		"total", result.Total,
		"mode", p.mode)

	results, processed, runErr := e.run(ctx, p, onProgress)
	result.Processed = processed
	result.Elapsed = time.Since(start)

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "worker failure")
		e.observe("worker_failure", processed, result.Elapsed)
		logger.Error("Search aborted", "error", runErr, "processed", processed)
		return types.SearchResult{SearchID: result.SearchID, Index: worker.NoMatch, Total: result.Total, WorkerCount: p.workers},
			fmt.Errorf("search %s: %w", result.SearchID, runErr)
	}

	best, cancelled := reduce(results)
	switch {
	case cancelled:
		result.Outcome = types.OutcomeCancelled
	case best != worker.NoMatch:
		result.Outcome = types.OutcomeFound
		result.Index = best
		result.Number = p.gen.At(best).Number
	default:
		result.Outcome = types.OutcomeNotFound
	}

	span.SetAttributes(
		attribute.String("search.outcome", string(result.Outcome)),
		attribute.Int64("search.processed", processed),
	)
	e.observe(string(result.Outcome), processed, result.Elapsed)

	if result.Outcome == types.OutcomeCancelled {
		logger.Info("Search cancelled", "processed", processed, "elapsed", result.Elapsed)
		return result, fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))
	}

	e.recordStat(logger, result.Elapsed, p.workers)

	if result.Found() {
		logger.Info("Card number found",
			"number", candidate.MaskNumber(result.Number),
			"index", result.Index,
			"processed", processed,
			"elapsed", result.Elapsed)
	} else {
		logger.Info("No match in search space", "processed", processed, "elapsed", result.Elapsed)
	}
	return result, nil
}

// run partitions the range and drives the worker pool.
func (e *Engine) run(ctx context.Context, p *plan, onProgress ProgressFunc) ([]worker.Result, int64, error) {
	pool := worker.NewPool(p.workers)
	tasks := pool.Tasks(p.gen.Range())

	deltas := make(chan int64, 2*len(tasks))
	agg := newAggregator(p.gen.Len(), onProgress)
	go agg.run(deltas)

	results, err := pool.Run(ctx, tasks, e.probes(p), worker.RunOptions{
		ReportEvery: e.cfg.ReportEvery,
		Progress:    deltas,
		EarlyExit:   p.mode == types.ModeEarlyExit,
	})
	close(deltas)
	processed := agg.wait()

	if err != nil {
		return nil, processed, err
	}
	return results, processed, nil
}

// probeFactory gives every worker its own hash state and number buffer.
func (e *Engine) probeFactory(p *plan) worker.ProbeFactory {
	return func() worker.Probe {
		state := p.matcher.NewState()
		buf := make([]byte, 0, p.gen.NumberLen())
		return func(index int64) (bool, error) {
			buf = p.gen.AppendNumber(buf[:0], index)
			return state.Matches(buf), nil
		}
	}
}

// reduce picks the lowest matching index. Completion order does not matter.
func reduce(results []worker.Result) (best int64, cancelled bool) {
	best = worker.NoMatch
	for _, r := range results {
		if r.Cancelled {
			cancelled = true
		}
		if r.Matched() && (best == worker.NoMatch || r.MatchIndex < best) {
			best = r.MatchIndex
		}
	}
	return best, cancelled
}

func (e *Engine) observe(outcome string, processed int64, elapsed time.Duration) {
	if e.cfg.Metrics == nil {
		return
	}
	e.cfg.Metrics.SearchFinished(outcome, processed, elapsed.Seconds())
}

// recordStat writes the telemetry row. A failing sink is a collaborator problem:
// it is logged and does not change the search result.
func (e *Engine) recordStat(logger *slog.Logger, elapsed time.Duration, workers int) {
	if e.cfg.Stats == nil {
		return
	}
	if err := e.cfg.Stats.RecordStat(elapsed.Seconds(), workers); err != nil {
		logger.Error("Failed to record search stats", "error", err)
	}
}

// IsWorkerFailure reports whether err aborted a search because a worker failed.
func IsWorkerFailure(err error) bool {
	return errors.Is(err, ErrWorkerFailure)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
