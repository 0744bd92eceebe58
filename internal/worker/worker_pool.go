// ============================================================================
// Card Recovery Worker Pool - 靜態分區並行掃描
// ============================================================================
//
// Package: internal/worker
// 文件: worker_pool.go
// 功能: 將候選空間切成連續且不重疊的子區間，每個 Worker 負責一段
//
// 設計模式:
//   固定大小的 Worker Pool，但不共享任務 channel：
//   1. Partition() 將 [Start, End) 切成最多 size 段
//   2. 每段啟動一個 Worker goroutine（無 work-stealing、無動態平衡）
//   3. Worker 只回傳本地結果（匹配索引 + 已處理數）
//   4. errgroup 負責等待與錯誤傳播
//
// 架構組件:
//   ┌─────────────┐
//   │   Engine    │ --Run(tasks)-->
//   └─────────────┘
//         ↑
//    []Result / error
//         ↑
//   ┌──────────────────────────────┐
//   │   Pool (errgroup)            │
//   │  ┌──────────────────────┐    │
//   │  │Worker 0 [0, n/k)     │    │
//   │  │Worker 1 [n/k, 2n/k)  │ ──→ progress chan (deltas)
//   │  │Worker 2 ...          │    │
//   │  └──────────────────────┘    │
//   └──────────────────────────────┘
//
// 錯誤處理:
//   - 任一 Worker 失敗 → errgroup 取消共享 context → 其他 Worker 在下一個候選邊界停止
//   - Run 回傳第一個 *types.WorkerError，部分結果全部丟棄
//   - 呼叫端取消 → Worker 標記 Stopped，Run 不回傳錯誤，由呼叫端判斷
//
// ============================================================================

package worker

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/ChuLiYu/card-recovery/pkg/types"
)

// DefaultReportEvery is how many candidates a worker evaluates between progress sends.
const DefaultReportEvery int64 = 1024

var (
	// ErrPoolBusy 表示 Pool 正在執行另一次掃描
	ErrPoolBusy = errors.New("worker pool is already running")
	// ErrNoTasks 表示沒有可執行的子區間
	ErrNoTasks = errors.New("worker pool has no tasks")
)

// RunOptions tune a single Run.
type RunOptions struct {
	ReportEvery int64        // Candidates between progress sends, DefaultReportEvery if <= 0
	Progress    chan<- int64 // Receives processed deltas, may be nil
	EarlyExit   bool         // Stop workers that can no longer produce the lowest match
}

// Pool runs range scans on a fixed number of workers
type Pool struct {
	size    int        // 最大並行 Worker 數量
	running bool       // 是否正在執行
	runs    int        // 已完成的 Run 次數
	mu      sync.Mutex // 保護 running 狀態
}

// NewPool 建立新的 Worker Pool
// 參數：
//   - size: Worker 數量，<= 0 時視為 1
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{size: size}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Tasks partitions r into one Task per worker.
func (p *Pool) Tasks(r types.Range) []Task {
	parts := Partition(r, p.size)
	tasks := make([]Task, len(parts))
	for i, part := range parts {
		tasks[i] = Task{ID: i, Range: part}
	}
	return tasks
}

// Run 執行所有 Task 並等待全部 Worker 結束
//
// 參數：
//   - ctx: 取消訊號，在每個候選邊界檢查
//   - tasks: 靜態分配的子區間
//   - newProbe: 為每個 Worker 建立私有的 Probe
//   - opts: 進度回報與提前結束設定
//
// 返回值：
//   - []Result: 依 Task 順序排列的本地結果
//   - error: 第一個 Worker 失敗（*types.WorkerError），或 ErrPoolBusy / ErrNoTasks
func (p *Pool) Run(ctx context.Context, tasks []Task, newProbe ProbeFactory, opts RunOptions) ([]Result, error) {
	if len(tasks) == 0 {
		return nil, ErrNoTasks
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil, ErrPoolBusy
	}
	p.running = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.runs++
		p.mu.Unlock()
	}()

	var best *atomic.Int64
	if opts.EarlyExit {
		best = new(atomic.Int64)
		best.Store(math.MaxInt64)
	}

	results := make([]Result, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.size)

	for i, task := range tasks {
		w := newWorker(task, newProbe(), opts.Progress, opts.ReportEvery, best)
		g.Go(func() error {
			res, err := w.Run(gctx)
			results[i] = res
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// IsRunning 檢查 Pool 是否正在執行
func (p *Pool) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Runs returns how many Run calls have finished.
func (p *Pool) Runs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runs
}

// Partition splits r into at most n contiguous, disjoint sub-ranges covering r.
// Sizes differ by at most one; the larger parts come first. Empty parts are dropped.
func Partition(r types.Range, n int) []types.Range {
	total := r.Len()
	if total == 0 {
		return nil
	}
	if n <= 0 {
		n = 1
	}
	if int64(n) > total {
		n = int(total)
	}

	base := total / int64(n)
	extra := total % int64(n)

	parts := make([]types.Range, 0, n)
	start := r.Start
	for i := 0; i < n; i++ {
		size := base
		if int64(i) < extra {
			size++
		}
		parts = append(parts, types.Range{Start: start, End: start + size})
		start += size
	}
	return parts
}
