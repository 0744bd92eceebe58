package worker

import (
	"time"

	"github.com/ChuLiYu/card-recovery/pkg/types"
)

// NoMatch marks a Result whose sub-range held no matching candidate.
const NoMatch int64 = -1

// Task 代表分配給單一 Worker 的靜態子區間
type Task struct {
	ID    int         // 任務編號，同時作為 Worker ID
	Range types.Range // 要掃描的候選索引區間 [Start, End)
}

// Result 代表 Worker 掃描完子區間後的本地結果
type Result struct {
	WorkerID   int           // Worker ID
	Range      types.Range   // 掃描的子區間
	MatchIndex int64         // 子區間內最小的匹配索引，沒有則為 NoMatch
	Processed  int64         // 實際評估的候選數量
	Stopped    bool          // 因取消或提前結束而未掃完
	Cancelled  bool          // 因 context 取消而停止
	Duration   time.Duration // 實際執行時間
}

// Matched reports whether the worker recorded a match.
func (r Result) Matched() bool {
	return r.MatchIndex != NoMatch
}

// Probe evaluates one candidate index. It is owned by a single worker.
type Probe func(index int64) (bool, error)

// ProbeFactory builds a fresh Probe for each worker so per-worker state
// (hash state, number buffer) is never shared.
type ProbeFactory func() Probe
