// ============================================================================
// Card Recovery Metrics - Prometheus 監控指標
// ============================================================================
//
// Package: internal/metrics
// 文件: metrics.go
// 功能: 收集和暴露搜尋引擎的運行指標，支持 Prometheus 監控
//
// 指標分類:
//
//   1. 計數器 (Counter) - 累計值，只增不減：
//      - card_recovery_searches_total{outcome}: 依結果分類的搜尋次數
//        outcome = found | not_found | cancelled | invalid_spec | worker_failure
//      - card_recovery_candidates_evaluated_total: 已評估的候選號碼總數
//
//   2. 性能指標 (Histogram) - 分佈統計：
//      - card_recovery_search_duration_seconds: 單次搜尋耗時
//        * 桶分佈: 0.1 ~ 600 秒（完整 10^6 空間在單核上約數秒）
//
//   3. 狀態指標 (Gauge) - 瞬時值：
//      - card_recovery_search_workers: 最近一次搜尋使用的 Worker 數
//      - card_recovery_searches_in_flight: 當前執行中的搜尋數
//
// Prometheus 查詢示例:
//
//   # 每秒評估的候選數
//   rate(card_recovery_candidates_evaluated_total[1m])
//
//   # 95 分位搜尋耗時
//   histogram_quantile(0.95, card_recovery_search_duration_seconds_bucket)
//
// HTTP 端點:
//   通過 /metrics 端點暴露，默認端口: 9090
//
// ============================================================================

package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector Prometheus 指標收集器
type Collector struct {
	// 搜尋相關指標
	searches   *prometheus.CounterVec
	candidates prometheus.Counter

	// 效能指標
	duration prometheus.Histogram

	// 狀態指標
	workers  prometheus.Gauge
	inFlight prometheus.Gauge
}

// NewCollector 創建新的指標收集器並註冊到 reg
// reg 為 nil 時使用 prometheus.DefaultRegisterer
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "card_recovery_searches_total",
			Help: "Total number of searches by outcome",
		}, []string{"outcome"}),
		candidates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "card_recovery_candidates_evaluated_total",
			Help: "Total number of candidate card numbers hashed",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "card_recovery_search_duration_seconds",
			Help:    "Wall-clock duration of a search in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}),
		workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "card_recovery_search_workers",
			Help: "Worker count used by the most recent search",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "card_recovery_searches_in_flight",
			Help: "Current number of running searches",
		}),
	}

	// 註冊所有指標
	reg.MustRegister(c.searches)
	reg.MustRegister(c.candidates)
	reg.MustRegister(c.duration)
	reg.MustRegister(c.workers)
	reg.MustRegister(c.inFlight)

	return c
}

// SearchStarted 記錄搜尋開始
func (c *Collector) SearchStarted(workers int) {
	c.inFlight.Inc()
	c.workers.Set(float64(workers))
}

// SearchFinished 記錄搜尋結束
//
// 參數：
//   - outcome: 搜尋結果標籤
//   - processed: 本次評估的候選數
//   - seconds: 耗時（秒）
func (c *Collector) SearchFinished(outcome string, processed int64, seconds float64) {
	c.inFlight.Dec()
	c.searches.WithLabelValues(outcome).Inc()
	if processed > 0 {
		c.candidates.Add(float64(processed))
	}
	c.duration.Observe(seconds)
}

// SearchRejected 記錄未通過參數驗證、從未啟動的搜尋
func (c *Collector) SearchRejected() {
	c.searches.WithLabelValues("invalid_spec").Inc()
}

// Handler 返回只暴露 gatherer 指標的 HTTP handler
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// StartServer 啟動 Prometheus metrics HTTP 伺服器
//
// 參數：
//   - port: HTTP 伺服器端口
//   - gatherer: 指標來源，nil 時使用預設 registry
//
// 返回值：
//   - error: 啟動失敗的錯誤
func StartServer(port int, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	addr := fmt.Sprintf(":%d", port)
	return http.ListenAndServe(addr, mux)
}
