// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器，实现 gateway.Recorder
type Collector struct {
	// 网关请求指标
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	// 队列任务指标
	statusChanges  *prometheus.CounterVec
	terminalsTotal *prometheus.CounterVec

	// 传输指标
	transferBytes *prometheus.CounterVec

	// 模型用量与批处理
	tokensUsed *prometheus.CounterVec
	batchJobs  *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
// 指标注册到默认 Registry，同一进程内 namespace 不能重复。
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Total number of gateway HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	c.requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Gateway HTTP request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"method", "route"},
	)

	c.statusChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_status_changes_total",
			Help:      "Total number of observed queue job status changes",
		},
		[]string{"endpoint", "status"},
	)

	c.terminalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_terminal_total",
			Help:      "Total number of queue jobs that reached an outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	c.transferBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfer_bytes_total",
			Help:      "Total bytes moved by uploads and downloads",
		},
		[]string{"direction"},
	)

	c.tokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens reported by understanding calls",
		},
		[]string{"model", "type"}, // type: prompt, completion
	)

	c.batchJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_jobs_total",
			Help:      "Total number of batch jobs by mode and result",
		},
		[]string{"mode", "result"},
	)

	c.logger.Debug("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 网关指标记录
// =============================================================================

// RecordRequest 记录一次网关请求，status 为 0 表示网络层失败
func (c *Collector) RecordRequest(method, route string, status int, duration time.Duration) {
	c.requestsTotal.WithLabelValues(method, route, statusClass(status)).Inc()
	c.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordStatusChange 记录任务状态变化
func (c *Collector) RecordStatusChange(endpoint, status string) {
	c.statusChanges.WithLabelValues(endpoint, status).Inc()
}

// RecordTerminal 记录任务结局（COMPLETED、FAILED、TIMEOUT 等）
func (c *Collector) RecordTerminal(endpoint, outcome string) {
	c.terminalsTotal.WithLabelValues(endpoint, outcome).Inc()
}

// RecordTransfer 记录上传或下载的字节数
func (c *Collector) RecordTransfer(direction string, bytes int64) {
	if bytes <= 0 {
		return
	}
	c.transferBytes.WithLabelValues(direction).Add(float64(bytes))
}

// =============================================================================
// 🤖 用量与批处理
// =============================================================================

// RecordTokens 记录模型返回的 token 用量
func (c *Collector) RecordTokens(model string, promptTokens, completionTokens int) {
	c.tokensUsed.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	c.tokensUsed.WithLabelValues(model, "completion").Add(float64(completionTokens))
}

// RecordBatchJob 记录批处理中单个任务的结果
func (c *Collector) RecordBatchJob(mode string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	c.batchJobs.WithLabelValues(mode, result).Inc()
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusClass 将 HTTP 状态码归类
func statusClass(code int) string {
	switch {
	case code == 0:
		return "error"
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		if code == 429 {
			return strconv.Itoa(code)
		}
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
