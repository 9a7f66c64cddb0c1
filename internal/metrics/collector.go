// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/BaSui01/dbsession/internal/database"
	"github.com/BaSui01/dbsession/retry"
	"github.com/BaSui01/dbsession/types"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器。
//
// 同时实现 query.Observer、retry.Observer、transaction.Observer
// 与 database.StatsObserver。
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 语句指标
	statementsTotal   *prometheus.CounterVec
	statementDuration *prometheus.HistogramVec

	// 冲突重试指标
	retriesTotal   *prometheus.CounterVec
	retryBackoff   prometheus.Histogram
	retryExhausted *prometheus.CounterVec

	// 事务指标
	transactionsTotal *prometheus.CounterVec

	// 连接池指标
	poolOpen      prometheus.Gauge
	poolInUse     prometheus.Gauge
	poolIdle      prometheus.Gauge
	poolWaitCount prometheus.Gauge

	registerer prometheus.Registerer
	logger     *zap.Logger
}

// NewCollector 创建指标收集器，并把全部指标注册到 reg。
// reg 为 nil 时使用 prometheus.DefaultRegisterer。
// 同一 reg 上重复创建同名空间的收集器前，必须先调用 Unregister。
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		registerer: reg,
		logger:     logger.With(zap.String("component", "metrics")),
	}
	factory := promauto.With(reg)

	// HTTP 指标
	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 语句指标
	c.statementsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statements_total",
			Help:      "Total number of executed SQL statements",
		},
		[]string{"mode", "status"},
	)

	c.statementDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "statement_duration_seconds",
			Help:      "SQL statement duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"mode"},
	)

	// 冲突重试指标
	c.retriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflict_retries_total",
			Help:      "Total number of retries after a serialization or deadlock conflict",
		},
		[]string{"sqlstate"},
	)

	c.retryBackoff = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conflict_backoff_seconds",
			Help:      "Backoff delay before a conflict retry in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)

	c.retryExhausted = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflict_retries_exhausted_total",
			Help:      "Total number of units of work that failed after all conflict retries",
		},
		[]string{"sqlstate"},
	)

	// 事务指标
	c.transactionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transaction_operations_total",
			Help:      "Total number of transaction lifecycle operations",
		},
		[]string{"operation", "status"},
	)

	// 连接池指标
	c.poolOpen = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_connections_open",
		Help:      "Number of open database connections",
	})
	c.poolInUse = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_connections_in_use",
		Help:      "Number of database connections currently checked out",
	})
	c.poolIdle = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_connections_idle",
		Help:      "Number of idle database connections",
	})
	c.poolWaitCount = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_connections_wait_count",
		Help:      "Total number of connections waited for",
	})

	c.logger.Debug("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// Unregister 从注册表中移除全部指标，之后可在同一命名空间重新创建收集器
func (c *Collector) Unregister() {
	for _, m := range c.metrics() {
		c.registerer.Unregister(m)
	}
	c.logger.Debug("metrics collector unregistered")
}

func (c *Collector) metrics() []prometheus.Collector {
	return []prometheus.Collector{
		c.httpRequestsTotal, c.httpRequestDuration,
		c.statementsTotal, c.statementDuration,
		c.retriesTotal, c.retryBackoff, c.retryExhausted,
		c.transactionsTotal,
		c.poolOpen, c.poolInUse, c.poolIdle, c.poolWaitCount,
	}
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// =============================================================================
// 🗄️ 语句与事务指标记录
// =============================================================================

// ObserveStatement 记录单条语句执行
func (c *Collector) ObserveStatement(parallel bool, duration time.Duration, err error) {
	mode := "sequential"
	if parallel {
		mode = "parallel"
	}
	c.statementsTotal.WithLabelValues(mode, errorStatus(err)).Inc()
	c.statementDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// ObserveRetry 记录一次冲突重试
func (c *Collector) ObserveRetry(attempt int, delay time.Duration, err error) {
	c.retriesTotal.WithLabelValues(sqlState(err)).Inc()
	c.retryBackoff.Observe(delay.Seconds())
}

// ObserveRetryExhausted 记录重试耗尽
func (c *Collector) ObserveRetryExhausted(attempts int, err error) {
	c.retryExhausted.WithLabelValues(sqlState(err)).Inc()
	c.logger.Debug("conflict retries exhausted", zap.Int("attempts", attempts))
}

// ObserveTransaction 记录事务生命周期操作
func (c *Collector) ObserveTransaction(op string, err error) {
	c.transactionsTotal.WithLabelValues(op, errorStatus(err)).Inc()
}

// ObservePool 记录连接池统计
func (c *Collector) ObservePool(stats database.PoolStats) {
	c.poolOpen.Set(float64(stats.OpenConnections))
	c.poolInUse.Set(float64(stats.InUse))
	c.poolIdle.Set(float64(stats.Idle))
	c.poolWaitCount.Set(float64(stats.WaitCount))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

// errorStatus 按最内层错误码归类
func errorStatus(err error) string {
	if err == nil {
		return "ok"
	}
	if code := types.RootCode(err); code != "" {
		return strings.ToLower(string(code))
	}
	return "error"
}

func sqlState(err error) string {
	if state := retry.SQLState(err); state != "" {
		return state
	}
	return "unknown"
}
