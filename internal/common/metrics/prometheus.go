// Package metrics 提供 Prometheus 指标收集
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 指标收集器
type Metrics struct {
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge
	cacheHitsTotal       *prometheus.CounterVec
	cacheMissesTotal     *prometheus.CounterVec

	reservationAttempts    *prometheus.CounterVec
	reservationTransitions *prometheus.CounterVec
	sweepRunsTotal         *prometheus.CounterVec
	sweepItemsTotal        *prometheus.CounterVec
	priceCalcDuration      prometheus.Histogram
	lockWaitDuration       prometheus.Histogram
}

var (
	defaultMetrics *Metrics
	initOnce       sync.Once
)

// 预订尝试结果
const (
	ResultCreated  = "created"
	ResultConflict = "conflict"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Init 初始化指标收集器，注册到默认 Registry
func Init(namespace string) *Metrics {
	initOnce.Do(func() {
		defaultMetrics = New(namespace, prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New 创建指标收集器并注册到指定 Registry
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "camp_station"
	}
	factory := promauto.With(reg)

	return &Metrics{
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		httpRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		cacheHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of cache hits",
			},
			[]string{"cache"},
		),
		cacheMissesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of cache misses",
			},
			[]string{"cache"},
		),
		reservationAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reservation_attempts_total",
				Help:      "Reservation attempts by result",
			},
			[]string{"result"},
		),
		reservationTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reservation_transitions_total",
				Help:      "Reservation status transitions",
			},
			[]string{"from", "to", "trigger"},
		),
		sweepRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_runs_total",
				Help:      "Lifecycle sweep runs by outcome",
			},
			[]string{"task", "outcome"},
		),
		sweepItemsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_items_total",
				Help:      "Reservations visited by lifecycle sweeps",
			},
			[]string{"task", "result"},
		),
		priceCalcDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "price_calculation_duration_seconds",
				Help:      "Price calculation duration in seconds",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25},
			},
		),
		lockWaitDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "site_lock_wait_seconds",
				Help:      "Time spent waiting for the per-site reservation lock",
				Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
		),
	}
}

// Middleware 返回 Gin 中间件
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 跳过 metrics 端点本身
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		m.httpRequestsInFlight.Inc()

		c.Next()

		m.httpRequestsInFlight.Dec()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}

		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler 返回 Prometheus HTTP 处理器
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// 以下记录方法在 m 为 nil 时不做任何事

// RecordCacheHit 记录缓存命中
func (m *Metrics) RecordCacheHit(cache string) {
	if m == nil {
		return
	}
	m.cacheHitsTotal.WithLabelValues(cache).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (m *Metrics) RecordCacheMiss(cache string) {
	if m == nil {
		return
	}
	m.cacheMissesTotal.WithLabelValues(cache).Inc()
}

// RecordReservationAttempt 记录预订尝试
func (m *Metrics) RecordReservationAttempt(result string) {
	if m == nil {
		return
	}
	m.reservationAttempts.WithLabelValues(result).Inc()
}

// RecordTransition 记录状态迁移
func (m *Metrics) RecordTransition(from, to, trigger string) {
	if m == nil {
		return
	}
	m.reservationTransitions.WithLabelValues(from, to, trigger).Inc()
}

// RecordSweep 记录一次扫描任务
func (m *Metrics) RecordSweep(task string, transitioned, skipped, failed int) {
	if m == nil {
		return
	}
	outcome := "ok"
	if failed > 0 {
		outcome = "partial"
	}
	m.sweepRunsTotal.WithLabelValues(task, outcome).Inc()
	m.sweepItemsTotal.WithLabelValues(task, "transitioned").Add(float64(transitioned))
	m.sweepItemsTotal.WithLabelValues(task, "skipped").Add(float64(skipped))
	m.sweepItemsTotal.WithLabelValues(task, "failed").Add(float64(failed))
}

// RecordSweepError 记录扫描任务整体失败
func (m *Metrics) RecordSweepError(task string) {
	if m == nil {
		return
	}
	m.sweepRunsTotal.WithLabelValues(task, "error").Inc()
}

// ObservePriceCalculation 记录计价耗时
func (m *Metrics) ObservePriceCalculation(d time.Duration) {
	if m == nil {
		return
	}
	m.priceCalcDuration.Observe(d.Seconds())
}

// ObserveLockWait 记录等待营位锁的耗时
func (m *Metrics) ObserveLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.lockWaitDuration.Observe(d.Seconds())
}
