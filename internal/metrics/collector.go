package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smartpc/smartpc/pkg/errors"
)

// Collector records request, managed-service and orchestration metrics.
type Collector struct {
	config   *Config
	registry *prometheus.Registry

	// Prometheus metrics
	requestCounter    *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	operationSize     *prometheus.HistogramVec
	errorCounter      *prometheus.CounterVec
	retryCounter      *prometheus.CounterVec
	rollbackCounter   *prometheus.CounterVec
}

// Config represents metrics configuration
type Config struct {
	Enabled   bool              `yaml:"enabled"`
	Path      string            `yaml:"path"`
	Labels    map[string]string `yaml:"labels"`
	Namespace string            `yaml:"namespace"`
	Subsystem string            `yaml:"subsystem"`
}

// NewCollector creates a new metrics collector
func NewCollector(config *Config) (*Collector, error) {
	if config == nil {
		config = &Config{
			Enabled:   true,
			Path:      "/metrics",
			Namespace: "smartpc",
			Labels:    make(map[string]string),
		}
	}

	if !config.Enabled {
		return &Collector{config: config}, nil
	}

	collector := &Collector{
		config:   config,
		registry: prometheus.NewRegistry(),
	}

	collector.initMetrics()
	if err := collector.registerMetrics(); err != nil {
		return nil, err
	}

	return collector, nil
}

// Enabled reports whether metrics are being recorded.
func (c *Collector) Enabled() bool {
	return c != nil && c.config.Enabled
}

// Handler exposes the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if !c.Enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// RecordRequest records one HTTP request by route and status.
func (c *Collector) RecordRequest(route string, status int, duration time.Duration) {
	if !c.Enabled() {
		return
	}
	c.requestCounter.With(prometheus.Labels{
		"route":  route,
		"status": strconv.Itoa(status),
	}).Inc()
	c.requestDuration.With(prometheus.Labels{"route": route}).Observe(duration.Seconds())
}

// RecordOperation records a managed-service call with its metrics
func (c *Collector) RecordOperation(operation string, duration time.Duration, size int64, success bool) {
	if !c.Enabled() {
		return
	}

	status := "success"
	if !success {
		status = "error"
	}
	c.operationCounter.With(prometheus.Labels{
		"operation": operation,
		"status":    status,
	}).Inc()
	c.operationDuration.With(prometheus.Labels{
		"operation": operation,
	}).Observe(duration.Seconds())

	if size > 0 {
		c.operationSize.With(prometheus.Labels{
			"operation": operation,
		}).Observe(float64(size))
	}
}

// RecordError counts an error by operation and error code.
func (c *Collector) RecordError(operation string, err error) {
	if !c.Enabled() || err == nil {
		return
	}
	c.errorCounter.With(prometheus.Labels{
		"operation": operation,
		"code":      classifyError(err),
	}).Inc()
}

// RecordRetry counts one retry against a dependency.
func (c *Collector) RecordRetry(dependency string) {
	if !c.Enabled() {
		return
	}
	c.retryCounter.With(prometheus.Labels{"dependency": dependency}).Inc()
}

// RecordRollbackStep counts one compensating step of a failed provisioning.
func (c *Collector) RecordRollbackStep(step string, success bool) {
	if !c.Enabled() {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	c.rollbackCounter.With(prometheus.Labels{"step": step, "status": status}).Inc()
}

func (c *Collector) initMetrics() {
	constLabels := prometheus.Labels(c.config.Labels)

	c.requestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests",
			ConstLabels: constLabels,
		},
		[]string{"route", "status"},
	)

	c.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "http_request_duration_seconds",
			Help:        "Duration of HTTP requests in seconds",
			Buckets:     prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
			ConstLabels: constLabels,
		},
		[]string{"route"},
	)

	c.operationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "operations_total",
			Help:        "Total number of managed-service calls",
			ConstLabels: constLabels,
		},
		[]string{"operation", "status"},
	)

	c.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "operation_duration_seconds",
			Help:        "Duration of managed-service calls in seconds",
			Buckets:     prometheus.ExponentialBuckets(0.001, 2, 15),
			ConstLabels: constLabels,
		},
		[]string{"operation"},
	)

	c.operationSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "operation_size_bytes",
			Help:        "Payload size of managed-service calls in bytes",
			Buckets:     prometheus.ExponentialBuckets(1024, 2, 20), // 1KB to ~1GB
			ConstLabels: constLabels,
		},
		[]string{"operation"},
	)

	c.errorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "errors_total",
			Help:        "Total number of errors by code",
			ConstLabels: constLabels,
		},
		[]string{"operation", "code"},
	)

	c.retryCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "retries_total",
			Help:        "Total number of retried managed-service calls",
			ConstLabels: constLabels,
		},
		[]string{"dependency"},
	)

	c.rollbackCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "rollback_steps_total",
			Help:        "Compensating steps run after a failed instance launch",
			ConstLabels: constLabels,
		},
		[]string{"step", "status"},
	)
}

func (c *Collector) registerMetrics() error {
	metrics := []prometheus.Collector{
		c.requestCounter,
		c.requestDuration,
		c.operationCounter,
		c.operationDuration,
		c.operationSize,
		c.errorCounter,
		c.retryCounter,
		c.rollbackCounter,
	}

	for _, metric := range metrics {
		if err := c.registry.Register(metric); err != nil {
			return err
		}
	}

	return nil
}

func classifyError(err error) string {
	if e, ok := errors.As(err); ok {
		return string(e.Code)
	}
	return "UNCLASSIFIED"
}
