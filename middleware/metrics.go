package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go-slim.dev/gotham"
)

// MetricsConfig defines the config for Metrics middleware.
type MetricsConfig struct {
	Skipper   Skipper
	Namespace string
	Subsystem string
	// Registerer 注册指标，默认为 prometheus.DefaultRegisterer
	Registerer prometheus.Registerer
	// Gatherer 用于 Handler，默认为 prometheus.DefaultGatherer
	Gatherer prometheus.Gatherer
	// Buckets 请求耗时直方图的桶，默认为 prometheus.DefBuckets
	Buckets []float64
}

// Metrics 记录每个路由的请求数、耗时和正在处理的请求数。
// 指标使用路由模板而不是请求路径作为标签。
type Metrics struct {
	skipper  Skipper
	gatherer prometheus.Gatherer
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inflight prometheus.Gauge
}

var _ gotham.NewMiddleware = (*Metrics)(nil)

// NewMetrics 创建并注册指标
func NewMetrics(config MetricsConfig) (*Metrics, error) {
	if config.Skipper == nil {
		config.Skipper = DefaultSkipper
	}
	if config.Registerer == nil {
		config.Registerer = prometheus.DefaultRegisterer
	}
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}
	if len(config.Buckets) == 0 {
		config.Buckets = prometheus.DefBuckets
	}
	labels := []string{"method", "route", "status"}
	m := &Metrics{
		skipper:  config.Skipper,
		gatherer: config.Gatherer,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "requests_total",
			Help:      "Number of routed HTTP requests.",
		}, labels),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "request_duration_seconds",
			Help:      "Time spent in the pipelines and handler of a route.",
			Buckets:   config.Buckets,
		}, labels),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "requests_in_flight",
			Help:      "Number of requests being dispatched.",
		}),
	}
	for _, c := range []prometheus.Collector{m.requests, m.duration, m.inflight} {
		if err := config.Registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NewMiddleware 实现 gotham.NewMiddleware，可以直接加入 Pipeline
func (m *Metrics) NewMiddleware() (gotham.MiddlewareFunc, error) {
	return m.Middleware(), nil
}

// Middleware 返回记录指标的中间件
func (m *Metrics) Middleware() gotham.MiddlewareFunc {
	return func(c gotham.Context, next gotham.HandlerFunc) error {
		if m.skipper(c) {
			return next(c)
		}
		m.inflight.Inc()
		defer m.inflight.Dec()

		start := time.Now()
		err := next(c)
		elapsed := time.Since(start)

		status := c.Response().Status()
		if err != nil && !c.Response().Written() {
			status = gotham.StatusCode(err)
		} else if status == 0 {
			status = http.StatusOK
		}
		route := "unknown"
		if info := c.RouteInfo(); info != nil {
			route = info.Pattern()
		}
		values := []string{c.Request().Method, route, strconv.Itoa(status)}
		m.requests.WithLabelValues(values...).Inc()
		m.duration.WithLabelValues(values...).Observe(elapsed.Seconds())
		return err
	}
}

// Handler 返回输出指标的处理函数
func (m *Metrics) Handler() gotham.HandlerFunc {
	return gotham.WrapHandler(promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
}
