// Package observability span 维度的 Prometheus 指标，作为 tracex.Reporter 挂到 filter 上
package observability

import (
	"context"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/imattdu/tracefilter/tracex"
)

// 与 filter 中的 annotation key 保持一致
const (
	annotationStatusCode = "http.status_code"
	annotationStatus     = "http.status"
)

// Metrics 请求数 + 耗时分布，按 span 名 / kind / 状态码
type Metrics struct {
	spans    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics 注册到 reg；reg 为 nil 时只创建不注册
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		spans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trace_spans_total",
			Help: "Finished spans by name, kind, status and error",
		}, []string{"name", "kind", "status", "error"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trace_span_duration_seconds",
			Help:    "Span latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"name", "kind", "status"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.spans, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Report 实现 tracex.Reporter
func (m *Metrics) Report(_ context.Context, span *tracex.Span) {
	if m == nil || span == nil {
		return
	}
	status := statusLabel(span)
	kind := span.Kind.String()
	m.spans.WithLabelValues(span.Name, kind, status, strconv.FormatBool(span.Err != nil)).Inc()
	m.duration.WithLabelValues(span.Name, kind, status).Observe(span.Duration().Seconds())
}

// statusLabel 优先使用老服务的 status 响应头
func statusLabel(span *tracex.Span) string {
	if v, ok := span.Annotation(annotationStatus); ok {
		return v
	}
	if v, ok := span.Annotation(annotationStatusCode); ok {
		return v
	}
	return "unknown"
}

// -------------------- 默认 registry --------------------

var (
	registerOnce   sync.Once
	defaultMetrics *Metrics
)

// Init 注册到 prometheus 默认 registry，可重复调用
func Init() {
	registerOnce.Do(func() {
		m, err := NewMetrics(prometheus.DefaultRegisterer)
		if err != nil {
			panic(err)
		}
		defaultMetrics = m
	})
}

// Reporter 默认 registry 上的 Metrics，未 Init 时丢弃
func Reporter() tracex.Reporter {
	if defaultMetrics == nil {
		return tracex.Noop
	}
	return defaultMetrics
}
