package otelx

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/imattdu/tracefilter/logx"
	"github.com/imattdu/tracefilter/tracex"
)

const scopeName = "github.com/imattdu/tracefilter/otelx"

// 与 filter 中的 annotation key 保持一致
const (
	annotationStatusCode = "http.status_code"
	annotationStatus     = "http.status"
)

type reporter struct {
	tracer trace.Tracer
}

// NewReporter 把结束的 span 重放到 tp；tp 需要配置 NewIDGenerator 才能保留原始 id
func NewReporter(tp trace.TracerProvider) tracex.Reporter {
	return &reporter{tracer: tp.Tracer(scopeName)}
}

func (r *reporter) Report(ctx context.Context, span *tracex.Span) {
	if span == nil {
		return
	}
	tid, err := toTraceID(span.TraceID)
	if err != nil {
		logx.Warn(ctx, logx.TagUndef, "otelx: bad trace id", "trace_id", span.TraceID)
		return
	}
	sid, err := toSpanID(span.SpanID)
	if err != nil {
		logx.Warn(ctx, logx.TagUndef, "otelx: bad span id", "span_id", span.SpanID)
		return
	}

	// 不挂到 ctx 里已有的 otel span 下
	ctx = trace.ContextWithSpanContext(ctx, trace.SpanContext{})
	opts := []trace.SpanStartOption{
		trace.WithTimestamp(span.Start),
		trace.WithSpanKind(spanKind(span.Kind)),
		trace.WithAttributes(attributes(span)...),
	}
	if pid, err := toSpanID(span.Parent); span.Parent != "" && err == nil {
		ctx = trace.ContextWithRemoteSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    tid,
			SpanID:     pid,
			TraceFlags: trace.FlagsSampled,
			Remote:     true,
		}))
	} else {
		opts = append(opts, trace.WithNewRoot())
	}

	_, s := r.tracer.Start(withIDs(ctx, tid, sid), span.Name, opts...)
	if code, msg, failed := status(span); failed {
		if span.Err != nil {
			s.RecordError(span.Err, trace.WithTimestamp(span.End))
		}
		s.SetStatus(code, msg)
	}
	s.End(trace.WithTimestamp(span.End))
}

func spanKind(k tracex.Kind) trace.SpanKind {
	if k == tracex.KindClient {
		return trace.SpanKindClient
	}
	return trace.SpanKindServer
}

func attributes(span *tracex.Span) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(span.Annotations))
	for _, a := range span.Annotations {
		attrs = append(attrs, attribute.String(a.Key, a.Value))
	}
	return attrs
}

// status 出错或 5xx 标记为 Error
func status(span *tracex.Span) (codes.Code, string, bool) {
	if span.Err != nil {
		return codes.Error, span.Err.Error(), true
	}
	for _, key := range []string{annotationStatus, annotationStatusCode} {
		v, ok := span.Annotation(key)
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(v); err == nil && n >= 500 {
			return codes.Error, "status " + v, true
		}
	}
	return codes.Unset, "", false
}
