package otelx

import (
	"context"
	"strings"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/imattdu/tracefilter/tracex"
)

type idsKey struct{}

type ids struct {
	traceID trace.TraceID
	spanID  trace.SpanID
}

func withIDs(ctx context.Context, traceID trace.TraceID, spanID trace.SpanID) context.Context {
	return context.WithValue(ctx, idsKey{}, ids{traceID: traceID, spanID: spanID})
}

type idGenerator struct{}

// NewIDGenerator 优先使用 ctx 里指定的 id（重放 tracex span 时），否则随机生成
func NewIDGenerator() sdktrace.IDGenerator {
	return idGenerator{}
}

func (idGenerator) NewIDs(ctx context.Context) (trace.TraceID, trace.SpanID) {
	if v, ok := ctx.Value(idsKey{}).(ids); ok {
		return v.traceID, v.spanID
	}
	tid, _ := toTraceID(tracex.NewTraceID())
	sid, _ := toSpanID(tracex.NewSpanID())
	return tid, sid
}

func (idGenerator) NewSpanID(ctx context.Context, traceID trace.TraceID) trace.SpanID {
	if v, ok := ctx.Value(idsKey{}).(ids); ok && v.traceID == traceID {
		return v.spanID
	}
	sid, _ := toSpanID(tracex.NewSpanID())
	return sid
}

// toTraceID 64 bit trace id 左侧补 0
func toTraceID(s string) (trace.TraceID, error) {
	if len(s) == 16 {
		s = strings.Repeat("0", 16) + s
	}
	return trace.TraceIDFromHex(strings.ToLower(s))
}

func toSpanID(s string) (trace.SpanID, error) {
	return trace.SpanIDFromHex(strings.ToLower(s))
}
