package tracex

import (
	"context"
	"net/http"
	"strings"
)

// B3 透传头（zipkin）
const (
	HeaderB3TraceID      = "X-B3-TraceId"
	HeaderB3SpanID       = "X-B3-SpanId"
	HeaderB3ParentSpanID = "X-B3-ParentSpanId"
	HeaderB3Sampled      = "X-B3-Sampled"
	HeaderB3Flags        = "X-B3-Flags"
	HeaderB3Single       = "b3"
)

// 老版本内部透传头，仍然识别
const (
	HeaderTraceID      = "X-Trace-Id"
	HeaderSpanID       = "X-Span-Id"
	HeaderParentSpanID = "X-Parent-Span-Id"
)

// SpanContext 上游透传过来的 trace 信息。
// 只带采样决定时 TraceID/SpanID 为空，见 HasIDs
type SpanContext struct {
	TraceID string
	SpanID  string
	Parent  string
	Sampled bool
	Debug   bool
}

// HasIDs 是否带有可以加入的 trace
func (sc *SpanContext) HasIDs() bool {
	return sc != nil && sc.TraceID != "" && sc.SpanID != ""
}

// -------------------- HTTP 头注入 / 提取 --------------------

// InjectToHeader 把当前 span 的 trace 信息以 B3 格式注入 HTTP 头
func InjectToHeader(ctx context.Context, h http.Header) {
	if h == nil {
		return
	}
	span := SpanFromContext(ctx)
	if span == nil || span.TraceID == "" || span.SpanID == "" {
		return
	}
	h.Set(HeaderB3TraceID, span.TraceID)
	h.Set(HeaderB3SpanID, span.SpanID)
	if span.Parent != "" {
		h.Set(HeaderB3ParentSpanID, span.Parent)
	} else {
		h.Del(HeaderB3ParentSpanID)
	}
	if span.Sampled {
		h.Set(HeaderB3Sampled, "1")
	} else {
		h.Set(HeaderB3Sampled, "0")
	}
}

// Extract 按 B3 多头 -> B3 单头 -> 老版本头 的顺序解析上游 trace 信息。
// 都缺失或不合法时：有采样决定返回不带 id 的 SpanContext，否则返回 nil；
// 两种情况调用方都开启新的 root trace
func Extract(h http.Header) *SpanContext {
	if h == nil {
		return nil
	}
	if sc := extractB3(h); sc != nil {
		return sc
	}
	if sc := extractB3Single(h.Get(HeaderB3Single)); sc != nil {
		return sc
	}
	if sc := build(h.Get(HeaderTraceID), h.Get(HeaderSpanID), h.Get(HeaderParentSpanID), true, false); sc != nil {
		return sc
	}
	return extractSampling(h)
}

// extractSampling 只取采样决定：X-B3-Flags / X-B3-Sampled，或只有采样位的 b3 单头
func extractSampling(h http.Header) *SpanContext {
	if strings.TrimSpace(h.Get(HeaderB3Flags)) == "1" {
		return &SpanContext{Sampled: true, Debug: true}
	}
	switch strings.ToLower(strings.TrimSpace(h.Get(HeaderB3Sampled))) {
	case "0", "false":
		return &SpanContext{}
	case "1", "true":
		return &SpanContext{Sampled: true}
	}
	switch strings.TrimSpace(h.Get(HeaderB3Single)) {
	case "0":
		return &SpanContext{}
	case "1":
		return &SpanContext{Sampled: true}
	case "d":
		return &SpanContext{Sampled: true, Debug: true}
	}
	return nil
}

func extractB3(h http.Header) *SpanContext {
	sampled, debug := true, false
	switch strings.ToLower(strings.TrimSpace(h.Get(HeaderB3Sampled))) {
	case "0", "false":
		sampled = false
	}
	if strings.TrimSpace(h.Get(HeaderB3Flags)) == "1" {
		debug, sampled = true, true
	}
	return build(h.Get(HeaderB3TraceID), h.Get(HeaderB3SpanID), h.Get(HeaderB3ParentSpanID), sampled, debug)
}

// b3: {traceId}-{spanId}[-{sampled}[-{parentSpanId}]]
// 只有采样位（如 "0"）时这里返回 nil，由 extractSampling 处理
func extractB3Single(v string) *SpanContext {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, "-")
	if len(parts) < 2 || len(parts) > 4 {
		return nil
	}
	sampled, debug, parent := true, false, ""
	if len(parts) >= 3 {
		switch parts[2] {
		case "0":
			sampled = false
		case "1":
		case "d":
			debug = true
		default:
			return nil
		}
	}
	if len(parts) == 4 {
		parent = parts[3]
	}
	return build(parts[0], parts[1], parent, sampled, debug)
}

func build(traceID, spanID, parent string, sampled, debug bool) *SpanContext {
	traceID, spanID, parent = normalizeID(traceID), normalizeID(spanID), normalizeID(parent)
	if !ValidTraceID(traceID) || !ValidSpanID(spanID) {
		return nil
	}
	if parent != "" && !ValidSpanID(parent) {
		parent = ""
	}
	return &SpanContext{
		TraceID: traceID,
		SpanID:  spanID,
		Parent:  parent,
		Sampled: sampled || debug,
		Debug:   debug,
	}
}
