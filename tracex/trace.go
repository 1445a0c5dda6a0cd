package tracex

import (
	"context"
	"time"
)

// Duration 返回 span 耗时
func (s *Span) Duration() time.Duration {
	if s == nil || s.Start.IsZero() || s.End.IsZero() {
		return 0
	}
	return s.End.Sub(s.Start)
}

// -------------------- Span 生命周期 --------------------

// StartSpan 在当前 ctx 上创建一个新的 span：
//   - 如果 ctx 中已有 span，则沿用 TraceID/采样标记，并把当前 span 作为 parent
//   - 否则生成新的 TraceID，当前 span 为 root span
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)

	span := &Span{
		SpanID:  NewSpanID(),
		Name:    name,
		Kind:    KindClient,
		Sampled: true,
		Start:   time.Now(),
	}
	if parent != nil && parent.TraceID != "" {
		span.TraceID = parent.TraceID
		span.Parent = parent.SpanID
		span.Sampled = parent.Sampled
	} else {
		span.TraceID = NewTraceID()
	}

	return WithSpan(ctx, span), span
}

// StartServerSpan 创建服务端 span：
//   - remote 带 id 时与上游共用 span（同 TraceID/SpanID，parent 取上游透传的 parent），即 zipkin v1 的共享 span 模型
//   - 否则开启新的 root trace；remote 只带采样决定时沿用该决定
func StartServerSpan(ctx context.Context, remote *SpanContext, name string) (context.Context, *Span) {
	span := &Span{
		Name:    name,
		Kind:    KindServer,
		Sampled: true,
		Start:   time.Now(),
	}
	if remote.HasIDs() {
		span.TraceID = remote.TraceID
		span.SpanID = remote.SpanID
		span.Parent = remote.Parent
		span.Sampled = remote.Sampled
		return WithSpan(ctx, span), span
	}

	span.TraceID = NewTraceID()
	span.SpanID = NewSpanID()
	if remote != nil {
		span.Sampled = remote.Sampled
	}
	return WithSpan(ctx, span), span
}

// Finish 结束指定 span；r 为 nil 时使用全局 Reporter。
// 只上报采样的 span，重复调用无副作用
func Finish(ctx context.Context, span *Span, err error, r Reporter) {
	if span == nil || span.Finished() {
		return
	}
	if err != nil {
		span.Err = err
	}
	span.End = time.Now()
	if !span.Sampled {
		return
	}
	if r == nil {
		r = GlobalReporter()
	}
	r.Report(ctx, span)
}
