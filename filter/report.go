package filter

import (
	"context"

	"github.com/imattdu/tracefilter/logx"
	"github.com/imattdu/tracefilter/tracex"
)

// LogReporter 每个结束的 span 打一条 span_finish 日志；出错的 span 用 warn
func LogReporter(l logx.Logger) tracex.Reporter {
	return tracex.ReporterFunc(func(ctx context.Context, span *tracex.Span) {
		if l == nil || span == nil {
			return
		}
		kv := []any{
			logx.SpanName, span.Name,
			logx.Cost, span.Duration().Milliseconds(),
			logx.Annotations, span.Annotations,
			logx.Sampled, span.Sampled,
		}
		if span.Err != nil {
			l.Warn(ctx, logx.TagSpanFinish, span.Err, kv...)
			return
		}
		l.Info(ctx, logx.TagSpanFinish, "span finished", kv...)
	})
}
