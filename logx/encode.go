package logx

import (
	"context"
	"log/slog"

	"github.com/imattdu/tracefilter/cctx"
	"github.com/imattdu/tracefilter/errorx"
	"github.com/imattdu/tracefilter/tracex"
)

var traceKeys = [...]string{cctx.KeyTraceID, cctx.KeySpanID, cctx.KeyParentSpanID}

// encodeLog 把 ctx / tag / msg / kv 整合成一组 slog.Attr
func encodeLog(ctx context.Context, depth int, tag string, msg any, kv ...any) []slog.Attr {
	attrs := make([]slog.Attr, 0, 16)

	if tag != "" {
		attrs = append(attrs, slog.String("tag", tag))
	}

	c := getCaller(depth + 1)
	attrs = append(attrs,
		slog.String("file", c.file),
		slog.Int("line", c.line),
		slog.String("func", c.funcName),
	)

	attrs = appendTrace(ctx, attrs)

	switch v := msg.(type) {
	case *errorx.Error:
		attrs = append(attrs,
			slog.Int("code", v.Code.Code),
			slog.String("code_msg", v.Code.Message),
			slog.String("err_type", v.Type.Message),
			slog.String("service", v.Service.Message),
		)
		for k, vv := range v.Fields {
			attrs = append(attrs, slog.Any(k, vv))
		}
		attrs = append(attrs, slog.String("msg", v.Text()))
		if v.Cause != nil {
			attrs = append(attrs, slog.String("error", v.Cause.Error()))
		}
	case error:
		attrs = append(attrs, slog.String("error", v.Error()))
	default:
		attrs = append(attrs, slog.Any("msg", v))
	}

	// cctx bag 中的通用字段（比如 env / caller_sys 等）
	for k, v := range cctx.All(ctx) {
		attrs = append(attrs, slog.Any(k, v))
	}

	// 额外 kv（必须是偶数个）
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, slog.Any(k, kv[i+1]))
	}

	return attrs
}

// appendTrace 优先读请求级 Store（filter 写入、请求结束清理），没有 Store 时退回 ctx 中的 span
func appendTrace(ctx context.Context, attrs []slog.Attr) []slog.Attr {
	if s := cctx.StoreFrom(ctx); s != nil {
		for _, k := range traceKeys {
			if v, ok := s.Get(k); ok {
				attrs = append(attrs, slog.String(k, v))
			}
		}
		return attrs
	}
	if span := tracex.SpanFromContext(ctx); span != nil {
		attrs = append(attrs,
			slog.String(cctx.KeyTraceID, span.TraceID),
			slog.String(cctx.KeySpanID, span.SpanID),
		)
		if span.Parent != "" {
			attrs = append(attrs, slog.String(cctx.KeyParentSpanID, span.Parent))
		}
	}
	return attrs
}
