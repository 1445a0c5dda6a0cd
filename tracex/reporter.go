package tracex

import (
	"context"
	"sync/atomic"
)

// Reporter 接收已结束的 span（打日志、指标、导出到 trace 系统）。
// Report 在请求的 goroutine 内同步调用，实现方不要阻塞；span 在此之后只读
type Reporter interface {
	Report(ctx context.Context, span *Span)
}

// ReporterFunc 函数适配
type ReporterFunc func(ctx context.Context, span *Span)

func (f ReporterFunc) Report(ctx context.Context, span *Span) {
	f(ctx, span)
}

// Noop 丢弃所有 span
var Noop Reporter = ReporterFunc(func(context.Context, *Span) {})

type multiReporter []Reporter

func (m multiReporter) Report(ctx context.Context, span *Span) {
	for _, r := range m {
		r.Report(ctx, span)
	}
}

// MultiReporter 按顺序扇出，忽略 nil
func MultiReporter(rs ...Reporter) Reporter {
	out := make(multiReporter, 0, len(rs))
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	switch len(out) {
	case 0:
		return Noop
	case 1:
		return out[0]
	}
	return out
}

type reporterHolder struct{ r Reporter }

var globalReporter atomic.Pointer[reporterHolder]

// SetGlobalReporter 设置全局 span 上报，建议在 main 里调用一次；nil 恢复为 Noop
func SetGlobalReporter(r Reporter) {
	if r == nil {
		r = Noop
	}
	globalReporter.Store(&reporterHolder{r: r})
}

func GlobalReporter() Reporter {
	if h := globalReporter.Load(); h != nil {
		return h.r
	}
	return Noop
}
