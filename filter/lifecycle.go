package filter

import (
	"context"
	"fmt"
	"reflect"

	"github.com/imattdu/tracefilter/cctx"
	"github.com/imattdu/tracefilter/errorx"
	"github.com/imattdu/tracefilter/logx"
	"github.com/imattdu/tracefilter/tracex"
)

type State int

const (
	StateNotStarted State = iota
	StateActive
	StateErrored
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateErrored:
		return "errored"
	case StateFinished:
		return "finished"
	default:
		return "not_started"
	}
}

// Lifecycle 单次请求的 span：Begin -> [OnError] -> End，只在处理请求的 goroutine 上使用
type Lifecycle struct {
	ctx      context.Context
	span     *tracex.Span
	store    *cctx.Store
	state    State
	reporter tracex.Reporter
	logger   logx.Logger
}

// Begin 开始 server span，写入 store，并按顺序记录 method、ca、自定义请求头
func (f *Filter) Begin(ctx context.Context, req StartRequest) (context.Context, *Lifecycle) {
	ctx, store := cctx.WithStore(ctx)
	ctx, span := tracex.StartServerSpan(ctx, req.Remote, req.Name)

	store.Put(cctx.KeyTraceID, span.TraceID)
	store.Put(cctx.KeySpanID, span.SpanID)
	if span.Parent != "" {
		store.Put(cctx.KeyParentSpanID, span.Parent)
	}

	span.Annotate(AnnotationMethod, req.Method)
	if req.ClientAddr != "" {
		span.Annotate(AnnotationClientAddr, req.ClientAddr)
	}
	for _, a := range req.Headers {
		span.Annotate(a.Key, a.Value)
	}

	if f.logger != nil {
		f.logger.Debug(ctx, logx.TagSpanStart, "span start",
			logx.SpanName, span.Name, logx.Method, req.Method, logx.Sampled, span.Sampled)
	}

	return ctx, &Lifecycle{
		ctx:      ctx,
		span:     span,
		store:    store,
		state:    StateActive,
		reporter: f.reporter,
		logger:   f.logger,
	}
}

func (l *Lifecycle) State() State {
	if l == nil {
		return StateNotStarted
	}
	return l.state
}

func (l *Lifecycle) Span() *tracex.Span {
	if l == nil {
		return nil
	}
	return l.span
}

// Annotate span 结束后忽略
func (l *Lifecycle) Annotate(key, value string) {
	if l.State() != StateActive && l.State() != StateErrored {
		return
	}
	l.span.Annotate(key, value)
}

// OnError 记录 error annotation：error 的 message，为空时用类型名。只记第一次
func (l *Lifecycle) OnError(err error) {
	if err == nil || l.State() != StateActive {
		return
	}
	l.span.Annotate(AnnotationError, errorMessage(err))
	l.span.Err = err
	l.state = StateErrored
}

// End 记录响应状态、上报 span、清理 store；Reporter panic 不会传出，重复调用无副作用
func (l *Lifecycle) End(c *Capture) {
	if l.State() != StateActive && l.State() != StateErrored {
		return
	}
	l.state = StateFinished
	// 上报出错（包括 panic）也要清理
	defer l.store.Remove(cctx.KeyTraceID, cctx.KeySpanID, cctx.KeyParentSpanID)

	for _, a := range c.ResponseAnnotations() {
		l.span.Annotate(a.Key, a.Value)
	}
	l.report()
}

// report Reporter panic 只记 ErrExport 日志，不向外抛
func (l *Lifecycle) report() {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		cause, ok := rec.(error)
		if !ok {
			cause = fmt.Errorf("%v", rec)
		}
		logger := l.logger
		if logger == nil {
			logger = logx.L()
		}
		if logger == nil {
			return
		}
		logger.Error(l.ctx, logx.TagSpanFinish,
			errorx.New(errorx.ErrExport, errorx.WithService(errorx.ServiceTrace), errorx.WithCause(cause)),
			logx.SpanName, l.span.Name)
	}()
	tracex.Finish(l.ctx, l.span, l.span.Err, l.reporter)
}

// -------------------- error 描述 --------------------

// panicError 把 recover 的值包装成 error
type panicError struct {
	value any
}

func (p *panicError) Error() string {
	switch v := p.value.(type) {
	case error:
		return v.Error()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func (p *panicError) Unwrap() error {
	err, _ := p.value.(error)
	return err
}

func errorMessage(err error) string {
	var v any = err
	if p, ok := err.(*panicError); ok {
		v = p.value
	}

	var msg string
	switch e := v.(type) {
	case *errorx.Error:
		msg = e.Text()
	case error:
		msg = e.Error()
	default:
		msg = fmt.Sprint(e)
	}
	if msg != "" {
		return msg
	}
	return typeName(v)
}

// typeName 去掉指针后的类型名
func typeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "nil"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}
