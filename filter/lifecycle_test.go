package filter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imattdu/tracefilter/cctx"
	"github.com/imattdu/tracefilter/errorx"
	"github.com/imattdu/tracefilter/logx"
	"github.com/imattdu/tracefilter/tracex"
)

func TestLifecycleStates(t *testing.T) {
	f, rec := newFilter(t)

	var nilLc *Lifecycle
	assert.Equal(t, StateNotStarted, nilLc.State())

	ctx, lc := f.Begin(context.Background(), StartRequest{Name: "/x", Method: "GET"})
	assert.Equal(t, StateActive, lc.State())
	assert.NotNil(t, tracex.SpanFromContext(ctx))

	lc.Annotate("k", "v")
	lc.OnError(errors.New("first"))
	lc.OnError(errors.New("second"))
	assert.Equal(t, StateErrored, lc.State())

	_, c := WrapResponse(httptest.NewRecorder())
	lc.End(c)
	lc.End(c)
	lc.Annotate("late", "x")
	assert.Equal(t, StateFinished, lc.State())

	span := rec.only(t)
	assert.Equal(t, "first", annotation(t, span, AnnotationError))
	assert.Equal(t, "v", annotation(t, span, "k"))
	_, ok := span.Annotation("late")
	assert.False(t, ok)
	assert.Equal(t, "active", StateActive.String())
}

func panicReporter() tracex.Reporter {
	return tracex.ReporterFunc(func(context.Context, *tracex.Span) {
		panic("exporter down")
	})
}

func TestLifecycleStoreCleanedWhenReporterPanics(t *testing.T) {
	buf := &bytes.Buffer{}
	l, err := logx.New(logx.Config{Level: slog.LevelDebug, Output: buf, Sync: true})
	require.NoError(t, err)

	f := MustNew(WithReporter(panicReporter()), WithLogger(l))
	ctx, lc := f.Begin(context.Background(), StartRequest{
		Name:   "/x",
		Remote: &tracex.SpanContext{TraceID: "463ac35c9f6413ad", SpanID: "a2fb4a1d1a96d312", Parent: "0020000000000001", Sampled: true},
	})
	store := cctx.StoreFrom(ctx)
	assert.Equal(t, 3, store.Len())

	assert.NotPanics(t, func() { lc.End(nil) })
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, StateFinished, lc.State())

	out := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(out[len(out)-1]), &line))
	assert.Equal(t, "ERROR", line["level"])
	assert.Equal(t, logx.TagSpanFinish, line["tag"])
	assert.Equal(t, errorx.ErrExport.Message, line["code_msg"])
	assert.Equal(t, "exporter down", line["error"])
	// 日志在 store 清理之前打
	assert.Equal(t, "463ac35c9f6413ad", line["trace_id"])
}

func TestServeKeepsDownstreamFailureWhenReporterPanics(t *testing.T) {
	f := MustNew(WithReporter(panicReporter()))

	diskFull := errors.New("disk full")
	err := f.Serve(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil),
		func(http.ResponseWriter, *http.Request) error { return diskFull })
	assert.Same(t, diskFull, err)

	assert.PanicsWithValue(t, "downstream boom", func() {
		_ = f.Serve(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil),
			func(http.ResponseWriter, *http.Request) error { panic("downstream boom") })
	})

	assert.NoError(t, f.Serve(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil),
		func(http.ResponseWriter, *http.Request) error { return nil }))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "x", errorMessage(&panicError{value: errors.New("x")}))
	assert.Equal(t, "42", errorMessage(&panicError{value: 42}))
	assert.Equal(t, "string", errorMessage(&panicError{value: ""}))
	assert.Equal(t, "emptyErr", errorMessage(&emptyErr{}))
}

func TestLogReporter(t *testing.T) {
	buf := &bytes.Buffer{}
	l, err := logx.New(logx.Config{Level: slog.LevelDebug, Output: buf, Sync: true})
	require.NoError(t, err)

	f := MustNew(WithReporter(LogReporter(l)), WithLogger(l))
	ctx, lc := f.Begin(context.Background(), StartRequest{Name: "/orders", Method: "GET"})
	span := tracex.SpanFromContext(ctx)
	lc.OnError(errors.New("disk full"))
	lc.End(nil)

	out := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, out, 2)

	var start, finish map[string]any
	require.NoError(t, json.Unmarshal([]byte(out[0]), &start))
	require.NoError(t, json.Unmarshal([]byte(out[1]), &finish))

	assert.Equal(t, logx.TagSpanStart, start["tag"])
	assert.Equal(t, span.TraceID, start["trace_id"])

	assert.Equal(t, logx.TagSpanFinish, finish["tag"])
	assert.Equal(t, "WARN", finish["level"])
	assert.Equal(t, "/orders", finish[logx.SpanName])
	// 上报时 store 尚未清理
	assert.Equal(t, span.TraceID, finish["trace_id"])
}
