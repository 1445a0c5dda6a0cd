package tracex

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDs(t *testing.T) {
	for i := 0; i < 100; i++ {
		assert.True(t, ValidTraceID(NewTraceID()))
		assert.True(t, ValidSpanID(NewSpanID()))
	}
	assert.NotEqual(t, NewSpanID(), NewSpanID())
}

func TestStartServerSpanRoot(t *testing.T) {
	ctx, span := StartServerSpan(context.Background(), nil, "/orders")
	require.Same(t, span, SpanFromContext(ctx))
	assert.Len(t, span.TraceID, 32)
	assert.Len(t, span.SpanID, 16)
	assert.Empty(t, span.Parent)
	assert.True(t, span.Sampled)
	assert.Equal(t, KindServer, span.Kind)
	assert.Equal(t, "/orders", SpanNameFromContext(ctx))
}

func TestStartServerSpanJoinsRemote(t *testing.T) {
	remote := &SpanContext{TraceID: traceID128, SpanID: spanID, Parent: parentID, Sampled: false}
	_, span := StartServerSpan(context.Background(), remote, "/orders")
	assert.Equal(t, traceID128, span.TraceID)
	assert.Equal(t, spanID, span.SpanID)
	assert.Equal(t, parentID, span.Parent)
	assert.False(t, span.Sampled)
}

func TestStartServerSpanSamplingOnly(t *testing.T) {
	_, span := StartServerSpan(context.Background(), &SpanContext{Sampled: false}, "/orders")
	assert.True(t, ValidTraceID(span.TraceID))
	assert.True(t, ValidSpanID(span.SpanID))
	assert.Empty(t, span.Parent)
	assert.False(t, span.Sampled)

	var nilRemote *SpanContext
	assert.False(t, nilRemote.HasIDs())
}

func TestFinishReportsOnceAndOnlySampled(t *testing.T) {
	var got []*Span
	r := ReporterFunc(func(_ context.Context, s *Span) { got = append(got, s) })

	ctx, span := StartServerSpan(context.Background(), nil, "x")
	boom := errors.New("boom")
	Finish(ctx, span, boom, r)
	Finish(ctx, span, nil, r)
	require.Len(t, got, 1)
	assert.Equal(t, boom, got[0].Err)
	assert.True(t, span.Duration() >= 0)

	_, unsampled := StartServerSpan(context.Background(), &SpanContext{TraceID: traceID128, SpanID: spanID}, "y")
	Finish(ctx, unsampled, nil, r)
	assert.Len(t, got, 1)
	assert.True(t, unsampled.Finished())
}

func TestAnnotateIgnoredAfterEnd(t *testing.T) {
	_, span := StartServerSpan(context.Background(), nil, "x")
	span.Annotate("a", "1")
	span.Annotate("a", "2")
	v, ok := span.Annotation("a")
	assert.True(t, ok)
	assert.Equal(t, "2", v)

	Finish(context.Background(), span, nil, Noop)
	span.Annotate("b", "3")
	assert.Len(t, span.Annotations, 2)
}

func TestGlobalReporter(t *testing.T) {
	defer SetGlobalReporter(nil)

	var n int
	SetGlobalReporter(MultiReporter(nil, ReporterFunc(func(context.Context, *Span) { n++ }), ReporterFunc(func(context.Context, *Span) { n++ })))
	ctx, span := StartServerSpan(context.Background(), nil, "x")
	Finish(ctx, span, nil, nil)
	assert.Equal(t, 2, n)
}
