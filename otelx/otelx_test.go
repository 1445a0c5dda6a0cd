package otelx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/imattdu/tracefilter/tracex"
)

func newRecorder(t *testing.T) (*tracetest.SpanRecorder, tracex.Reporter) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sr),
		sdktrace.WithIDGenerator(NewIDGenerator()),
	)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return sr, NewReporter(tp)
}

func TestReporterKeepsIDs(t *testing.T) {
	sr, r := newRecorder(t)

	start := time.Now().Add(-time.Second)
	span := &tracex.Span{
		TraceID: "463ac35c9f6413ad48485a3953bb6124",
		SpanID:  "a2fb4a1d1a96d312",
		Parent:  "0020000000000001",
		Name:    "/orders",
		Kind:    tracex.KindServer,
		Sampled: true,
		Start:   start,
		End:     start.Add(20 * time.Millisecond),
		Annotations: []tracex.Annotation{
			{Key: "http.method", Value: "GET"},
			{Key: "http.status_code", Value: "200"},
		},
	}
	r.Report(context.Background(), span)

	ended := sr.Ended()
	require.Len(t, ended, 1)
	got := ended[0]
	assert.Equal(t, span.TraceID, got.SpanContext().TraceID().String())
	assert.Equal(t, span.SpanID, got.SpanContext().SpanID().String())
	assert.Equal(t, span.Parent, got.Parent().SpanID().String())
	assert.Equal(t, "/orders", got.Name())
	assert.Equal(t, trace.SpanKindServer, got.SpanKind())
	assert.True(t, got.StartTime().Equal(span.Start))
	assert.True(t, got.EndTime().Equal(span.End))
	assert.Equal(t, []attribute.KeyValue{
		attribute.String("http.method", "GET"),
		attribute.String("http.status_code", "200"),
	}, got.Attributes())
	assert.Equal(t, codes.Unset, got.Status().Code)
}

func TestReporterRootAndShortTraceID(t *testing.T) {
	sr, r := newRecorder(t)

	r.Report(context.Background(), &tracex.Span{
		TraceID: "463ac35c9f6413ad",
		SpanID:  "a2fb4a1d1a96d312",
		Name:    "/x",
		Kind:    tracex.KindClient,
		Sampled: true,
		Start:   time.Now(),
		End:     time.Now(),
	})

	ended := sr.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "0000000000000000463ac35c9f6413ad", ended[0].SpanContext().TraceID().String())
	assert.False(t, ended[0].Parent().IsValid())
	assert.Equal(t, trace.SpanKindClient, ended[0].SpanKind())
}

func TestReporterErrorStatus(t *testing.T) {
	cases := []struct {
		name string
		span *tracex.Span
		desc string
	}{
		{
			name: "error",
			span: &tracex.Span{Err: errors.New("disk full")},
			desc: "disk full",
		},
		{
			name: "5xx",
			span: &tracex.Span{Annotations: []tracex.Annotation{{Key: "http.status_code", Value: "503"}}},
			desc: "status 503",
		},
		{
			name: "legacy status header",
			span: &tracex.Span{Annotations: []tracex.Annotation{{Key: "http.status", Value: "500"}}},
			desc: "status 500",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sr, r := newRecorder(t)
			tc.span.TraceID = tracex.NewTraceID()
			tc.span.SpanID = tracex.NewSpanID()
			tc.span.Start, tc.span.End = time.Now(), time.Now()
			r.Report(context.Background(), tc.span)

			ended := sr.Ended()
			require.Len(t, ended, 1)
			assert.Equal(t, codes.Error, ended[0].Status().Code)
			assert.Equal(t, tc.desc, ended[0].Status().Description)
		})
	}
}

func TestReporterSkipsBadIDs(t *testing.T) {
	sr, r := newRecorder(t)
	r.Report(context.Background(), &tracex.Span{TraceID: "zz", SpanID: "a2fb4a1d1a96d312"})
	r.Report(context.Background(), nil)
	assert.Empty(t, sr.Ended())
}

func TestIDGeneratorFallback(t *testing.T) {
	g := NewIDGenerator()
	tid, sid := g.NewIDs(context.Background())
	assert.True(t, tid.IsValid())
	assert.True(t, sid.IsValid())
	assert.True(t, g.NewSpanID(context.Background(), tid).IsValid())
}

func TestInitDisabled(t *testing.T) {
	r, shutdown, err := Init(context.Background(), Config{})
	require.NoError(t, err)
	assert.NotPanics(t, func() { r.Report(context.Background(), &tracex.Span{}) })
	assert.NoError(t, shutdown(context.Background()))
}
