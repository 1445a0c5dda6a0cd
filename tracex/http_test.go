package tracex

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	traceID128 = "463ac35c9f6413ad48485a3953bb6124"
	spanID     = "a2fb4a1d1a96d312"
	parentID   = "0020000000000001"
)

func TestExtractB3MultiHeader(t *testing.T) {
	h := http.Header{}
	h.Set(HeaderB3TraceID, traceID128)
	h.Set(HeaderB3SpanID, spanID)
	h.Set(HeaderB3ParentSpanID, parentID)
	h.Set(HeaderB3Sampled, "0")

	sc := Extract(h)
	require.NotNil(t, sc)
	assert.Equal(t, traceID128, sc.TraceID)
	assert.Equal(t, spanID, sc.SpanID)
	assert.Equal(t, parentID, sc.Parent)
	assert.False(t, sc.Sampled)
}

func TestExtractB3DebugForcesSampling(t *testing.T) {
	h := http.Header{}
	h.Set(HeaderB3TraceID, "48485a3953bb6124")
	h.Set(HeaderB3SpanID, spanID)
	h.Set(HeaderB3Sampled, "0")
	h.Set(HeaderB3Flags, "1")

	sc := Extract(h)
	require.NotNil(t, sc)
	assert.True(t, sc.Sampled)
	assert.True(t, sc.Debug)
	assert.Empty(t, sc.Parent)
}

func TestExtractB3Single(t *testing.T) {
	cases := []struct {
		name    string
		value   string
		ok      bool
		sampled bool
		parent  string
	}{
		{"ids only", traceID128 + "-" + spanID, true, true, ""},
		{"not sampled", traceID128 + "-" + spanID + "-0", true, false, ""},
		{"debug with parent", traceID128 + "-" + spanID + "-d-" + parentID, true, true, parentID},
		{"bad sampling", traceID128 + "-" + spanID + "-x", false, false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := http.Header{}
			h.Set(HeaderB3Single, tc.value)
			sc := Extract(h)
			if !tc.ok {
				assert.Nil(t, sc)
				return
			}
			require.NotNil(t, sc)
			assert.Equal(t, tc.sampled, sc.Sampled)
			assert.Equal(t, tc.parent, sc.Parent)
		})
	}
}

func TestExtractSamplingOnly(t *testing.T) {
	cases := []struct {
		name    string
		header  http.Header
		sampled bool
		debug   bool
	}{
		{"b3 multi not sampled", http.Header{HeaderB3Sampled: {"0"}}, false, false},
		{"b3 multi false", http.Header{HeaderB3Sampled: {"false"}}, false, false},
		{"b3 multi sampled", http.Header{HeaderB3Sampled: {"1"}}, true, false},
		{"b3 flags", http.Header{HeaderB3Flags: {"1"}, HeaderB3Sampled: {"0"}}, true, true},
		{"b3 single not sampled", http.Header{HeaderB3Single: {"0"}}, false, false},
		{"b3 single debug", http.Header{HeaderB3Single: {"d"}}, true, true},
		{"invalid ids keep decision", http.Header{HeaderB3TraceID: {"zz"}, HeaderB3SpanID: {spanID}, HeaderB3Sampled: {"0"}}, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sc := Extract(tc.header)
			require.NotNil(t, sc)
			assert.False(t, sc.HasIDs())
			assert.Equal(t, tc.sampled, sc.Sampled)
			assert.Equal(t, tc.debug, sc.Debug)
		})
	}
}

func TestExtractLegacyHeaders(t *testing.T) {
	h := http.Header{}
	h.Set(HeaderTraceID, traceID128)
	h.Set(HeaderSpanID, spanID)

	sc := Extract(h)
	require.NotNil(t, sc)
	assert.Equal(t, traceID128, sc.TraceID)
	assert.True(t, sc.Sampled)
}

func TestExtractInvalid(t *testing.T) {
	cases := map[string]http.Header{
		"empty":          {},
		"missing span":   {HeaderB3TraceID: {traceID128}},
		"not hex":        {HeaderB3TraceID: {"zzzzzzzzzzzzzzzz"}, HeaderB3SpanID: {spanID}},
		"all zero trace": {HeaderB3TraceID: {"0000000000000000"}, HeaderB3SpanID: {spanID}},
		"bad length":     {HeaderB3TraceID: {"abc"}, HeaderB3SpanID: {spanID}},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Nil(t, Extract(h))
		})
	}
	assert.Nil(t, Extract(nil))
}

func TestExtractDropsInvalidParent(t *testing.T) {
	h := http.Header{}
	h.Set(HeaderB3TraceID, traceID128)
	h.Set(HeaderB3SpanID, spanID)
	h.Set(HeaderB3ParentSpanID, "nope")

	sc := Extract(h)
	require.NotNil(t, sc)
	assert.Empty(t, sc.Parent)
}

func TestInjectRoundTrip(t *testing.T) {
	ctx, server := StartServerSpan(context.Background(), nil, "/orders")
	ctx, client := StartSpan(ctx, "GET /stock")

	h := http.Header{}
	InjectToHeader(ctx, h)

	sc := Extract(h)
	require.NotNil(t, sc)
	assert.Equal(t, server.TraceID, sc.TraceID)
	assert.Equal(t, client.SpanID, sc.SpanID)
	assert.Equal(t, server.SpanID, sc.Parent)
	assert.True(t, sc.Sampled)
}
