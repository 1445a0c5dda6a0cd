package filter

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureDefaultsTo200(t *testing.T) {
	_, c := WrapResponse(httptest.NewRecorder())
	assert.Equal(t, http.StatusOK, c.Status())

	var nilCapture *Capture
	assert.Equal(t, http.StatusOK, nilCapture.Status())
}

func TestCaptureRecordsWrittenStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	w, c := WrapResponse(rec)

	w.WriteHeader(http.StatusContinue)
	assert.Equal(t, http.StatusOK, c.Status())

	w.WriteHeader(http.StatusTeapot)
	// 第一次最终状态已经发出，后面的调用不会到达客户端
	w.WriteHeader(http.StatusInternalServerError)
	assert.Equal(t, http.StatusTeapot, c.Status())
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestCaptureWriteWithoutHeader(t *testing.T) {
	w, c := WrapResponse(httptest.NewRecorder())
	_, err := w.Write([]byte("hi"))
	require.NoError(t, err)

	w.WriteHeader(http.StatusNotFound)
	assert.Equal(t, http.StatusOK, c.Status())
}

func TestSendError(t *testing.T) {
	rec := httptest.NewRecorder()
	w, c := WrapResponse(rec)

	require.NoError(t, SendError(w, http.StatusNotFound, ""))
	assert.Equal(t, http.StatusNotFound, c.Status())
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found\n", rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	// 已经提交
	assert.ErrorIs(t, SendError(w, http.StatusInternalServerError, "late"), ErrCommitted)
	assert.Equal(t, http.StatusNotFound, c.Status())
}

func TestSendErrorPlainWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, SendError(rec, http.StatusForbidden, "no"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "no\n", rec.Body.String())
}

// statusWriter 模拟 gin.ResponseWriter：自己维护状态码
type statusWriter struct {
	*httptest.ResponseRecorder
}

func (w statusWriter) Status() int {
	return w.Code
}

func TestWrapResponseStatusReader(t *testing.T) {
	sw := statusWriter{httptest.NewRecorder()}
	w, c := WrapResponse(sw)

	assert.Equal(t, sw, w)
	w.WriteHeader(http.StatusConflict)
	assert.Equal(t, http.StatusConflict, c.Status())
}

func TestResponseWriterUnwrap(t *testing.T) {
	rec := httptest.NewRecorder()
	w, _ := WrapResponse(rec)

	require.NoError(t, http.NewResponseController(w).Flush())
	assert.True(t, rec.Flushed)

	_, _, err := http.NewResponseController(w).Hijack()
	assert.ErrorIs(t, err, http.ErrNotSupported)

	p, ok := w.(http.Pusher)
	require.True(t, ok)
	assert.ErrorIs(t, p.Push("/a.css", nil), http.ErrNotSupported)
}

func TestResponseWriterFlushCommitsStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	w, c := WrapResponse(rec)

	f, ok := w.(http.Flusher)
	require.True(t, ok)
	f.Flush()
	assert.True(t, rec.Flushed)
	assert.Equal(t, http.StatusOK, c.Status())

	w.WriteHeader(http.StatusInternalServerError)
	assert.Equal(t, http.StatusOK, c.Status())
	assert.ErrorIs(t, SendError(w, http.StatusBadGateway, ""), ErrCommitted)
}

// noFlushWriter 只暴露 http.ResponseWriter 的方法
type noFlushWriter struct {
	http.ResponseWriter
}

func TestResponseWriterWithoutFlusher(t *testing.T) {
	w, c := WrapResponse(noFlushWriter{httptest.NewRecorder()})

	_, ok := w.(http.Flusher)
	assert.False(t, ok)
	assert.ErrorIs(t, http.NewResponseController(w).Flush(), http.ErrNotSupported)

	_, ok = w.(ErrorSender)
	require.True(t, ok)
	require.NoError(t, SendError(w, http.StatusNotFound, ""))
	assert.Equal(t, http.StatusNotFound, c.Status())
}
