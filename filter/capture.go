package filter

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/imattdu/tracefilter/tracex"
)

// StatusRecorder 记录写出的状态码
type StatusRecorder interface {
	RecordStatus(code int)
}

// StatusReader 能直接读出状态码的 ResponseWriter（gin.ResponseWriter 即是）
type StatusReader interface {
	Status() int
}

// ErrorSender 发送错误响应
type ErrorSender interface {
	SendError(code int) error
	SendErrorMessage(code int, msg string) error
}

// ErrCommitted 响应头已经写出后再发送错误
var ErrCommitted = errors.New("filter: response already committed")

// 兼容老服务：业务通过这两个响应头返回自定义状态
const (
	headerStatus  = "status"
	headerMessage = "message"
)

// Capture 单次请求的响应状态
type Capture struct {
	status int
	reader StatusReader
	header func() http.Header
}

func NewCapture(header func() http.Header, reader StatusReader) *Capture {
	return &Capture{header: header, reader: reader}
}

func (c *Capture) RecordStatus(code int) {
	if code > 0 {
		c.status = code
	}
}

// Status 最终状态码，从未写过时为 200
func (c *Capture) Status() int {
	if c == nil {
		return http.StatusOK
	}
	if c.reader != nil {
		if s := c.reader.Status(); s > 0 {
			return s
		}
	}
	if c.status != 0 {
		return c.status
	}
	return http.StatusOK
}

// ResponseAnnotations 响应头 status 能解析成非 0 整数时记 http.status / http.message，
// 否则记数字状态码 http.status_code
func (c *Capture) ResponseAnnotations() []tracex.Annotation {
	if c != nil && c.header != nil {
		h := c.header()
		if status := strings.TrimSpace(h.Get(headerStatus)); status != "" {
			if n, err := strconv.Atoi(status); err == nil && n != 0 {
				return []tracex.Annotation{
					{Key: AnnotationStatus, Value: status},
					{Key: AnnotationMessage, Value: h.Get(headerMessage)},
				}
			}
		}
	}
	return []tracex.Annotation{{Key: AnnotationStatusCode, Value: strconv.Itoa(c.Status())}}
}

// WrapResponse 能直接读状态码时不包装；否则返回记录状态码的装饰器。
// 原 writer 实现 http.Flusher 时装饰器才实现 http.Flusher
func WrapResponse(w http.ResponseWriter) (http.ResponseWriter, *Capture) {
	if sr, ok := w.(StatusReader); ok {
		return w, NewCapture(w.Header, sr)
	}
	c := NewCapture(w.Header, nil)
	rw := &responseWriter{ResponseWriter: w, capture: c}
	if f, ok := w.(http.Flusher); ok {
		return &flushWriter{responseWriter: rw, flusher: f}, c
	}
	return rw, c
}

// SendError 发送错误响应；w 支持 ErrorSender 时走装饰器以便记录状态码
func SendError(w http.ResponseWriter, code int, msg string) error {
	if es, ok := w.(ErrorSender); ok {
		return es.SendErrorMessage(code, msg)
	}
	if msg == "" {
		msg = http.StatusText(code)
	}
	http.Error(w, msg, code)
	return nil
}

// -------------------- ResponseWriter 装饰器 --------------------

type responseWriter struct {
	http.ResponseWriter
	capture     *Capture
	wroteHeader bool
}

// WriteHeader 只记录真正写出去的状态码：1xx（101 除外）不算最终状态。
// 记的是第一次最终状态而不是最后一次调用：响应头写出后 net/http 忽略后续调用，
// 后面的状态码不会到达客户端
func (w *responseWriter) WriteHeader(code int) {
	if code < 200 && code != http.StatusSwitchingProtocols {
		w.ResponseWriter.WriteHeader(code)
		return
	}
	if !w.wroteHeader {
		w.wroteHeader = true
		w.capture.RecordStatus(code)
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) Status() int {
	return w.capture.Status()
}

func (w *responseWriter) SendError(code int) error {
	return w.SendErrorMessage(code, "")
}

func (w *responseWriter) SendErrorMessage(code int, msg string) error {
	if w.wroteHeader {
		return ErrCommitted
	}
	if msg == "" {
		msg = http.StatusText(code)
	}
	h := w.Header()
	h.Del("Content-Length")
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	_, err := fmt.Fprintln(w, msg)
	return err
}

func (w *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(w.ResponseWriter).Hijack()
}

func (w *responseWriter) Push(target string, opts *http.PushOptions) error {
	if p, ok := w.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

// Unwrap 供 http.ResponseController 使用
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// flushWriter 原 writer 支持 Flush 时使用
type flushWriter struct {
	*responseWriter
	flusher http.Flusher
}

// Flush 未写过响应头时按 200 提交
func (w *flushWriter) Flush() {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	w.flusher.Flush()
}
