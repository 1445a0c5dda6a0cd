package httpclient

import (
	"net/http"
	"time"
)

// CallAttempt 单次尝试，每次尝试对应一个 client span
type CallAttempt struct {
	Attempt   int           `json:"attempt"`
	SpanID    string        `json:"span_id"`
	Status    int           `json:"status"`
	Err       string        `json:"err,omitempty"`
	Cost      time.Duration `json:"cost"`
	WillRetry bool          `json:"will_retry"`
}

// CallStats 一次完整调用
type CallStats struct {
	Method string `json:"method"`
	URL    string `json:"url"`
	Path   string `json:"path"`
	Query  string `json:"query"`

	Body     string `json:"body,omitempty"`
	BodySize int    `json:"body_size,omitempty"`

	MaxAttempts int           `json:"max_attempts"`
	Attempts    []CallAttempt `json:"attempts,omitempty"`

	Status int           `json:"status"`
	Err    string        `json:"err,omitempty"`
	Cost   time.Duration `json:"cost"`
}

// BizErrorDecoder 业务错误解析
type BizErrorDecoder func(statusCode int, body []byte) error

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func cloneHeader(h http.Header) http.Header {
	if h == nil {
		return make(http.Header)
	}
	return h.Clone()
}
