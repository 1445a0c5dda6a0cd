package filter

import (
	"net"
	"net/http"
	"strings"

	"github.com/imattdu/tracefilter/tracex"
)

// annotation key
const (
	AnnotationMethod       = "http.method"
	AnnotationStatusCode   = "http.status_code"
	AnnotationStatus       = "http.status"
	AnnotationMessage      = "http.message"
	AnnotationError        = "error"
	AnnotationClientAddr   = "ca"
	AnnotationHeaderPrefix = "http.header."
)

// StartRequest 从入站请求里抽出的 span 初始信息
type StartRequest struct {
	Name   string
	Method string
	// Remote 上游透传的 trace 信息，nil 表示开启新 trace
	Remote *tracex.SpanContext
	// ClientAddr 为空表示解析失败，不记录
	ClientAddr string
	Headers    []tracex.Annotation
}

// Extract 读取请求，不修改请求
func (f *Filter) Extract(r *http.Request) StartRequest {
	req := StartRequest{
		Name:   f.namer.SpanName(r),
		Method: r.Method,
		Remote: tracex.Extract(r.Header),
	}
	if f.clientAddr {
		req.ClientAddr = clientAddr(r)
	}
	for _, h := range f.headers {
		v := r.Header.Get(h)
		if v == "" {
			continue
		}
		req.Headers = append(req.Headers, tracex.Annotation{
			Key:   AnnotationHeaderPrefix + strings.ToLower(h),
			Value: v,
		})
	}
	return req
}

// clientAddr X-Forwarded-For 第一个合法 IP > X-Real-Ip > RemoteAddr
func clientAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-Ip"))); ip != nil {
		return ip.String()
	}

	host, port, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host, port = r.RemoteAddr, ""
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return ""
	}
	if port == "" {
		return ip.String()
	}
	return net.JoinHostPort(ip.String(), port)
}
