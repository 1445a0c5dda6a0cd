package httpclient

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Request 表示一次请求的配置
type Request struct {
	Method  string
	Path    string      // 基于 BaseURL 的相对路径，或完整 URL
	Query   url.Values  // 额外 query
	Headers http.Header // 请求头
	Body    any         // nil / io.Reader / struct/map(会被 JSON 编码)

	Timeout time.Duration // per-request timeout（优先级高于 Config.DefaultTimeout）
}

type RequestOption func(*Request)

func WithQuery(q url.Values) RequestOption {
	return func(r *Request) { r.Query = q }
}

func WithHeader(k, v string) RequestOption {
	return func(r *Request) {
		if r.Headers == nil {
			r.Headers = make(http.Header)
		}
		r.Headers.Add(k, v)
	}
}

func WithJSONBody(body any) RequestOption {
	return func(r *Request) { r.Body = body }
}

func WithTimeout(t time.Duration) RequestOption {
	return func(r *Request) { r.Timeout = t }
}

// WithPathTemplate 参数会做 path 转义
func WithPathTemplate(format string, args ...any) RequestOption {
	escaped := make([]any, len(args))
	for i, a := range args {
		escaped[i] = url.PathEscape(fmt.Sprint(a))
	}
	return func(r *Request) { r.Path = fmt.Sprintf(format, escaped...) }
}

// buildURL path 为完整 URL 时忽略 BaseURL；否则拼到 BaseURL 后面，query 合并
func (c *Client) buildURL(path string, q url.Values) (string, error) {
	pu, err := url.Parse(path)
	if err != nil {
		return "", err
	}

	u := *pu
	if (pu.Scheme == "" || pu.Host == "") && c.baseURL != nil {
		u = *c.baseURL
		u.Path = joinPath(c.baseURL.Path, pu.Path)
	}
	u.RawQuery = mergeQuery(pu.Query(), q).Encode()
	return u.String(), nil
}

func mergeQuery(dst, src url.Values) url.Values {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
	return dst
}

func joinPath(a, b string) string {
	switch {
	case a == "" || a == "/":
		return b
	case b == "":
		return a
	}
	return strings.TrimSuffix(a, "/") + "/" + strings.TrimPrefix(b, "/")
}
