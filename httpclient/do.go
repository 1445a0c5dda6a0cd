package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/imattdu/tracefilter/errorx"
	"github.com/imattdu/tracefilter/logx"
	"github.com/imattdu/tracefilter/tracex"
)

// client span 上的 annotation
const (
	annotationMethod     = "http.method"
	annotationURL        = "http.url"
	annotationStatusCode = "http.status_code"
	annotationError      = "error"
	annotationAttempt    = "retry.attempt"
)

// Do 发起请求：带重试、client span、业务错误解析。
// respBody：
//   - nil       ：调用方自己处理 resp.Body（需自行 Close）
//   - io.Writer ：把响应体复制到 writer
//   - *[]byte   ：填充原始字节
//   - 其他      ：按 JSON 进行 Unmarshal
//
// 网络错误包装为 errorx.ErrUpstream
func (c *Client) Do(ctx context.Context, reqCfg *Request, respBody any) (*http.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	timeout := reqCfg.Timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	u, err := c.buildURL(reqCfg.Path, reqCfg.Query)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.ErrInvalidOption,
			errorx.WithService(errorx.ServiceHTTP), errorx.WithField("path", reqCfg.Path))
	}

	// ---------- body 预处理（为了支持重试） ----------
	headers := cloneHeader(reqCfg.Headers)
	var bodyBytes []byte
	var bodyReader io.Reader
	attempts := c.retryMaxAttempts

	switch v := reqCfg.Body.(type) {
	case nil:
	case io.Reader:
		// 不能重放，只尝试一次
		bodyReader = v
		attempts = 1
	default:
		bodyBytes, err = json.Marshal(v)
		if err != nil {
			return nil, err
		}
		if headers.Get("Content-Type") == "" {
			headers.Set("Content-Type", "application/json")
		}
	}

	stats := &CallStats{
		Method:      reqCfg.Method,
		URL:         u,
		Query:       reqCfg.Query.Encode(),
		MaxAttempts: attempts,
		BodySize:    len(bodyBytes),
	}
	if len(bodyBytes) <= 1024 {
		stats.Body = string(bodyBytes)
	}

	var lastResp *http.Response
	var lastErr error
	begin := time.Now()

loop:
	for attempt := 0; attempt < attempts; attempt++ {
		if bodyBytes != nil {
			bodyReader = bytes.NewReader(bodyBytes)
		}
		resp, ca, err := c.attempt(ctx, reqCfg.Method, u, headers, bodyReader, attempt)
		lastResp, lastErr = resp, err
		if stats.Path == "" && resp != nil && resp.Request != nil {
			stats.Path = resp.Request.URL.Path
		}

		ca.WillRetry = attempt < attempts-1 && c.retryDecider(resp, err)
		stats.Attempts = append(stats.Attempts, ca)
		if !ca.WillRetry {
			break
		}

		// 丢弃剩余 body，方便复用连接
		if resp != nil && resp.Body != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}

		if sleep := c.backoff(attempt); sleep > 0 {
			timer := time.NewTimer(sleep)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				lastResp, lastErr = nil, ctx.Err()
				break loop
			}
		}
	}

	stats.Cost = time.Since(begin)
	if lastResp != nil {
		stats.Status = lastResp.StatusCode
	}
	stats.Err = errString(lastErr)
	c.logStats(ctx, stats)

	if lastResp == nil {
		return nil, errorx.Wrap(lastErr, errorx.ErrUpstream,
			errorx.WithService(errorx.ServiceHTTP), errorx.WithField("url", u))
	}
	return c.decode(lastResp, respBody)
}

// attempt 一次尝试：client span + B3 头
func (c *Client) attempt(ctx context.Context, method, u string, headers http.Header, body io.Reader, attempt int) (*http.Response, CallAttempt, error) {
	name := method
	if pu, err := url.Parse(u); err == nil {
		name += " " + pu.Path
	}
	ctx, span := tracex.StartSpan(ctx, name)
	span.Annotate(annotationMethod, method)
	span.Annotate(annotationURL, u)
	if attempt > 0 {
		span.Annotate(annotationAttempt, strconv.Itoa(attempt+1))
	}
	ca := CallAttempt{Attempt: attempt + 1, SpanID: span.SpanID}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		span.Annotate(annotationError, err.Error())
		tracex.Finish(ctx, span, err, c.reporter)
		ca.Err = err.Error()
		return nil, ca, err
	}
	req.Header = headers.Clone()
	tracex.InjectToHeader(ctx, req.Header)

	start := time.Now()
	resp, err := c.hc.Do(req)
	ca.Cost = time.Since(start)

	if err != nil {
		span.Annotate(annotationError, err.Error())
		ca.Err = err.Error()
	} else {
		span.Annotate(annotationStatusCode, strconv.Itoa(resp.StatusCode))
		ca.Status = resp.StatusCode
	}
	tracex.Finish(ctx, span, err, c.reporter)
	return resp, ca, err
}

func (c *Client) decode(resp *http.Response, respBody any) (*http.Response, error) {
	if respBody == nil {
		return resp, nil
	}
	defer resp.Body.Close()

	if w, ok := respBody.(io.Writer); ok {
		_, err := io.Copy(w, resp.Body)
		return resp, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, err
	}

	if c.bizErrDecoder != nil {
		if berr := c.bizErrDecoder(resp.StatusCode, data); berr != nil {
			return resp, berr
		}
	}

	if p, ok := respBody.(*[]byte); ok {
		*p = data
		return resp, nil
	}
	if len(data) == 0 {
		return resp, nil
	}
	return resp, json.Unmarshal(data, respBody)
}

func (c *Client) logStats(ctx context.Context, stats *CallStats) {
	l := c.logger
	if l == nil {
		l = logx.L()
	}
	if l == nil {
		return
	}
	kv := []any{
		logx.Method, stats.Method,
		logx.URL, stats.URL,
		logx.Status, stats.Status,
		logx.Cost, stats.Cost.Milliseconds(),
		logx.MaxAttempts, stats.MaxAttempts,
		logx.Attempt, stats.Attempts,
	}
	if stats.Err != "" {
		l.Warn(ctx, logx.TagHttpFailure, stats.Err, kv...)
		return
	}
	if stats.Status >= http.StatusInternalServerError {
		l.Warn(ctx, logx.TagHttpFailure, "upstream "+strconv.Itoa(stats.Status), kv...)
		return
	}
	l.Info(ctx, logx.TagHttpSuccess, "ok", kv...)
}

// -------- 便捷方法 --------

func (c *Client) GetJSON(ctx context.Context, path string, out any, opts ...RequestOption) (*http.Response, error) {
	req := &Request{Method: http.MethodGet, Path: path}
	for _, opt := range opts {
		opt(req)
	}
	return c.Do(ctx, req, out)
}

func (c *Client) PostJSON(ctx context.Context, path string, in any, out any, opts ...RequestOption) (*http.Response, error) {
	req := &Request{Method: http.MethodPost, Path: path, Body: in}
	for _, opt := range opts {
		opt(req)
	}
	return c.Do(ctx, req, out)
}
