package httpclient

import (
	"net/http"
	"time"
)

// RetryDecider 决定某次响应是否需要重试
type RetryDecider func(resp *http.Response, err error) bool

// BackoffFunc 返回第 attempt 次重试前需要 sleep 的时间
type BackoffFunc func(attempt int) time.Duration

// 默认：网络错误、429、5xx
func defaultRetryDecider(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return false
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
}

// 指数退避：100ms, 200ms, 400ms ... 最大 2s
func defaultBackoff(attempt int) time.Duration {
	const (
		base     = 100 * time.Millisecond
		maxDelay = 2 * time.Second
	)
	if attempt > 5 {
		return maxDelay
	}
	return min(base<<attempt, maxDelay)
}

// ConstantBackoff 固定间隔
func ConstantBackoff(d time.Duration) BackoffFunc {
	return func(int) time.Duration { return d }
}
