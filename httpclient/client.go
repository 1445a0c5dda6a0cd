// Package httpclient 带 trace 的出站 HTTP 客户端：每次尝试一个 client span，
// B3 头透传给下游，调用结果打到 logx。
package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/imattdu/tracefilter/errorx"
	"github.com/imattdu/tracefilter/logx"
	"github.com/imattdu/tracefilter/tracex"
)

// Config Client 初始化配置
type Config struct {
	BaseURL string

	// 请求级默认超时（per-request 没设 Timeout 时使用）
	DefaultTimeout time.Duration

	DialTimeout           time.Duration
	DialKeepAlive         time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	IdleConnTimeout       time.Duration
	ReadWriteTimeout      time.Duration // 每次 Read/Write 的 deadline

	RetryMaxAttempts int
	RetryDecider     RetryDecider
	RetryBackoff     BackoffFunc

	BizErrDecoder BizErrorDecoder

	// Reporter client span 上报；nil 用 tracex 全局 Reporter
	Reporter tracex.Reporter
	// Logger 调用结果日志；nil 用 logx 全局 logger
	Logger logx.Logger

	// Transport 测试时替换
	Transport http.RoundTripper
}

func defaultConfig() Config {
	return Config{
		DefaultTimeout:        5 * time.Second,
		DialTimeout:           3 * time.Second,
		DialKeepAlive:         60 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 5 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		RetryMaxAttempts:      1,
	}
}

type Option func(*Config)

func WithBaseURL(s string) Option {
	return func(c *Config) { c.BaseURL = s }
}

func WithDefaultTimeout(t time.Duration) Option {
	return func(c *Config) { c.DefaultTimeout = t }
}

func WithReadWriteTimeout(t time.Duration) Option {
	return func(c *Config) { c.ReadWriteTimeout = t }
}

func WithRetry(max int, decider RetryDecider, backoff BackoffFunc) Option {
	return func(c *Config) {
		c.RetryMaxAttempts = max
		c.RetryDecider = decider
		c.RetryBackoff = backoff
	}
}

func WithBizErrorDecoder(dec BizErrorDecoder) Option {
	return func(c *Config) { c.BizErrDecoder = dec }
}

func WithReporter(r tracex.Reporter) Option {
	return func(c *Config) { c.Reporter = r }
}

func WithLogger(l logx.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

func WithTransport(rt http.RoundTripper) Option {
	return func(c *Config) { c.Transport = rt }
}

// Client 并发安全
type Client struct {
	hc      *http.Client
	baseURL *url.URL

	defaultTimeout   time.Duration
	retryMaxAttempts int
	retryDecider     RetryDecider
	backoff          BackoffFunc
	bizErrDecoder    BizErrorDecoder
	reporter         tracex.Reporter
	logger           logx.Logger
}

// New BaseURL 不合法时返回 *errorx.Error
func New(opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	var base *url.URL
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, errorx.Wrap(err, errorx.ErrInvalidOption,
				errorx.WithService(errorx.ServiceHTTP), errorx.WithField("base_url", cfg.BaseURL))
		}
		base = u
	}

	rt := cfg.Transport
	if rt == nil {
		rt = buildTransport(&cfg)
	}

	c := &Client{
		hc:               &http.Client{Transport: rt},
		baseURL:          base,
		defaultTimeout:   cfg.DefaultTimeout,
		retryMaxAttempts: max(cfg.RetryMaxAttempts, 1),
		retryDecider:     cfg.RetryDecider,
		backoff:          cfg.RetryBackoff,
		bizErrDecoder:    cfg.BizErrDecoder,
		reporter:         cfg.Reporter,
		logger:           cfg.Logger,
	}
	if c.retryDecider == nil {
		c.retryDecider = defaultRetryDecider
	}
	if c.backoff == nil {
		c.backoff = defaultBackoff
	}
	return c, nil
}

// -------------------- transport --------------------

func buildTransport(cfg *Config) *http.Transport {
	d := &net.Dialer{Timeout: cfg.DialTimeout, KeepAlive: cfg.DialKeepAlive}
	dial := d.DialContext
	if rw := cfg.ReadWriteTimeout; rw > 0 {
		dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return &timeoutConn{Conn: conn, rw: rw}, nil
		}
	}

	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dial,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
	}
}

// timeoutConn 每次 Read/Write 前设置 deadline
type timeoutConn struct {
	net.Conn
	rw time.Duration
}

func (c *timeoutConn) Read(b []byte) (int, error) {
	_ = c.SetReadDeadline(time.Now().Add(c.rw))
	return c.Conn.Read(b)
}

func (c *timeoutConn) Write(b []byte) (int, error) {
	_ = c.SetWriteDeadline(time.Now().Add(c.rw))
	return c.Conn.Write(b)
}
