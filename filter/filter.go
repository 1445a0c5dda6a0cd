// Package filter 服务端 HTTP 拦截：每个请求创建一个 server span，收集 annotation，
// 并把 trace 信息写进请求级 cctx.Store 供日志读取，请求结束时保证清理。
//
//	f := filter.MustNew(filter.WithName("api"), filter.WithHeaders("X-Tenant"))
//	http.ListenAndServe(":8080", f.Handler(mux))
package filter

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/imattdu/tracefilter/errorx"
	"github.com/imattdu/tracefilter/logx"
	"github.com/imattdu/tracefilter/tracex"
)

// Config filter 初始化配置，New 之后不再修改
type Config struct {
	// Name 只影响防重入标记名；为空时用类型全名
	Name string

	// SpanNamer span 命名策略，默认 HalfPathNamer
	SpanNamer SpanNamer

	// Headers 需要记成 annotation 的请求头
	Headers []string

	// ClientAddr 是否记录调用方地址（ca）
	ClientAddr bool

	// Reporter 结束的 span 交给谁；nil 用 tracex 全局 Reporter
	Reporter tracex.Reporter

	// Logger 可选，span 开始时打 debug 日志
	Logger logx.Logger
}

func defaultConfig() Config {
	return Config{
		SpanNamer:  HalfPathNamer(),
		ClientAddr: true,
	}
}

type Option func(*Config)

func WithName(name string) Option {
	return func(c *Config) { c.Name = name }
}

func WithSpanNamer(n SpanNamer) Option {
	return func(c *Config) { c.SpanNamer = n }
}

func WithHeaders(names ...string) Option {
	return func(c *Config) { c.Headers = append(c.Headers, names...) }
}

func WithoutClientAddr() Option {
	return func(c *Config) { c.ClientAddr = false }
}

func WithReporter(r tracex.Reporter) Option {
	return func(c *Config) { c.Reporter = r }
}

func WithLogger(l logx.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// Filter 并发安全，所有状态都在单次请求内
type Filter struct {
	name       string
	marker     markerKey
	namer      SpanNamer
	headers    []string
	clientAddr bool
	reporter   tracex.Reporter
	logger     logx.Logger
}

// Next 下游处理链；返回的 error 会被记录后原样返回
type Next func(w http.ResponseWriter, r *http.Request) error

// New 创建 Filter，参数不合法时返回 *errorx.Error
func New(opts ...Option) (*Filter, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.SpanNamer == nil {
		return nil, errorx.New(errorx.ErrInvalidOption,
			errorx.WithService(errorx.ServiceFilter), errorx.WithMessage("span namer is nil"))
	}

	headers := make([]string, 0, len(cfg.Headers))
	seen := make(map[string]struct{}, len(cfg.Headers))
	for _, h := range cfg.Headers {
		if !validHeaderName(h) {
			return nil, errorx.New(errorx.ErrInvalidHeader,
				errorx.WithService(errorx.ServiceFilter), errorx.WithField("header", h))
		}
		h = http.CanonicalHeaderKey(h)
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		headers = append(headers, h)
	}

	name := cfg.Name
	if name == "" {
		name = defaultName
	}

	return &Filter{
		name:       name,
		marker:     markerKey(name + markerSuffix),
		namer:      cfg.SpanNamer,
		headers:    headers,
		clientAddr: cfg.ClientAddr,
		reporter:   cfg.Reporter,
		logger:     cfg.Logger,
	}, nil
}

// MustNew 参数不合法直接 panic，适合在 main 里用
func MustNew(opts ...Option) *Filter {
	f, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return f
}

// Name filter 名（未配置时为类型全名）
func (f *Filter) Name() string {
	return f.name
}

var defaultName = func() string {
	t := reflect.TypeOf(Filter{})
	return t.PkgPath() + "." + t.Name()
}()

// header 名只允许 RFC 7230 token 字符
func validHeaderName(h string) bool {
	if h == "" {
		return false
	}
	return strings.IndexFunc(h, func(r rune) bool {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return false
		}
		return !strings.ContainsRune("!#$%&'*+-.^_`|~", r)
	}) < 0
}

// -------------------- 拦截入口 --------------------

// Serve 拦截一次请求：
//
//	guard -> extract -> begin -> next -> (onError) -> end
//
// next 返回的 error 和 panic 都会先记到 span 上，再原样返回 / 重新 panic；
// end 在所有出口都执行且只执行一次
func (f *Filter) Serve(w http.ResponseWriter, r *http.Request, next Next) (err error) {
	if !f.ShouldProcess(r) {
		return next(w, r)
	}
	r = f.MarkProcessed(r)

	start := f.Extract(r)
	ctx, lc := f.Begin(r.Context(), start)
	rw, capture := WrapResponse(w)

	defer func() {
		if rec := recover(); rec != nil {
			lc.OnError(&panicError{value: rec})
			lc.End(capture)
			panic(rec)
		}
		if err != nil {
			lc.OnError(err)
		}
		lc.End(capture)
	}()

	return next(rw, r.WithContext(ctx))
}

// Handler net/http（chi 等）中间件
func (f *Filter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = f.Serve(w, r, func(w http.ResponseWriter, r *http.Request) error {
			next.ServeHTTP(w, r)
			return nil
		})
	})
}
