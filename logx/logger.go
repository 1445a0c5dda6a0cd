package logx

import (
	"context"
	"log/slog"
	"time"
)

// Logger 对外暴露给业务 / 组件使用的接口
type Logger interface {
	Debug(ctx context.Context, tag string, msg any, kv ...any)
	Info(ctx context.Context, tag string, msg any, kv ...any)
	Warn(ctx context.Context, tag string, msg any, kv ...any)
	Error(ctx context.Context, tag string, msg any, kv ...any)
}

type loggerImpl struct {
	h    *handler
	slog *slog.Logger
}

// callerDepth: log 往上两层是业务调用方（log <- Info <- 业务）；
// 包级快捷函数多一层 logDefault
const callerDepth = 2

func (l *loggerImpl) Debug(ctx context.Context, tag string, msg any, kv ...any) {
	l.log(ctx, callerDepth, slog.LevelDebug, tag, msg, kv...)
}

func (l *loggerImpl) Info(ctx context.Context, tag string, msg any, kv ...any) {
	l.log(ctx, callerDepth, slog.LevelInfo, tag, msg, kv...)
}

func (l *loggerImpl) Warn(ctx context.Context, tag string, msg any, kv ...any) {
	l.log(ctx, callerDepth, slog.LevelWarn, tag, msg, kv...)
}

func (l *loggerImpl) Error(ctx context.Context, tag string, msg any, kv ...any) {
	l.log(ctx, callerDepth, slog.LevelError, tag, msg, kv...)
}

func (l *loggerImpl) log(ctx context.Context, depth int, level slog.Level, tag string, msg any, kv ...any) {
	if l == nil || l.slog == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.slog.Enabled(ctx, level) {
		return
	}

	rec := slog.NewRecord(time.Now(), level, "", 0)
	rec.AddAttrs(encodeLog(ctx, depth, tag, msg, kv...)...)

	// 直接交给自定义 handler（异步、切分）
	_ = l.slog.Handler().Handle(ctx, rec)
}

// Close 等待队列写完并关闭文件
func (l *loggerImpl) Close() error {
	if l == nil || l.h == nil {
		return nil
	}
	return l.h.close()
}

// -------------------- 全局默认 logger --------------------

var defaultLogger Logger

// Init 根据 Config 初始化全局 logger（建议在 main 里调用一次）
func Init(cfg Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	defaultLogger = l
	return nil
}

// New 创建一个独立的 Logger 实例
func New(cfg Config) (Logger, error) {
	h, err := newHandler(cfg)
	if err != nil {
		return nil, err
	}
	return &loggerImpl{h: h, slog: slog.New(h)}, nil
}

// Close 关闭 logger（实现了 io.Closer 时），main 退出前调用
func Close(l Logger) error {
	if c, ok := l.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// L 返回全局 logger，未 Init 时为 nil
func L() Logger {
	return defaultLogger
}

// 方便业务直接调用的快捷函数；默认实现直接调 log 保证 caller 层数一致

func Debug(ctx context.Context, tag string, msg any, kv ...any) {
	logDefault(ctx, slog.LevelDebug, tag, msg, kv...)
}

func Info(ctx context.Context, tag string, msg any, kv ...any) {
	logDefault(ctx, slog.LevelInfo, tag, msg, kv...)
}

func Warn(ctx context.Context, tag string, msg any, kv ...any) {
	logDefault(ctx, slog.LevelWarn, tag, msg, kv...)
}

func Error(ctx context.Context, tag string, msg any, kv ...any) {
	logDefault(ctx, slog.LevelError, tag, msg, kv...)
}

func logDefault(ctx context.Context, level slog.Level, tag string, msg any, kv ...any) {
	switch l := L().(type) {
	case nil:
	case *loggerImpl:
		l.log(ctx, callerDepth+1, level, tag, msg, kv...)
	default:
		switch level {
		case slog.LevelDebug:
			l.Debug(ctx, tag, msg, kv...)
		case slog.LevelInfo:
			l.Info(ctx, tag, msg, kv...)
		case slog.LevelWarn:
			l.Warn(ctx, tag, msg, kv...)
		default:
			l.Error(ctx, tag, msg, kv...)
		}
	}
}
