// Package otelx 把结束的 tracex span 导出到 OpenTelemetry（OTLP/HTTP）。
//
// span 在请求结束后按原始时间戳重放到 otel SDK，IDGenerator 保证导出的
// trace_id / span_id 与日志、B3 头里的一致。
package otelx

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/imattdu/tracefilter/errorx"
	"github.com/imattdu/tracefilter/tracex"
)

type Config struct {
	// Endpoint 为空时不导出
	Endpoint    string
	Insecure    bool
	ServiceName string
	Version     string
	// BatchTimeout 默认 5s
	BatchTimeout time.Duration
}

// Shutdown 刷新并关闭 exporter，main 退出前调用
type Shutdown func(ctx context.Context) error

// Init 创建 OTLP exporter 和 TracerProvider，并设为 otel 全局 provider。
// Endpoint 为空时返回 tracex.Noop
func Init(ctx context.Context, cfg Config) (tracex.Reporter, Shutdown, error) {
	if cfg.Endpoint == "" {
		return tracex.Noop, func(context.Context) error { return nil }, nil
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 5 * time.Second
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.Version),
		),
	)
	if err != nil {
		return nil, nil, errorx.Wrap(err, errorx.ErrExport,
			errorx.WithService(errorx.ServiceTrace), errorx.WithMessage("create resource"))
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, nil, errorx.Wrap(err, errorx.ErrExport,
			errorx.WithService(errorx.ServiceTrace), errorx.WithMessage("create trace exporter"))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(cfg.BatchTimeout)),
		sdktrace.WithResource(res),
		sdktrace.WithIDGenerator(NewIDGenerator()),
	)
	otel.SetTracerProvider(tp)

	shutdown := func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return fmt.Errorf("otelx: shutdown: %w", err)
		}
		return nil
	}
	return NewReporter(tp), shutdown, nil
}
