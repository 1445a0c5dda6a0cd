// Package confx demo 服务的配置：.env + 环境变量（TRACEFILTER_ 前缀）
package confx

import (
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/imattdu/tracefilter/errorx"
)

type Config struct {
	Addr        string
	ServiceName string
	Version     string

	// filter
	FilterName string
	Headers    []string
	SpanNamer  string // half | full | method | route

	// log
	LogLevel slog.Level
	LogDir   string // 为空时输出到 stdout

	// otel，endpoint 为空不导出
	OTLPEndpoint string
	OTLPInsecure bool

	Downstream      string
	ShutdownTimeout time.Duration
}

// Load 读取 .env（可选）和环境变量
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	v.SetEnvPrefix("TRACEFILTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v, "otlp_endpoint", "TRACEFILTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")

	v.SetDefault("addr", ":8080")
	v.SetDefault("service_name", "tracefilter-demo")
	v.SetDefault("version", "dev")
	v.SetDefault("filter_name", "")
	v.SetDefault("headers", "")
	v.SetDefault("span_namer", "half")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_dir", "")
	v.SetDefault("otlp_endpoint", "")
	v.SetDefault("otlp_insecure", true)
	v.SetDefault("downstream", "")
	v.SetDefault("shutdown_timeout", "10s")

	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return nil, invalid("TRACEFILTER_LOG_LEVEL", err)
	}
	timeout, err := time.ParseDuration(v.GetString("shutdown_timeout"))
	if err != nil {
		return nil, invalid("TRACEFILTER_SHUTDOWN_TIMEOUT", err)
	}

	cfg := &Config{
		Addr:            v.GetString("addr"),
		ServiceName:     v.GetString("service_name"),
		Version:         v.GetString("version"),
		FilterName:      v.GetString("filter_name"),
		Headers:         splitList(v.GetString("headers")),
		SpanNamer:       strings.ToLower(v.GetString("span_namer")),
		LogLevel:        level,
		LogDir:          v.GetString("log_dir"),
		OTLPEndpoint:    v.GetString("otlp_endpoint"),
		OTLPInsecure:    v.GetBool("otlp_insecure"),
		Downstream:      v.GetString("downstream"),
		ShutdownTimeout: timeout,
	}

	switch cfg.SpanNamer {
	case "half", "full", "method", "route":
	default:
		return nil, errorx.New(errorx.ErrInvalidOption,
			errorx.WithService(errorx.ServiceDefault), errorx.WithField("TRACEFILTER_SPAN_NAMER", cfg.SpanNamer))
	}
	return cfg, nil
}

func bindEnv(v *viper.Viper, key string, names ...string) {
	args := append([]string{key}, names...)
	_ = v.BindEnv(args...)
}

func invalid(env string, err error) error {
	return errorx.Wrap(err, errorx.ErrInvalidOption, errorx.WithField("env", env))
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
