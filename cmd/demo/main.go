// demo: chi 服务，挂 filter，span 同时写日志、Prometheus 和 OTLP
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imattdu/tracefilter/confx"
	"github.com/imattdu/tracefilter/errorx"
	"github.com/imattdu/tracefilter/filter"
	"github.com/imattdu/tracefilter/httpclient"
	"github.com/imattdu/tracefilter/logx"
	"github.com/imattdu/tracefilter/observability"
	"github.com/imattdu/tracefilter/otelx"
	"github.com/imattdu/tracefilter/tracex"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "demo:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := confx.Load()
	if err != nil {
		return err
	}

	logCfg := logx.Config{
		AppName:        cfg.ServiceName,
		Level:          cfg.LogLevel,
		LogDir:         cfg.LogDir,
		ConsoleEnabled: cfg.LogDir != "",
	}
	if cfg.LogDir == "" {
		logCfg.Output = os.Stdout
	}
	if err := logx.Init(logCfg); err != nil {
		return err
	}
	defer logx.Close(logx.L())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelReporter, shutdownOtel, err := otelx.Init(ctx, otelx.Config{
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
		ServiceName: cfg.ServiceName,
		Version:     cfg.Version,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownOtel(sctx); err != nil {
			logx.Warn(sctx, logx.TagUndef, err)
		}
	}()

	observability.Init()
	tracex.SetGlobalReporter(tracex.MultiReporter(
		filter.LogReporter(logx.L()),
		observability.Reporter(),
		otelReporter,
	))

	router := chi.NewRouter()
	f, err := filter.New(
		filter.WithName(cfg.FilterName),
		filter.WithHeaders(cfg.Headers...),
		filter.WithSpanNamer(spanNamer(cfg.SpanNamer, router)),
		filter.WithLogger(logx.L()),
	)
	if err != nil {
		return err
	}

	var downstream *httpclient.Client
	if cfg.Downstream != "" {
		if downstream, err = httpclient.New(httpclient.WithBaseURL(cfg.Downstream)); err != nil {
			return err
		}
	}

	router.Use(f.Handler)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/orders/{id}", getOrder(downstream))
	router.Get("/legacy", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("status", "500")
		w.Header().Set("message", "legacy failure")
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		logx.Info(ctx, logx.TagUndef, "listening", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}

func spanNamer(name string, routes chi.Routes) filter.SpanNamer {
	switch name {
	case "full":
		return filter.FullPathNamer()
	case "method":
		return filter.MethodNamer()
	case "route":
		return filter.RouteNamer(routes)
	default:
		return filter.HalfPathNamer()
	}
}

func getOrder(downstream *httpclient.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "0" {
			_ = filter.SendError(w, http.StatusNotFound, errorx.ErrNotFound.Message)
			return
		}

		body := map[string]any{"id": id}
		if downstream != nil {
			var detail map[string]any
			_, err := downstream.GetJSON(r.Context(), "", &detail,
				httpclient.WithPathTemplate("/orders/%s", id))
			if err != nil {
				logx.Warn(r.Context(), logx.TagHttpFailure, err)
				_ = filter.SendError(w, http.StatusBadGateway, "")
				return
			}
			body["detail"] = detail
		}

		logx.Info(r.Context(), logx.TagUndef, "order served", "id", id)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}
}
