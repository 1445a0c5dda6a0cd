package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/imattdu/tracefilter/filter"
	"github.com/imattdu/tracefilter/logx"
	"github.com/imattdu/tracefilter/middleware"
	"github.com/imattdu/tracefilter/tracex"
)

// gin 版 demo：curl -H 'X-B3-TraceId: 463ac35c9f6413ad' -H 'X-B3-SpanId: a2fb4a1d1a96d312' localhost:8080/orders/1
func main() {
	if err := logx.Init(logx.Config{AppName: "tracefilter-gin", Level: slog.LevelDebug, Output: os.Stdout}); err != nil {
		panic(err)
	}
	defer logx.Close(logx.L())
	tracex.SetGlobalReporter(filter.LogReporter(logx.L()))

	f := filter.MustNew(filter.WithName("gin"), filter.WithHeaders("X-Tenant"), filter.WithLogger(logx.L()))
	if err := middleware.InitAccessLogger(logx.L(), ""); err != nil {
		panic(err)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.TraceMiddleware(f), middleware.AccessMiddleware())
	r.GET("/orders/:id", func(c *gin.Context) {
		if c.Param("id") == "0" {
			_ = c.Error(errors.New("order not found"))
			c.JSON(http.StatusNotFound, gin.H{"msg": "not found"})
			return
		}
		logx.Info(c.Request.Context(), logx.TagUndef, "get order", "id", c.Param("id"))
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})

	if err := r.Run(":8080"); err != nil {
		logx.Error(context.Background(), logx.TagUndef, err)
	}
}
