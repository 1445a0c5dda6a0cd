package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/imattdu/tracefilter/logx"
	"github.com/imattdu/tracefilter/tracex"
)

type responseWriter struct {
	body *bytes.Buffer
	gin.ResponseWriter
}

func (w responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

var accessLogger logx.Logger

// InitAccessLogger logger 为 nil 时写到 logDir/access.log
func InitAccessLogger(logger logx.Logger, logDir string) error {
	if logger != nil {
		accessLogger = logger
		return nil
	}

	l, err := logx.New(logx.Config{
		AppName:    "access",
		Level:      slog.LevelInfo,
		LogDir:     logDir,
		MaxBackups: 24,
	})
	if err != nil {
		return err
	}
	accessLogger = l
	return nil
}

// AccessMiddleware 访问日志，需挂在 TraceMiddleware 之后才能带上 trace_id。
// 未初始化 access logger 时使用全局 logger
func AccessMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		logger := accessLogger
		if logger == nil {
			logger = logx.L()
		}
		if logger == nil {
			ctx.Next()
			return
		}

		req := ctx.Request
		c := req.Context()
		logMap := map[string]interface{}{
			logx.Remote: ctx.ClientIP(),
			logx.Method: req.Method,
			logx.Path:   req.URL.Path,
			logx.Query:  req.URL.RawQuery,
		}
		reqBodyBytes, err := ctx.GetRawData()
		if err != nil {
			_ = ctx.AbortWithError(http.StatusInternalServerError, err)
			logMap[logx.Err] = err.Error()
			logMap[logx.Msg] = "GetRawData failed"
			logger.Warn(c, logx.TagUndef, logMap)
			return
		}

		// 重置请求体
		ctx.Request.Body = io.NopCloser(bytes.NewReader(reqBodyBytes))
		var reqBody interface{}
		_ = json.Unmarshal(reqBodyBytes, &reqBody)
		logMap[logx.Body] = reqBody
		logger.Info(c, logx.TagRequestIn, logMap)

		writer := &responseWriter{body: bytes.NewBufferString(""), ResponseWriter: ctx.Writer}
		ctx.Writer = writer
		start := time.Now()
		ctx.Next()

		out := map[string]interface{}{
			logx.SpanName: tracex.SpanNameFromContext(c),
			logx.Method:   req.Method,
			logx.Path:     req.URL.Path,
			logx.Status:   writer.Status(),
			logx.Response: writer.body.String(),
			logx.Cost:     time.Since(start).Milliseconds(),
		}
		if len(ctx.Errors) > 0 {
			out[logx.Err] = ctx.Errors.String()
		}
		logger.Info(c, logx.TagRequestOut, out)
	}
}
