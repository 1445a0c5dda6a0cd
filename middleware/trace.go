package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imattdu/tracefilter/filter"
	"github.com/imattdu/tracefilter/tracex"
)

// TraceMiddleware gin 版 filter：生成/透传 trace，写入 ctx 和响应头。
// c.Writer 自己记录状态码，filter 不再包装；c.Errors 里最后一个错误记到 span 上
func TraceMiddleware(f *filter.Filter) gin.HandlerFunc {
	return func(c *gin.Context) {
		_ = f.Serve(c.Writer, c.Request, func(w http.ResponseWriter, r *http.Request) error {
			c.Request = r
			if traceID := tracex.TraceIDFromContext(r.Context()); traceID != "" {
				c.Header(tracex.HeaderTraceID, traceID)
			}
			c.Next()
			if err := c.Errors.Last(); err != nil {
				return err
			}
			return nil
		})
	}
}
