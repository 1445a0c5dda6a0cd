package filter

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// SpanNamer 根据请求生成 span 名，只在 New 时指定
type SpanNamer interface {
	SpanName(r *http.Request) string
}

type SpanNamerFunc func(r *http.Request) string

func (f SpanNamerFunc) SpanName(r *http.Request) string {
	return f(r)
}

// HalfPathNamer 取路径前一半的段（向上取整），控制 span 名基数：
//
//	/orders/123      -> /orders
//	/api/v1/users/42 -> /api/v1
//	/a/b/c           -> /a/b
func HalfPathNamer() SpanNamer {
	return SpanNamerFunc(func(r *http.Request) string {
		return halfPath(r.URL.Path)
	})
}

// FullPathNamer 原样使用路径
func FullPathNamer() SpanNamer {
	return SpanNamerFunc(func(r *http.Request) string {
		if r.URL.Path == "" {
			return "/"
		}
		return r.URL.Path
	})
}

// MethodNamer 小写方法名，zipkin 默认做法
func MethodNamer() SpanNamer {
	return SpanNamerFunc(func(r *http.Request) string {
		return strings.ToLower(r.Method)
	})
}

// RouteNamer 使用 chi 路由模板（/orders/{id}），匹配不到时退回 HalfPathNamer。
// filter 通常挂在路由之前，此时 ctx 里还没有模板，需要用 routes 先匹配一次
func RouteNamer(routes chi.Routes) SpanNamer {
	return SpanNamerFunc(func(r *http.Request) string {
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				return p
			}
		}
		if routes != nil {
			rctx := chi.NewRouteContext()
			if routes.Match(rctx, r.Method, r.URL.Path) {
				if p := rctx.RoutePattern(); p != "" {
					return p
				}
			}
		}
		return halfPath(r.URL.Path)
	})
}

func halfPath(path string) string {
	segs := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	if len(segs) == 0 {
		return "/"
	}
	return "/" + strings.Join(segs[:(len(segs)+1)/2], "/")
}
