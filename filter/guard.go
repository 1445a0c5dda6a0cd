package filter

import (
	"context"
	"net/http"
)

const markerSuffix = ".FILTERED"

// markerKey 防重入标记，挂在请求 ctx 上，随请求存活
type markerKey string

// MarkerName <filterName>.FILTERED
func (f *Filter) MarkerName() string {
	return string(f.marker)
}

// ShouldProcess 同名 filter 已经处理过该请求时返回 false
func (f *Filter) ShouldProcess(r *http.Request) bool {
	done, _ := r.Context().Value(f.marker).(bool)
	return !done
}

// MarkProcessed 返回带标记的请求，之后的处理链必须使用返回值
func (f *Filter) MarkProcessed(r *http.Request) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), f.marker, true))
}
