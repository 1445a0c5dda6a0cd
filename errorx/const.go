package errorx

// CodeEntry 表示一个错误码 + 默认文案。
// 建议只在这里集中定义，业务用变量名，不直接写裸 code。
type CodeEntry struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// -------------------- 错误类别（系统 / 业务） --------------------

var (
	ErrTypeSys = CodeEntry{Code: 4, Message: "系统错误"}
	ErrTypeBiz = CodeEntry{Code: 5, Message: "业务错误"}
)

// -------------------- 出错模块 --------------------

var (
	ServiceDefault = CodeEntry{Code: 1, Message: "unknown"}
	ServiceFilter  = CodeEntry{Code: 10, Message: "filter"}
	ServiceTrace   = CodeEntry{Code: 11, Message: "trace"}
	ServiceHTTP    = CodeEntry{Code: 12, Message: "http"}
)

// -------------------- 错误码 --------------------

var (
	ErrDefault       = CodeEntry{Code: 1000, Message: "未知错误"}
	ErrInvalidOption = CodeEntry{Code: 1001, Message: "invalid option"}
	ErrInvalidHeader = CodeEntry{Code: 1002, Message: "invalid header name"}
	ErrExport        = CodeEntry{Code: 1003, Message: "span export failed"}
	ErrUpstream      = CodeEntry{Code: 1004, Message: "upstream request failed"}
	ErrNotFound      = CodeEntry{Code: 404, Message: "not found"}
)
