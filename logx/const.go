package logx

const (
	TagUndef       = "undef"
	TagRequestIn   = "request_in"
	TagRequestOut  = "request_out"
	TagSpanStart   = "span_start"
	TagSpanFinish  = "span_finish"
	TagHttpSuccess = "http_success"
	TagHttpFailure = "http_failure"

	Cost = "cost"
	Msg  = "msg"
	Err  = "err"

	Remote   = "remote"
	Method   = "method"
	URL      = "url"
	Path     = "path"
	Query    = "query"
	Status   = "status"
	Body     = "body"
	Response = "response"

	SpanName    = "span_name"
	Annotations = "annotations"
	Sampled     = "sampled"

	Attempt     = "attempt"
	MaxAttempts = "max_attempts"
)
