package tracex

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"strings"
	"sync/atomic"
	"time"
)

type Kind int

const (
	KindServer Kind = iota
	KindClient
)

func (k Kind) String() string {
	if k == KindClient {
		return "client"
	}
	return "server"
}

// Annotation 即 zipkin 的 binary annotation，保持写入顺序
type Annotation struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Span struct {
	TraceID     string       `json:"trace_id"`
	SpanID      string       `json:"span_id"`
	Parent      string       `json:"parent_span_id,omitempty"`
	Name        string       `json:"name,omitempty"`
	Kind        Kind         `json:"kind"`
	Sampled     bool         `json:"sampled"`
	Annotations []Annotation `json:"annotations,omitempty"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Err   error     `json:"-"`
}

// Annotate 追加一条 annotation；span 结束后忽略
func (s *Span) Annotate(key, value string) {
	if s == nil || !s.End.IsZero() {
		return
	}
	s.Annotations = append(s.Annotations, Annotation{Key: key, Value: value})
}

// Annotation 返回 key 最后一次写入的值
func (s *Span) Annotation(key string) (string, bool) {
	if s == nil {
		return "", false
	}
	for i := len(s.Annotations) - 1; i >= 0; i-- {
		if s.Annotations[i].Key == key {
			return s.Annotations[i].Value, true
		}
	}
	return "", false
}

func (s *Span) Finished() bool {
	return s != nil && !s.End.IsZero()
}

// -------------------- ID 生成 --------------------

// NewTraceID 128 bit（32 位 hex）
func NewTraceID() string {
	return randomHex(16)
}

// NewSpanID 64 bit（16 位 hex）
func NewSpanID() string {
	return randomHex(8)
}

var fallbackSeq atomic.Uint64

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		fallbackID(b)
	}
	// 全 0 的 id 不合法
	if allZero(b) {
		b[len(b)-1] = 1
	}
	return hex.EncodeToString(b)
}

// crypto/rand 不可用时用时间戳 + 自增序号兜底
func fallbackID(b []byte) {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(time.Now().UnixNano()))
	binary.BigEndian.PutUint64(buf[8:], fallbackSeq.Add(1))
	copy(b, buf[16-len(b):])
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// ValidTraceID 16 或 32 位 hex，且不全为 0
func ValidTraceID(id string) bool {
	return (len(id) == 16 || len(id) == 32) && isHexID(id)
}

// ValidSpanID 16 位 hex，且不全为 0
func ValidSpanID(id string) bool {
	return len(id) == 16 && isHexID(id)
}

func isHexID(id string) bool {
	nonZero := false
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= '0' && c <= '9':
			if c != '0' {
				nonZero = true
			}
		case c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
			nonZero = true
		default:
			return false
		}
	}
	return nonZero
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
