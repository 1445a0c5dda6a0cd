package cctx

import (
	"context"
	"sync"
)

// 日志读取的 trace 字段
const (
	KeyTraceID      = "trace_id"
	KeySpanID       = "span_id"
	KeyParentSpanID = "parent_span_id"
)

type storeKeyType struct{}

var storeKey storeKeyType

// Store 请求级可变 k/v，生命周期跟随一次请求。
// 与 bag 不同，Store 在请求内原地修改：写入方在请求结束时负责清理。
type Store struct {
	mu sync.RWMutex
	m  map[string]string
}

// WithStore 在 ctx 上挂一个新的空 Store
func WithStore(ctx context.Context) (context.Context, *Store) {
	if ctx == nil {
		ctx = context.Background()
	}
	s := &Store{m: make(map[string]string, 4)}
	return context.WithValue(ctx, storeKey, s), s
}

// StoreFrom 取 ctx 上的 Store，没有返回 nil
func StoreFrom(ctx context.Context) *Store {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(storeKey).(*Store)
	return s
}

func (s *Store) Put(key, val string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.m[key] = val
	s.mu.Unlock()
}

func (s *Store) Get(key string) (string, bool) {
	if s == nil {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

// Remove 删除不存在的键是 no-op
func (s *Store) Remove(keys ...string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	for _, k := range keys {
		delete(s.m, k)
	}
	s.mu.Unlock()
}

func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// All 返回拷贝
func (s *Store) All() map[string]string {
	if s == nil {
		return map[string]string{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out
}
