package cctx

import (
	"context"
)

// ----------------- bag：请求级只读字段 -----------------

type bagKeyType struct{}

var bagKey bagKeyType

// bag 写时复制，ctx 派生后互不影响
type bag map[string]any

func bagFrom(ctx context.Context) bag {
	if ctx == nil {
		return nil
	}
	if b, ok := ctx.Value(bagKey).(bag); ok {
		return b
	}
	return nil
}

func copyBag(b bag, extra int) bag {
	out := make(bag, len(b)+extra)
	for k, v := range b {
		out[k] = v
	}
	return out
}

// With 在 ctx 上写入一条 k/v，返回新 ctx
func With(ctx context.Context, key string, val any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	b := copyBag(bagFrom(ctx), 1)
	b[key] = val
	return context.WithValue(ctx, bagKey, b)
}

// Get 读取一个键
func Get(ctx context.Context, key string) (any, bool) {
	if b := bagFrom(ctx); b != nil {
		v, ok := b[key]
		return v, ok
	}
	return nil, false
}

// GetAs 读取并断言为 T
func GetAs[T any](ctx context.Context, key string) (T, bool) {
	var zero T
	v, ok := Get(ctx, key)
	if !ok {
		return zero, false
	}
	tv, ok := v.(T)
	if !ok {
		return zero, false
	}
	return tv, true
}

// All 返回 bag 的拷贝
func All(ctx context.Context) map[string]any {
	b := bagFrom(ctx)
	out := make(map[string]any, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Clone 复制一个脱离原请求生命周期的 ctx，用于在新的 goroutine 里继续打日志：
//   - 复制 bag 与 Store（Store 是快照，之后两边互不影响）
//   - 保留 parent 的 deadline，parent Done 时联动 cancel
//
// 调用方负责调用 cancel 释放资源
func Clone(parent context.Context) (context.Context, context.CancelFunc) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if dl, ok := parent.Deadline(); ok {
		ctx, cancel = context.WithDeadline(context.Background(), dl)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	if parent.Done() != nil {
		go func() {
			select {
			case <-parent.Done():
				cancel()
			case <-ctx.Done():
			}
		}()
	}
	if parent.Err() != nil {
		cancel()
	}

	if b := bagFrom(parent); b != nil {
		ctx = context.WithValue(ctx, bagKey, copyBag(b, 0))
	}
	if s := StoreFrom(parent); s != nil {
		var cp *Store
		ctx, cp = WithStore(ctx)
		for k, v := range s.All() {
			cp.Put(k, v)
		}
	}
	return ctx, cancel
}
