package logx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// handler 把 Record 编成一行 JSON；默认异步写，队列满直接丢，不阻塞业务
type handler struct {
	cfg Config

	mu  sync.Mutex
	out *rotator // Output 为 nil 时落文件

	qmu     sync.RWMutex
	closed  bool
	entries chan slog.Record
	done    chan struct{}
}

func newHandler(cfg Config) (*handler, error) {
	if cfg.AppName == "" {
		cfg.AppName = "app"
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 10000
	}
	if cfg.LogDir == "" {
		cfg.LogDir = "."
	}

	h := &handler{cfg: cfg}
	if cfg.Output == nil {
		h.out = &rotator{cfg: cfg}
		if err := h.out.rotateIfNeeded(time.Now()); err != nil {
			return nil, err
		}
	}
	if !cfg.Sync {
		h.entries = make(chan slog.Record, cfg.QueueSize)
		h.done = make(chan struct{})
		go h.writeLoop()
	}
	return h, nil
}

// Enabled 满足 slog.Handler 接口
func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.Level
}

func (h *handler) Handle(_ context.Context, r slog.Record) error {
	if h.cfg.Sync {
		return h.writeRecord(r)
	}
	h.qmu.RLock()
	defer h.qmu.RUnlock()
	if h.closed {
		return nil
	}
	select {
	case h.entries <- r.Clone():
	default:
		log.Println("log queue full, drop log")
	}
	return nil
}

// 所有 Attr 都由上层 encodeLog 提供，这里不做分组
func (h *handler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *handler) WithGroup(string) slog.Handler      { return h }

func (h *handler) writeLoop() {
	defer close(h.done)
	for rec := range h.entries {
		if err := h.writeRecord(rec); err != nil {
			log.Println("write log failed:", err)
		}
	}
}

// close 停止接收并等队列写完
func (h *handler) close() error {
	if h.entries != nil {
		h.qmu.Lock()
		if h.closed {
			h.qmu.Unlock()
			return nil
		}
		h.closed = true
		close(h.entries)
		h.qmu.Unlock()
		<-h.done
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.out != nil {
		return h.out.close()
	}
	return nil
}

func (h *handler) writeRecord(r slog.Record) error {
	data := make(map[string]any, 16)
	data["ts"] = r.Time.Format(time.RFC3339Nano)
	data["level"] = r.Level.String()
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Resolve().Any()
		return true
	})

	lineBytes, err := json.Marshal(data)
	if err != nil {
		return err
	}
	line := append(lineBytes, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	var w io.Writer = h.cfg.Output
	if h.out != nil {
		if err := h.out.rotateIfNeeded(time.Now()); err != nil {
			return err
		}
		w = h.out
	}
	if _, err := w.Write(line); err != nil {
		return err
	}

	if h.cfg.ConsoleEnabled {
		if h.cfg.ConsoleColored {
			fmt.Print(colorPrefix(r.Level), string(line))
		} else {
			fmt.Print(string(line))
		}
	}
	return nil
}

func colorPrefix(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return "\033[36m[DEBUG]\033[0m "
	case slog.LevelInfo:
		return "\033[32m[INFO ]\033[0m "
	case slog.LevelWarn:
		return "\033[33m[WARN ]\033[0m "
	case slog.LevelError:
		return "\033[31m[ERROR]\033[0m "
	default:
		return "[" + level.String() + "] "
	}
}

// -------------------- 文件切分 --------------------

// rotator 不加锁，由 handler.mu 保护
type rotator struct {
	cfg   Config
	file  *os.File
	size  int64
	curHr time.Time
}

func (f *rotator) Write(p []byte) (int, error) {
	n, err := f.file.Write(p)
	f.size += int64(n)
	return n, err
}

func (f *rotator) close() error {
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}

func (f *rotator) rotateIfNeeded(now time.Time) error {
	needNew := f.file == nil
	switch f.cfg.Rotate {
	case RotateSize:
		if f.cfg.MaxFileSizeMB > 0 && f.size >= int64(f.cfg.MaxFileSizeMB)*1024*1024 {
			needNew = true
		}
	default:
		hour := now.Truncate(time.Hour)
		if !hour.Equal(f.curHr) {
			needNew = true
			f.curHr = hour
		}
	}
	if !needNew {
		return nil
	}

	_ = f.close()
	if err := os.MkdirAll(f.cfg.LogDir, 0o755); err != nil {
		return err
	}
	filename := f.buildFilename(now)
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	f.file, f.size = file, 0

	// 软链：{AppName}.log -> 当前文件
	linkPath := filepath.Join(f.cfg.LogDir, f.cfg.AppName+".log")
	_ = os.Remove(linkPath)
	_ = os.Symlink(filepath.Base(filename), linkPath)

	if f.cfg.MaxBackups > 0 {
		f.cleanupOldFiles()
	}
	return nil
}

func (f *rotator) buildFilename(now time.Time) string {
	layout := "2006010215" // 到小时
	if f.cfg.Rotate == RotateSize {
		layout = "20060102150405.000"
	}
	return filepath.Join(f.cfg.LogDir, fmt.Sprintf("%s-%s.log", f.cfg.AppName, now.Format(layout)))
}

// cleanupOldFiles 按修改时间排序，只保留最新 MaxBackups 个
func (f *rotator) cleanupOldFiles() {
	entries, err := os.ReadDir(f.cfg.LogDir)
	if err != nil {
		log.Println("cleanupOldFiles ReadDir error:", err)
		return
	}

	type fileInfo struct {
		name string
		t    time.Time
	}
	prefix := f.cfg.AppName + "-"
	files := make([]fileInfo, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".log") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{name: filepath.Join(f.cfg.LogDir, name), t: info.ModTime()})
	}
	if len(files) <= f.cfg.MaxBackups {
		return
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].t.After(files[j].t) // 新的在前
	})
	for _, fi := range files[f.cfg.MaxBackups:] {
		_ = os.Remove(fi.name)
	}
}
