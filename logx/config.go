package logx

import (
	"io"
	"log/slog"
)

type RotateMode int

const (
	RotateHourly RotateMode = iota // 按小时切
	RotateSize                     // 按大小切
)

type Config struct {
	AppName string     // 应用名，用于文件名前缀
	Level   slog.Level // 最小日志级别

	LogDir string // 日志目录

	// Output 非 nil 时只写它，不落文件（测试、容器内直接打 stdout）
	Output io.Writer

	ConsoleEnabled bool // 是否输出到控制台
	ConsoleColored bool // 控制台是否彩色输出

	Rotate RotateMode // 滚动模式

	// RotateSize 模式用：超过 size 就切新文件
	MaxFileSizeMB int
	// 最多保留多少个历史文件（按修改时间排序）
	MaxBackups int

	// Sync 为 true 时同步写，不经过队列
	Sync bool
	// 异步队列大小（<=0 使用默认 10000）
	QueueSize int
}
