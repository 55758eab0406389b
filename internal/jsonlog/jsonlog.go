package jsonlog

import (
	"io"
	"os"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Level 日志级别
type Level int8

const (
	LevelInfo Level = iota
	LevelError
	LevelFatal
	LevelOff
)

// String 返回级别的可读名称
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "INFO"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return ""
	}
}

// ParseLevel 解析配置中的级别名称，无法识别时返回 LevelInfo
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	case "off":
		return LevelOff
	default:
		return LevelInfo
	}
}

// Logger 输出一行一个 JSON 对象，底层由 zerolog 负责编码
type Logger struct {
	mu       sync.Mutex
	zl       zerolog.Logger
	minLevel Level
	exit     func(int)
}

// New 创建写到 out 的 Logger，低于 minLevel 的日志被丢弃
func New(out io.Writer, minLevel Level) *Logger {
	return &Logger{
		zl:       zerolog.New(out).With().Timestamp().Logger(),
		minLevel: minLevel,
		exit:     os.Exit,
	}
}

func (l *Logger) PrintInfo(message string, properties map[string]string) {
	l.print(LevelInfo, message, properties)
}

func (l *Logger) PrintError(err error, properties map[string]string) {
	l.print(LevelError, err.Error(), properties)
}

// PrintFatal 记录后以状态码 1 退出
func (l *Logger) PrintFatal(err error, properties map[string]string) {
	l.print(LevelFatal, err.Error(), properties)
	l.exit(1)
}

func (l *Logger) print(level Level, message string, properties map[string]string) {
	if level < l.minLevel {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	event := l.zl.Log().Str("level", level.String())
	if len(properties) > 0 {
		dict := zerolog.Dict()
		for k, v := range properties {
			dict = dict.Str(k, v)
		}
		event = event.Dict("properties", dict)
	}

	// ERROR 及以上附带调用栈
	if level >= LevelError {
		event = event.Str("trace", string(debug.Stack()))
	}

	event.Msg(message)
}

// Write 让 Logger 可以作为 http.Server 的 ErrorLog 输出
func (l *Logger) Write(message []byte) (n int, err error) {
	l.print(LevelError, strings.TrimSpace(string(message)), nil)
	return len(message), nil
}
