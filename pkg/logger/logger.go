package logger

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 封装了 zerolog.Logger 并包含同步机制
type Logger struct {
	logger zerolog.Logger
	mutex  sync.RWMutex
}

// consoleWriter 用于控制台输出
var consoleWriter = zerolog.ConsoleWriter{
	Out:        os.Stdout,
	TimeFormat: time.RFC3339,
}

// NewLogger 初始化日志系统
func NewLogger(debug bool) *Logger {
	return NewLoggerWithWriter(consoleWriter, debug)
}

// NewLoggerWithWriter 使用指定输出初始化日志，测试中传 io.Discard
func NewLoggerWithWriter(w io.Writer, debug bool) *Logger {
	l := &Logger{}

	// 设置全局日志级别
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	l.logger = newZerolog(zerolog.MultiLevelWriter(w))

	// 设置全局 logger
	log.Logger = l.logger

	return l
}

func newZerolog(w io.Writer) zerolog.Logger {
	return zerolog.New(w).
		With().
		Timestamp().
		Caller().
		Logger()
}

// GetLogger 返回带有上下文的日志记录器
func (l *Logger) GetLogger(component string) zerolog.Logger {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.logger.With().
		Str("component", component).
		Logger()
}

// Base 返回不带组件字段的根日志记录器
func (l *Logger) Base() zerolog.Logger {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.logger
}

// SetLogOutput 设置额外的日志输出（如文件）
func (l *Logger) SetLogOutput(logFilePath string) {
	// 使用 lumberjack 进行日志轮转
	fileWriter := &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    100, // megabytes
		MaxBackups: 3,
		MaxAge:     28,   // days
		Compress:   true, // 压缩旧文件
	}

	multi := zerolog.MultiLevelWriter(consoleWriter, fileWriter)

	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.logger = newZerolog(multi)
	log.Logger = l.logger
}
