// Package log 提供统一的日志接口和实现
// 组件通过构造参数获得 Logger，不依赖全局实例
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger 日志接口
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})

	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger
	WithContext(ctx context.Context) Logger
}

// Config 日志配置
type Config struct {
	Level   string // 日志级别：debug, info, warn, error
	Format  string // 输出格式：text, json
	File    string // 为空则不写文件
	Console bool   // 是否同时输出到 stderr
}

// New 根据配置创建 Logger，返回的 closer 用于关闭日志文件
func New(cfg Config) (Logger, io.Closer, error) {
	l := logrus.New()

	level := cfg.Level
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	l.SetLevel(lvl)

	switch strings.ToLower(cfg.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	default:
		return nil, nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	var (
		writers []io.Writer
		file    *os.File
	)
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err = os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, file)
	}
	if cfg.Console || file == nil {
		writers = append(writers, os.Stderr)
	}
	l.SetOutput(io.MultiWriter(writers...))

	var closer io.Closer = nopCloser{}
	if file != nil {
		closer = file
	}
	return NewLogrusLogger(l), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// ============================================================================
// logrusLogger - 基于 logrus 的 Logger 实现
// ============================================================================

type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger 创建基于 logrus 的 Logger
func NewLogrusLogger(l *logrus.Logger) Logger {
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

func (l *logrusLogger) Debug(args ...interface{}) { l.entry.Debug(args...) }
func (l *logrusLogger) Info(args ...interface{})  { l.entry.Info(args...) }
func (l *logrusLogger) Warn(args ...interface{})  { l.entry.Warn(args...) }
func (l *logrusLogger) Error(args ...interface{}) { l.entry.Error(args...) }

func (l *logrusLogger) Debugf(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

func (l *logrusLogger) Infof(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

func (l *logrusLogger) Warnf(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

func (l *logrusLogger) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

func (l *logrusLogger) WithField(key string, value interface{}) Logger {
	return &logrusLogger{entry: l.entry.WithField(key, value)}
}

func (l *logrusLogger) WithFields(fields map[string]interface{}) Logger {
	return &logrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *logrusLogger) WithError(err error) Logger {
	return &logrusLogger{entry: l.entry.WithError(err)}
}

func (l *logrusLogger) WithContext(ctx context.Context) Logger {
	return &logrusLogger{entry: l.entry.WithContext(ctx)}
}

// ============================================================================
// NopLogger - 静默日志
// ============================================================================

// NopLogger 静默日志，不输出任何内容
type NopLogger struct{}

func (NopLogger) Debug(args ...interface{})                         {}
func (NopLogger) Info(args ...interface{})                          {}
func (NopLogger) Warn(args ...interface{})                          {}
func (NopLogger) Error(args ...interface{})                         {}
func (NopLogger) Debugf(format string, args ...interface{})         {}
func (NopLogger) Infof(format string, args ...interface{})          {}
func (NopLogger) Warnf(format string, args ...interface{})          {}
func (NopLogger) Errorf(format string, args ...interface{})         {}
func (n NopLogger) WithField(key string, value interface{}) Logger  { return n }
func (n NopLogger) WithFields(fields map[string]interface{}) Logger { return n }
func (n NopLogger) WithError(err error) Logger                      { return n }
func (n NopLogger) WithContext(ctx context.Context) Logger          { return n }

// NewNopLogger 创建静默日志
func NewNopLogger() Logger {
	return NopLogger{}
}

// ============================================================================
// TestLogger - 测试日志（输出到 testing.T）
// ============================================================================

// TestingT 测试接口（兼容 *testing.T）
type TestingT interface {
	Log(args ...interface{})
	Logf(format string, args ...interface{})
}

// TestLogger 测试日志，字段以 key=value 形式追加在消息前
type TestLogger struct {
	t      TestingT
	prefix string
}

// NewTestLogger 创建测试日志
func NewTestLogger(t TestingT) Logger {
	return &TestLogger{t: t}
}

func (l *TestLogger) log(level string, msg string) {
	l.t.Log(fmt.Sprintf("[%s]%s %s", level, l.prefix, msg))
}

func (l *TestLogger) Debug(args ...interface{}) { l.log("DEBUG", fmt.Sprint(args...)) }
func (l *TestLogger) Info(args ...interface{})  { l.log("INFO", fmt.Sprint(args...)) }
func (l *TestLogger) Warn(args ...interface{})  { l.log("WARN", fmt.Sprint(args...)) }
func (l *TestLogger) Error(args ...interface{}) { l.log("ERROR", fmt.Sprint(args...)) }

func (l *TestLogger) Debugf(format string, args ...interface{}) {
	l.log("DEBUG", fmt.Sprintf(format, args...))
}

func (l *TestLogger) Infof(format string, args ...interface{}) {
	l.log("INFO", fmt.Sprintf(format, args...))
}

func (l *TestLogger) Warnf(format string, args ...interface{}) {
	l.log("WARN", fmt.Sprintf(format, args...))
}

func (l *TestLogger) Errorf(format string, args ...interface{}) {
	l.log("ERROR", fmt.Sprintf(format, args...))
}

func (l *TestLogger) WithField(key string, value interface{}) Logger {
	return &TestLogger{t: l.t, prefix: fmt.Sprintf("%s %s=%v", l.prefix, key, value)}
}

func (l *TestLogger) WithFields(fields map[string]interface{}) Logger {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	next := Logger(l)
	for _, k := range keys {
		next = next.WithField(k, fields[k])
	}
	return next
}

func (l *TestLogger) WithError(err error) Logger {
	return l.WithField("error", err)
}

func (l *TestLogger) WithContext(ctx context.Context) Logger {
	return l
}
