// Package logger 提供统一的日志框架
package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger zerolog.Logger
)

// Level 日志级别
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config 日志配置
type Config struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"` // json/console
	Output     string `yaml:"output" json:"output"` // stdout/stderr/file
	FilePath   string `yaml:"file_path,omitempty" json:"file_path,omitempty"`
	TimeFormat string `yaml:"time_format,omitempty" json:"time_format,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// Init 初始化日志器
func Init(cfg Config) {
	once.Do(func() {
		level := parseLevel(cfg.Level)
		zerolog.SetGlobalLevel(level)

		var output io.Writer
		switch cfg.Output {
		case "stderr":
			output = os.Stderr
		case "file":
			if cfg.FilePath != "" {
				f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
				if err == nil {
					output = f
				} else {
					output = os.Stdout
				}
			} else {
				output = os.Stdout
			}
		default:
			output = os.Stdout
		}

		if cfg.Format == "console" {
			output = zerolog.ConsoleWriter{
				Out:        output,
				TimeFormat: cfg.TimeFormat,
			}
		}

		logger = zerolog.New(output).With().Timestamp().Logger()
	})
}

// parseLevel 解析日志级别
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get 获取日志器
func Get() *zerolog.Logger {
	// 未显式初始化时使用默认配置
	Init(DefaultConfig())
	return &logger
}

// ctxKey 上下文键
type ctxKey string

// RequestIDKey 请求ID在上下文中的键
const RequestIDKey ctxKey = "request_id"

// WithRequestID 将请求ID写入上下文
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestID 从上下文读取请求ID
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// WithContext 从上下文创建日志器
func WithContext(ctx context.Context) *zerolog.Logger {
	l := Get().With().Logger()

	// 添加请求ID
	if reqID := RequestID(ctx); reqID != "" {
		l = l.With().Str("request_id", reqID).Logger()
	}

	return &l
}

// Debug 记录调试日志
func Debug() *zerolog.Event {
	return Get().Debug()
}

// Info 记录信息日志
func Info() *zerolog.Event {
	return Get().Info()
}

// Warn 记录警告日志
func Warn() *zerolog.Event {
	return Get().Warn()
}

// Error 记录错误日志
func Error() *zerolog.Event {
	return Get().Error()
}

// Fatal 记录致命错误日志
func Fatal() *zerolog.Event {
	return Get().Fatal()
}

// WithError 添加错误信息
func WithError(err error) *zerolog.Event {
	return Get().Error().Err(err)
}

// WithField 添加字段
func WithField(key string, value interface{}) *zerolog.Logger {
	l := Get().With().Interface(key, value).Logger()
	return &l
}

// WithFields 添加多个字段
func WithFields(fields map[string]interface{}) *zerolog.Logger {
	ctx := Get().With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	l := ctx.Logger()
	return &l
}

// PlannerLogger 排班引擎专用日志器
type PlannerLogger struct {
	base *zerolog.Logger
}

// NewPlannerLogger 创建排班引擎日志器
func NewPlannerLogger() *PlannerLogger {
	l := Get().With().Str("component", "planner").Logger()
	return &PlannerLogger{base: &l}
}

// NewPlannerLoggerFrom 基于给定日志器创建排班引擎日志器
func NewPlannerLoggerFrom(base zerolog.Logger) *PlannerLogger {
	l := base.With().Str("component", "planner").Logger()
	return &PlannerLogger{base: &l}
}

// StartPlan 记录排班开始
func (l *PlannerLogger) StartPlan(weekStart, mode string, employees, days, required int) {
	l.base.Info().
		Str("week_start", weekStart).
		Str("mode", mode).
		Int("employees", employees).
		Int("days", days).
		Int("required", required).
		Msg("开始生成周排班")
}

// PhaseComplete 记录阶段完成
func (l *PlannerLogger) PhaseComplete(phase string, changes, shortage, surplus int) {
	l.base.Debug().
		Str("phase", phase).
		Int("changes", changes).
		Int("shortage", shortage).
		Int("surplus", surplus).
		Msg("排班阶段完成")
}

// Move 记录一次调班
func (l *PlannerLogger) Move(phase, employeeID, from, to string) {
	l.base.Debug().
		Str("phase", phase).
		Str("employee_id", employeeID).
		Str("from", from).
		Str("to", to).
		Msg("调班")
}

// ExtraDay 记录一次第六天加班
func (l *PlannerLogger) ExtraDay(phase, employeeID, date string) {
	l.base.Debug().
		Str("phase", phase).
		Str("employee_id", employeeID).
		Str("date", date).
		Msg("安排第六个工作日")
}

// InvariantViolation 记录硬性约束违反
func (l *PlannerLogger) InvariantViolation(invariant, details string) {
	l.base.Error().
		Str("invariant", invariant).
		Str("details", details).
		Msg("排班结果违反硬性约束")
}

// PlanComplete 记录排班完成
func (l *PlannerLogger) PlanComplete(weekStart string, duration time.Duration, assignments, shortage int) {
	l.base.Info().
		Str("week_start", weekStart).
		Dur("duration", duration).
		Int("assignments", assignments).
		Int("shortage", shortage).
		Msg("周排班生成完成")
}
