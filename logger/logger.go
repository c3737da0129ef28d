package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"moneytrack/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// 组件名称，用于 component 字段
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentLedger   = "ledger"
	ComponentSession  = "session"
	ComponentStorage  = "storage"
	ComponentEvents   = "events"
	ComponentEmail    = "email"
	ComponentMedia    = "media"
	ComponentDatabase = "database"
)

// Init 根据配置初始化全局 zerolog 日志
func Init(cfg config.LogConfig) {
	log.Logger = New(cfg, os.Stdout)
}

// New 创建日志实例，format 为 json 时输出 JSON，否则输出易读的控制台格式
func New(cfg config.LogConfig, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	out := w
	if !strings.EqualFold(cfg.Format, "json") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02 15:04:05", NoColor: true}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// ParseLevel 解析日志级别，无法识别时使用 info
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// Component 返回带 component 字段的子日志
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
