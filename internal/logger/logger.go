// Package logger 基于zerolog创建结构化日志
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"whisper_streaming/internal/config"
)

// New 根据配置创建日志器
func New(cfg config.LogConfig) (zerolog.Logger, error) {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter 创建输出到指定writer的日志器
func NewWithWriter(cfg config.LogConfig, out io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), err
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.DateTime,
			NoColor:    true,
		}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}
