// Package config 提供配置加载和管理功能
package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用程序配置结构
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Model     ModelConfig     `yaml:"model"`
	Stream    StreamConfig    `yaml:"stream"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig HTTP服务器配置
type ServerConfig struct {
	Host string `yaml:"host"` // 服务器监听地址
	Port int    `yaml:"port"` // 服务器监听端口
}

// Addr 返回监听地址
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ModelConfig 识别模型配置
type ModelConfig struct {
	Path                string  `yaml:"path"`                 // 模型文件路径
	Language            string  `yaml:"language"`             // 识别语言
	Threads             uint    `yaml:"threads"`              // 推理线程数，0表示自动
	MaxTokens           uint    `yaml:"max_tokens"`           // 每个片段最大token数
	Translate           bool    `yaml:"translate"`            // 是否翻译为英文
	TemperatureFallback float32 `yaml:"temperature_fallback"` // 温度回退步长，0表示禁用
}

// StreamConfig 流式识别配置
type StreamConfig struct {
	SampleRate       int           `yaml:"sample_rate"`       // 模型采样率
	KeepMs           int           `yaml:"keep_ms"`           // 提交时保留的音频(毫秒)
	LengthMs         int           `yaml:"length_ms"`         // 上下文窗口长度(毫秒)
	StepMs           int           `yaml:"step_ms"`           // 客户端发送间隔(毫秒)
	CommitInterval   int           `yaml:"commit_interval"`   // 每多少次识别提交一次
	InferenceTimeout time.Duration `yaml:"inference_timeout"` // 单次识别超时时间，0表示不限制
}

// SamplesKeep 提交时保留的采样数
func (c StreamConfig) SamplesKeep() int {
	return c.KeepMs * c.SampleRate / 1000
}

// SamplesLen 上下文窗口的采样数
func (c StreamConfig) SamplesLen() int {
	return c.LengthMs * c.SampleRate / 1000
}

// WebSocketConfig WebSocket配置
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size"`  // 读缓冲区大小
	WriteBufferSize int           `yaml:"write_buffer_size"` // 写缓冲区大小
	MaxMessageSize  int64         `yaml:"max_message_size"`  // 单条消息最大字节数
	PingPeriod      time.Duration `yaml:"ping_period"`       // 心跳间隔
	PongWait        time.Duration `yaml:"pong_wait"`         // 等待Pong响应的超时时间
	WriteWait       time.Duration `yaml:"write_wait"`        // 写超时时间
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level"`  // 日志级别
	Format string `yaml:"format"` // console 或 json
}

// Option 在默认值之后、验证之前修改配置，用于命令行参数覆盖
type Option func(*Config)

// WithModelPath 覆盖模型路径
func WithModelPath(path string) Option {
	return func(c *Config) {
		if path != "" {
			c.Model.Path = path
		}
	}
}

// WithPort 覆盖监听端口
func WithPort(port int) Option {
	return func(c *Config) {
		if port > 0 {
			c.Server.Port = port
		}
	}
}

// WithLogLevel 覆盖日志级别
func WithLogLevel(level string) Option {
	return func(c *Config) {
		if level != "" {
			c.Log.Level = level
		}
	}
}

// Default 返回默认配置
func Default() *Config {
	cfg := defaults()
	applyDerived(cfg)
	return cfg
}

// Load 从文件加载配置，filename为空时只使用默认值
//
// 文件中的值覆盖默认值，显式写出的0也会保留，例如keep_ms: 0表示不保留重叠。
func Load(filename string, opts ...Option) (*Config, error) {
	config := defaults()
	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	applyDerived(config)
	for _, opt := range opts {
		opt(config)
	}

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return config, nil
}

// defaults 返回解析配置文件前的默认值，依赖其他字段的值留空
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 9002,
		},
		Model: ModelConfig{
			Language:  "en",
			MaxTokens: 32,
		},
		Stream: StreamConfig{
			SampleRate:       16000,
			KeepMs:           200,
			LengthMs:         10000,
			StepMs:           3000,
			InferenceTimeout: 30 * time.Second,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			MaxMessageSize:  4 << 20,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
			WriteWait:       10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// applyDerived 填充为0时需要根据其他字段计算的值
func applyDerived(config *Config) {
	if config.Model.Threads == 0 {
		config.Model.Threads = uint(min(4, runtime.NumCPU()))
	}
	if config.Stream.CommitInterval == 0 && config.Stream.StepMs > 0 {
		config.Stream.CommitInterval = max(1, config.Stream.LengthMs/config.Stream.StepMs-1)
	}
}

// Validate 验证配置是否有效
func Validate(config *Config) error {
	if config.Server.Host == "" {
		return ErrEmptyHost
	}
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return ErrInvalidPort
	}

	if config.Model.Path == "" {
		return ErrEmptyModelPath
	}

	if config.Stream.SampleRate <= 0 {
		return ErrInvalidRate
	}
	if config.Stream.KeepMs < 0 || config.Stream.LengthMs < 0 || config.Stream.StepMs < 0 {
		return ErrInvalidWindow
	}
	if config.Stream.CommitInterval <= 0 {
		return ErrInvalidInterval
	}
	if config.Stream.InferenceTimeout < 0 {
		return ErrInvalidTimeout
	}

	if config.WebSocket.PingPeriod <= 0 || config.WebSocket.PongWait <= 0 || config.WebSocket.WriteWait <= 0 {
		return ErrInvalidHeartbeat
	}

	switch config.Log.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %s", ErrInvalidLogLevel, config.Log.Level)
	}

	return nil
}
