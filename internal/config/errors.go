package config

import "errors"

// 配置相关错误
var (
	ErrEmptyHost        = errors.New("服务器地址不能为空")
	ErrInvalidPort      = errors.New("服务器端口必须在1-65535之间")
	ErrEmptyModelPath   = errors.New("模型文件路径不能为空")
	ErrInvalidRate      = errors.New("采样率必须大于0")
	ErrInvalidWindow    = errors.New("音频窗口参数不能为负数")
	ErrInvalidInterval  = errors.New("提交间隔必须大于0")
	ErrInvalidLogLevel  = errors.New("无效的日志级别")
	ErrInvalidTimeout   = errors.New("超时参数不能为负数")
	ErrInvalidHeartbeat = errors.New("心跳间隔和超时必须大于0")
)
