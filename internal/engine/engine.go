// Package engine 定义语音识别引擎的边界接口
//
// 引擎持有加载后的模型，每个会话通过 NewRecognizer 获得独立的识别上下文。
package engine

import "errors"

// ErrClosed 引擎或识别器已关闭
var ErrClosed = errors.New("engine: closed")

// Params 识别参数
type Params struct {
	Language            string  // 识别语言，"auto"表示自动检测
	Threads             uint    // 推理线程数
	MaxTokens           uint    // 每个片段最大token数
	Translate           bool    // 是否翻译为英文
	TemperatureFallback float32 // 温度回退步长，0表示禁用
}

// Engine 已加载的识别模型
type Engine interface {
	// NewRecognizer 创建新的识别上下文，调用方负责Close
	NewRecognizer() (Recognizer, error)
	// Close 释放模型资源
	Close() error
}

// Recognizer 单个会话独占的识别上下文，不能并发调用
type Recognizer interface {
	// Transcribe 对单声道float32采样执行一次识别，返回所有片段拼接的文本
	Transcribe(samples []float32) (string, error)
	// Close 释放识别上下文
	Close() error
}
