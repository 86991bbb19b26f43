// Package whisper 使用whisper.cpp实现识别引擎
//
// whisper.cpp的Go绑定里，同一个Model创建的所有Context共享一份原生推理状态，
// 不能并发识别。因此每个识别器单独加载一份模型，会话之间不共享任何原生状态，
// 代价是每个会话占用一份模型内存。
package whisper

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/rs/zerolog"

	"whisper_streaming/internal/engine"
)

// Engine 记录模型路径和识别参数，为每个会话加载独立的模型
type Engine struct {
	mu     sync.Mutex
	path   string
	params engine.Params
	log    zerolog.Logger
	closed bool
}

// Load 检查模型文件能否加载，模型不存在或无法读取时返回错误，服务不能在没有模型的情况下启动
func Load(path string, params engine.Params, log zerolog.Logger) (*Engine, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("打开模型文件失败: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("打开模型文件失败: %s 是目录", path)
	}

	model, err := whisper.New(path)
	if err != nil {
		return nil, fmt.Errorf("读取模型文件失败 %q: %w", path, err)
	}
	multilingual := model.IsMultilingual()
	if err := model.Close(); err != nil {
		return nil, fmt.Errorf("释放模型失败: %w", err)
	}

	log.Info().
		Str("path", path).
		Int64("size_mb", info.Size()/1024/1024).
		Bool("multilingual", multilingual).
		Msg("模型检查完成，每个会话单独加载")

	return &Engine{path: path, params: params, log: log}, nil
}

// NewRecognizer 为会话加载一份独立的模型并创建上下文
func (e *Engine) NewRecognizer() (engine.Recognizer, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, engine.ErrClosed
	}

	model, err := whisper.New(e.path)
	if err != nil {
		return nil, fmt.Errorf("加载模型失败 %q: %w", e.path, err)
	}

	ctx, err := model.NewContext()
	if err != nil {
		model.Close()
		return nil, fmt.Errorf("创建识别上下文失败: %w", err)
	}
	if err := configure(ctx, e.params); err != nil {
		e.log.Warn().Err(err).Str("language", e.params.Language).Msg("设置识别参数失败")
	}

	return &Recognizer{model: model, ctx: ctx}, nil
}

// Close 停止创建新的识别器，已创建的识别器由各自的会话释放
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// configure 应用识别参数，贪心采样、关闭温度回退
func configure(ctx whisper.Context, p engine.Params) error {
	if p.Threads > 0 {
		ctx.SetThreads(p.Threads)
	}
	if p.MaxTokens > 0 {
		ctx.SetMaxTokensPerSegment(p.MaxTokens)
	}
	ctx.SetTranslate(p.Translate)
	ctx.SetTemperatureFallback(p.TemperatureFallback)

	if p.Language != "" {
		if err := ctx.SetLanguage(p.Language); err != nil {
			return fmt.Errorf("设置语言 %q: %w", p.Language, err)
		}
	}
	return nil
}

// Recognizer 单个会话独占的模型和上下文
type Recognizer struct {
	mu    sync.Mutex
	model whisper.Model
	ctx   whisper.Context
}

// Transcribe 执行一次完整识别并拼接所有片段
func (r *Recognizer) Transcribe(samples []float32) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx == nil {
		return "", engine.ErrClosed
	}

	if err := r.ctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper识别失败: %w", err)
	}

	var text strings.Builder
	for {
		segment, err := r.ctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("读取识别片段失败: %w", err)
		}
		text.WriteString(segment.Text)
	}

	return text.String(), nil
}

// Close 释放会话的模型，可重复调用
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.model == nil {
		return nil
	}
	err := r.model.Close()
	r.model = nil
	r.ctx = nil
	return err
}
