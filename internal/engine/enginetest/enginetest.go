// Package enginetest 提供测试用的识别引擎
package enginetest

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"whisper_streaming/internal/engine"
)

// ErrFailed Recognizer被设置为失败时返回的错误
var ErrFailed = errors.New("enginetest: inference failed")

// TranscribeFunc 自定义识别行为
type TranscribeFunc func(call int, samples []float32) (string, error)

// Engine 记录创建和释放情况的假引擎
type Engine struct {
	// Transcribe 为空时返回 "n=<采样数>"
	Transcribe TranscribeFunc
	// NewErr 非空时 NewRecognizer 返回该错误
	NewErr error
	// BeforeNew 非空时在 NewRecognizer 加锁前调用
	BeforeNew func()
	// CloseErr 非空时识别器的 Close 返回该错误
	CloseErr error

	mu          sync.Mutex
	recognizers []*Recognizer
	closed      bool
}

// NewRecognizer 创建假识别器
func (e *Engine) NewRecognizer() (engine.Recognizer, error) {
	if e.BeforeNew != nil {
		e.BeforeNew()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, engine.ErrClosed
	}
	if e.NewErr != nil {
		return nil, e.NewErr
	}
	r := &Recognizer{fn: e.Transcribe, closeErr: e.CloseErr}
	e.recognizers = append(e.recognizers, r)
	return r, nil
}

// Close 关闭引擎
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Recognizers 返回已创建的识别器
func (e *Engine) Recognizers() []*Recognizer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Recognizer(nil), e.recognizers...)
}

// Open 未释放的识别器数量
func (e *Engine) Open() int {
	n := 0
	for _, r := range e.Recognizers() {
		if !r.Closed() {
			n++
		}
	}
	return n
}

// Recognizer 假识别器
type Recognizer struct {
	fn       TranscribeFunc
	closeErr error

	calls    atomic.Int32
	inflight atomic.Int32
	overlap  atomic.Bool
	closes   atomic.Int32

	mu      sync.Mutex
	windows [][]float32
}

// Transcribe 记录窗口并返回预设结果
func (r *Recognizer) Transcribe(samples []float32) (string, error) {
	if r.inflight.Add(1) > 1 {
		r.overlap.Store(true)
	}
	defer r.inflight.Add(-1)

	if r.closes.Load() > 0 {
		return "", engine.ErrClosed
	}

	call := int(r.calls.Add(1))
	r.mu.Lock()
	r.windows = append(r.windows, append([]float32(nil), samples...))
	r.mu.Unlock()

	if r.fn != nil {
		return r.fn(call, samples)
	}
	return fmt.Sprintf("n=%d", len(samples)), nil
}

// Close 释放识别器
func (r *Recognizer) Close() error {
	r.closes.Add(1)
	return r.closeErr
}

// Calls 已执行的识别次数
func (r *Recognizer) Calls() int {
	return int(r.calls.Load())
}

// Windows 每次识别收到的窗口
func (r *Recognizer) Windows() [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]float32(nil), r.windows...)
}

// Closed 是否已释放
func (r *Recognizer) Closed() bool {
	return r.closes.Load() > 0
}

// CloseCount Close被调用的次数
func (r *Recognizer) CloseCount() int {
	return int(r.closes.Load())
}

// Overlapped 是否出现过并发识别
func (r *Recognizer) Overlapped() bool {
	return r.overlap.Load()
}
