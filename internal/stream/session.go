// Package stream 实现每个连接的流式识别会话
//
// 会话把滑动音频窗口、结果累积器和独占的识别上下文组合在一起。
// 同一会话的消息按顺序处理，识别在会话自己的worker goroutine上执行，
// 任意时刻最多只有一次识别在进行。
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"whisper_streaming/internal/audio"
	"whisper_streaming/internal/engine"
	"whisper_streaming/internal/metrics"
	"whisper_streaming/internal/types"
)

// 会话相关错误
var (
	ErrSessionClosed    = errors.New("会话已关闭")
	ErrSessionExists    = errors.New("会话已存在")
	ErrInference        = errors.New("识别失败")
	ErrInferenceTimeout = errors.New("识别超时")
)

// State 会话状态
type State int32

// 定义会话状态常量
const (
	StateOpen   State = iota // 已创建，尚未收到消息
	StateActive              // 至少处理过一条消息
	StateClosed              // 已关闭，终态
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Options 会话参数
type Options struct {
	SamplesKeep      int           // 提交时保留的采样数
	SamplesLen       int           // 上下文窗口采样数
	CommitInterval   int           // 每多少次识别提交一次
	InferenceTimeout time.Duration // 单次识别超时，0表示不限制
}

type job struct {
	samples []float32
	reply   chan result
}

type result struct {
	text string
	err  error
}

// Session 单个连接的流式识别会话
type Session struct {
	id      string
	opts    Options
	log     zerolog.Logger
	metrics *metrics.Metrics
	created time.Time

	mu     sync.Mutex // 串行化Process和Close
	window *audio.Window
	acc    *Accumulator

	recognizer engine.Recognizer
	jobs       chan job
	done       chan struct{}
	closeOnce  sync.Once
	closeErr   error

	state      atomic.Int32
	iterations atomic.Int64
	committed  atomic.Int64
	tailLen    atomic.Int64
}

// NewSession 创建会话并启动识别worker，会话独占recognizer
func NewSession(id string, recognizer engine.Recognizer, opts Options, log zerolog.Logger, m *metrics.Metrics) *Session {
	s := &Session{
		id:         id,
		opts:       opts,
		log:        log.With().Str("session", id).Logger(),
		metrics:    m,
		created:    time.Now(),
		window:     audio.NewWindow(opts.SamplesKeep, opts.SamplesLen),
		acc:        NewAccumulator(opts.CommitInterval),
		recognizer: recognizer,
		jobs:       make(chan job),
		done:       make(chan struct{}),
	}
	s.state.Store(int32(StateOpen))

	go s.worker()

	return s
}

// worker 顺序执行识别任务
func (s *Session) worker() {
	defer close(s.done)
	for j := range s.jobs {
		text, err := s.recognizer.Transcribe(j.samples)
		j.reply <- result{text: text, err: err}
	}
}

// ID 会话ID
func (s *Session) ID() string {
	return s.id
}

// State 当前状态
func (s *Session) State() State {
	return State(s.state.Load())
}

// Process 处理一条二进制音频消息
//
// 识别失败时返回的错误包含ErrInference或ErrInferenceTimeout，会话保持ACTIVE。
// 失败仍计入识别次数，到达提交点时照常截断历史音频，但不提交任何文本。
func (s *Session) Process(ctx context.Context, payload []byte) (*types.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateClosed {
		return nil, ErrSessionClosed
	}
	s.state.Store(int32(StateActive))

	samples := audio.DecodeFloat32LE(payload)
	truncated := len(payload)%audio.BytesPerSample != 0
	s.metrics.RecordDecoded(len(samples), truncated)
	if truncated {
		s.log.Debug().Int("bytes", len(payload)).Int("samples", len(samples)).Msg("音频负载长度不是4的整数倍，丢弃末尾不完整的采样")
	}

	window := s.window.Push(samples)
	s.tailLen.Store(int64(s.window.Len()))

	text, err := s.infer(ctx, window)
	if err != nil {
		iteration, boundary := s.acc.Skip()
		if boundary {
			s.window.Truncate()
			s.tailLen.Store(int64(s.window.Len()))
		}
		s.iterations.Store(int64(iteration))
		return nil, err
	}

	u := s.acc.Update(text)
	if u.Committed {
		s.window.Truncate()
		s.metrics.RecordCommit()
		s.log.Debug().Int("iteration", u.Iteration).Str("text", text).Msg("提交识别片段")
	}

	s.iterations.Store(int64(u.Iteration))
	s.committed.Store(int64(len(u.Result) - 1))
	if u.Committed {
		s.committed.Add(1)
	}
	s.tailLen.Store(int64(s.window.Len()))

	return &types.Response{Result: u.Result, IsTalking: u.IsTalking}, nil
}

// infer 把窗口交给worker并等待结果
func (s *Session) infer(ctx context.Context, window []float32) (string, error) {
	if s.opts.InferenceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.InferenceTimeout)
		defer cancel()
	}

	start := time.Now()
	reply := make(chan result, 1)

	select {
	case s.jobs <- job{samples: window, reply: reply}:
	case <-ctx.Done():
		return "", s.inferFailed(ctx.Err(), start)
	}

	select {
	case r := <-reply:
		if r.err != nil {
			return "", s.inferFailed(r.err, start)
		}
		s.metrics.RecordInference(time.Since(start).Seconds(), len(window))
		return r.text, nil
	case <-ctx.Done():
		// worker会完成这次识别，结果写入reply后被丢弃
		return "", s.inferFailed(ctx.Err(), start)
	}
}

func (s *Session) inferFailed(err error, start time.Time) error {
	elapsed := time.Since(start)
	if errors.Is(err, context.DeadlineExceeded) {
		s.metrics.RecordInferenceFailure("timeout", elapsed.Seconds())
		s.log.Warn().Dur("elapsed", elapsed).Msg("识别超时")
		return fmt.Errorf("%w: %w", ErrInferenceTimeout, err)
	}
	s.metrics.RecordInferenceFailure("error", elapsed.Seconds())
	s.log.Warn().Err(err).Dur("elapsed", elapsed).Msg("识别失败")
	return fmt.Errorf("%w: %w", ErrInference, err)
}

// Close 关闭会话，等待进行中的识别结束后释放识别上下文，可重复调用
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state.Store(int32(StateClosed))
		close(s.jobs)
		s.mu.Unlock()

		<-s.done
		s.closeErr = s.recognizer.Close()
		s.metrics.RecordSessionClosed(time.Since(s.created).Seconds())
		s.log.Debug().Int64("iterations", s.iterations.Load()).Msg("会话已关闭")
	})
	return s.closeErr
}

// Stats 返回会话统计信息
func (s *Session) Stats() types.SessionStats {
	return types.SessionStats{
		ID:         s.id,
		State:      s.State().String(),
		Iterations: int(s.iterations.Load()),
		Committed:  int(s.committed.Load()),
		TailLen:    int(s.tailLen.Load()),
	}
}

// Committed 返回已提交片段的副本
func (s *Session) Committed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acc.Committed()
}

// Tail 返回当前保留的历史音频副本
func (s *Session) Tail() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window.Tail()
}
