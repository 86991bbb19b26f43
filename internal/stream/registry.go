package stream

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"whisper_streaming/internal/engine"
	"whisper_streaming/internal/metrics"
	"whisper_streaming/internal/types"
)

// Registry 连接ID到会话的映射，唯一可以创建和销毁会话的地方
type Registry struct {
	sync.RWMutex
	engine   engine.Engine
	opts     Options
	log      zerolog.Logger
	metrics  *metrics.Metrics
	sessions map[string]*Session
}

// NewRegistry 创建会话注册表
func NewRegistry(eng engine.Engine, opts Options, log zerolog.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		engine:   eng,
		opts:     opts,
		log:      log,
		metrics:  m,
		sessions: make(map[string]*Session),
	}
}

// Open 为连接创建会话并注册
func (r *Registry) Open(id string) (*Session, error) {
	r.RLock()
	_, exists := r.sessions[id]
	r.RUnlock()
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, id)
	}

	// 创建识别上下文可能较慢，不持有锁
	recognizer, err := r.engine.NewRecognizer()
	if err != nil {
		return nil, fmt.Errorf("创建识别上下文失败: %w", err)
	}

	r.Lock()
	if _, exists := r.sessions[id]; exists {
		r.Unlock()
		if err := recognizer.Close(); err != nil {
			r.log.Warn().Err(err).Str("session", id).Msg("释放识别上下文失败")
		}
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, id)
	}
	session := NewSession(id, recognizer, r.opts, r.log, r.metrics)
	r.sessions[id] = session
	count := len(r.sessions)
	r.Unlock()

	r.metrics.RecordSessionOpened()
	r.log.Info().Str("session", id).Int("active", count).Msg("会话已创建")

	return session, nil
}

// Get 查找会话
func (r *Registry) Get(id string) (*Session, bool) {
	r.RLock()
	defer r.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Close 注销并关闭会话，会话不存在时返回false
func (r *Registry) Close(id string) bool {
	r.Lock()
	session, ok := r.sessions[id]
	delete(r.sessions, id)
	count := len(r.sessions)
	r.Unlock()

	if !ok {
		return false
	}

	if err := session.Close(); err != nil {
		r.log.Warn().Err(err).Str("session", id).Msg("释放识别上下文失败")
	}
	r.log.Info().Str("session", id).Int("active", count).Msg("会话已销毁")
	return true
}

// Len 当前会话数量
func (r *Registry) Len() int {
	r.RLock()
	defer r.RUnlock()
	return len(r.sessions)
}

// Stats 返回所有会话的统计信息，按ID排序
func (r *Registry) Stats() []types.SessionStats {
	r.RLock()
	stats := make([]types.SessionStats, 0, len(r.sessions))
	for _, s := range r.sessions {
		stats = append(stats, s.Stats())
	}
	r.RUnlock()

	sort.Slice(stats, func(i, j int) bool { return stats[i].ID < stats[j].ID })
	return stats
}

// CloseAll 关闭所有会话，用于服务退出
func (r *Registry) CloseAll() {
	r.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.Unlock()

	var wg sync.WaitGroup
	for id, s := range sessions {
		wg.Add(1)
		go func(id string, s *Session) {
			defer wg.Done()
			if err := s.Close(); err != nil {
				r.log.Warn().Err(err).Str("session", id).Msg("释放识别上下文失败")
			}
		}(id, s)
	}
	wg.Wait()

	if len(sessions) > 0 {
		r.log.Info().Int("count", len(sessions)).Msg("已关闭所有会话")
	}
}
