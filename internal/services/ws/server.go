// Package ws 提供流式识别的WebSocket服务
package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"whisper_streaming/internal/config"
	"whisper_streaming/internal/metrics"
	"whisper_streaming/internal/stream"
	"whisper_streaming/internal/types"
)

// ASRServer 处理流式识别的WebSocket服务器
//
// 每个连接在读循环开始前注册会话，连接结束时无论原因都会注销会话。
// 同一连接的消息在自己的goroutine中顺序处理。
type ASRServer struct {
	Config       *config.Config
	Upgrader     websocket.Upgrader
	Registry     *stream.Registry
	Metrics      *metrics.Metrics
	Mu           sync.Mutex
	LastActivity map[*websocket.Conn]time.Time

	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewASRServer 创建新的ASR服务器实例
func NewASRServer(cfg *config.Config, registry *stream.Registry, m *metrics.Metrics, log zerolog.Logger) *ASRServer {
	ctx, cancel := context.WithCancel(context.Background())

	server := &ASRServer{
		Config: cfg,
		Upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 不做来源和身份校验
			},
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   cfg.WebSocket.ReadBufferSize,
			WriteBufferSize:  cfg.WebSocket.WriteBufferSize,
		},
		Registry:     registry,
		Metrics:      m,
		LastActivity: make(map[*websocket.Conn]time.Time),
		log:          log,
		ctx:          ctx,
		cancel:       cancel,
	}

	// 启动心跳检查
	go server.heartbeatChecker()

	return server
}

// heartbeatChecker 定期发送ping并关闭超时的连接
func (s *ASRServer) heartbeatChecker() {
	ticker := time.NewTicker(s.Config.WebSocket.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}

		s.Mu.Lock()
		now := time.Now()
		for conn, lastActivity := range s.LastActivity {
			if now.Sub(lastActivity) > s.Config.WebSocket.PongWait {
				s.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("连接超时，关闭连接")
				conn.Close()
				delete(s.LastActivity, conn)
				continue
			}
			deadline := now.Add(s.Config.WebSocket.WriteWait)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.log.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("发送心跳失败")
			}
		}
		s.Mu.Unlock()
	}
}

// updateActivity 更新连接的最后活动时间
func (s *ASRServer) updateActivity(conn *websocket.Conn) {
	s.Mu.Lock()
	s.LastActivity[conn] = time.Now()
	s.Mu.Unlock()
}

// removeActivity 移除连接的活动记录
func (s *ASRServer) removeActivity(conn *websocket.Conn) {
	s.Mu.Lock()
	delete(s.LastActivity, conn)
	s.Mu.Unlock()
}

// HandleConnection 处理WebSocket连接
func (s *ASRServer) HandleConnection(c *gin.Context) {
	s.ServeHTTP(c.Writer, c.Request)
}

// ServeHTTP 升级连接、注册会话并运行读循环
func (s *ASRServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("升级WebSocket连接失败")
		return
	}

	id := uuid.New().String()
	log := s.log.With().Str("conn_id", id).Str("remote", r.RemoteAddr).Logger()

	// 先注册会话再读取消息
	if _, err := s.Registry.Open(id); err != nil {
		log.Error().Err(err).Msg("创建会话失败")
		msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session unavailable")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.Config.WebSocket.WriteWait))
		conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	defer func() {
		cancel()
		s.removeActivity(conn)
		s.Registry.Close(id)
		conn.Close()
	}()

	s.updateActivity(conn)

	// 设置连接属性
	conn.SetReadLimit(s.Config.WebSocket.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(s.Config.WebSocket.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.Config.WebSocket.PongWait))
		s.updateActivity(conn)
		return nil
	})

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("读取WebSocket消息失败")
			}
			break
		}

		conn.SetReadDeadline(time.Now().Add(s.Config.WebSocket.PongWait))
		s.updateActivity(conn)

		if err := s.dispatch(ctx, conn, id, messageType, message, log); err != nil {
			s.Metrics.RecordSendError()
			log.Warn().Err(err).Msg("发送响应失败")
			break
		}
	}
}

// dispatch 处理单条消息，只有发送失败时返回错误
func (s *ASRServer) dispatch(ctx context.Context, conn *websocket.Conn, id string, messageType int, message []byte, log zerolog.Logger) error {
	switch messageType {
	case websocket.TextMessage:
		// 文本消息预留给控制命令
		s.Metrics.RecordMessage(types.WSTextMessage.String())
		log.Debug().Int("bytes", len(message)).Msg("收到文本消息，暂不处理")
		return nil
	case websocket.BinaryMessage:
		s.Metrics.RecordMessage(types.WSBinaryMessage.String())
	default:
		return nil
	}

	session, ok := s.Registry.Get(id)
	if !ok {
		log.Warn().Msg("连接没有对应的会话，忽略消息")
		return nil
	}

	response, err := session.Process(ctx, message)
	if err != nil {
		if errors.Is(err, stream.ErrSessionClosed) {
			log.Debug().Msg("会话已关闭，忽略消息")
			return nil
		}
		return s.write(conn, websocket.TextMessage, []byte(types.ErrorMessage))
	}

	conn.SetWriteDeadline(time.Now().Add(s.Config.WebSocket.WriteWait))
	return conn.WriteJSON(response)
}

// write 带超时写入一条消息
func (s *ASRServer) write(conn *websocket.Conn, messageType int, data []byte) error {
	conn.SetWriteDeadline(time.Now().Add(s.Config.WebSocket.WriteWait))
	return conn.WriteMessage(messageType, data)
}

// Shutdown 停止心跳检查并关闭所有连接
func (s *ASRServer) Shutdown() {
	s.cancel()

	s.Mu.Lock()
	defer s.Mu.Unlock()

	deadline := time.Now().Add(s.Config.WebSocket.WriteWait)
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown")
	for conn := range s.LastActivity {
		conn.WriteControl(websocket.CloseMessage, msg, deadline)
		conn.Close()
		delete(s.LastActivity, conn)
	}
}

// ActiveConnections 当前连接数
func (s *ASRServer) ActiveConnections() int {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return len(s.LastActivity)
}
