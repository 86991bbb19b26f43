package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"whisper_streaming/internal/services/ws"
)

// ASRHandler WebSocket ASR 处理器
type ASRHandler struct {
	server *ws.ASRServer
}

// NewASRHandler 创建新的 ASR 处理器实例
func NewASRHandler(server *ws.ASRServer) *ASRHandler {
	return &ASRHandler{server: server}
}

// Root 根路径同时接受WebSocket连接和普通请求
func (h *ASRHandler) Root(c *gin.Context) {
	if websocket.IsWebSocketUpgrade(c.Request) {
		h.server.HandleConnection(c)
		return
	}
	c.String(http.StatusOK, "Whisper Streaming Server Running")
}

// RegisterRoutes 注册路由
func (h *ASRHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/", h.Root)
	r.GET("/ws", h.server.HandleConnection)
}
