package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"whisper_streaming/internal/handlers"
	"whisper_streaming/internal/services/ws"
	"whisper_streaming/internal/stream"
)

// RegisterRoutes 注册所有路由
func RegisterRoutes(r *gin.Engine, server *ws.ASRServer, registry *stream.Registry, metricsHandler http.Handler) {
	handlers.RegisterRoutes(r, registry)

	// 注册ASR路由
	RegisterASRRoutes(r, server)

	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}
}
