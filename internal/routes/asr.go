package routes

import (
	"github.com/gin-gonic/gin"

	"whisper_streaming/internal/handlers"
	"whisper_streaming/internal/services/ws"
)

// RegisterASRRoutes 初始化ASR相关路由
func RegisterASRRoutes(engine *gin.Engine, server *ws.ASRServer) {
	handlers.NewASRHandler(server).RegisterRoutes(engine)
}
