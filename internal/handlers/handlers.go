package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"whisper_streaming/internal/stream"
)

// RegisterRoutes 注册所有路由
func RegisterRoutes(r *gin.Engine, registry *stream.Registry) {
	// 健康检查路由
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "whisper_streaming",
		})
	})

	// 会话统计
	r.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"active_sessions": registry.Len(),
			"sessions":        registry.Stats(),
		})
	})
}
