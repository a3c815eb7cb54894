package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler 提供部署探活接口。
type HealthHandler struct {
	startedAt time.Time
}

// NewHealthHandler 创建一个新的 HealthHandler。
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{startedAt: time.Now()}
}

// Health 返回服务状态与运行时长（秒）。
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(h.startedAt).Seconds(),
	})
}

// Hello 是一个简单的连通性检查接口。
func (h *HealthHandler) Hello(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Hello World !"})
}
