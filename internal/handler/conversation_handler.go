// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"ai-chat-go/internal/service"
	"ai-chat-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ConversationHandler 处理与对话历史相关的 API 请求。
type ConversationHandler struct {
	service service.ConversationService
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(service service.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// GetConversation 返回一个会话的完整消息历史。未知会话返回空列表。
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	conversationID := c.Query("conversationID")
	if !isValidUUID(conversationID) {
		c.JSON(http.StatusBadRequest, validationErrorBody("conversationID", "Invalid Conversation ID"))
		return
	}

	history, err := h.service.GetConversationHistory(c.Request.Context(), conversationID)
	if err != nil {
		log.Errorf("GetConversation: failed to load history: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve conversation history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversationID": conversationID,
		"messages":       history,
	})
}
