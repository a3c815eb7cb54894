// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"ai-chat-go/internal/service"
	"ai-chat-go/pkg/llm"
	"ai-chat-go/pkg/log"
	"ai-chat-go/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 跨域统一交给 CORS 中间件处理
	},
}

const upstreamErrorMessage = "AI服务暂时不可用，请稍后重试"

// prompt 长度上限（按字符数），与绑定标签 max=1000 的计数方式一致
const maxPromptChars = 1000

// ChatHandler 负责处理聊天相关的 API 请求。
type ChatHandler struct {
	chatService service.ChatService
	metrics     *metrics.ChatMetrics
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, m *metrics.ChatMetrics) *ChatHandler {
	return &ChatHandler{chatService: chatService, metrics: m}
}

// ChatRequest 定义了聊天 API 的请求体结构。
type ChatRequest struct {
	Prompt         string `json:"prompt" binding:"required,max=1000"`
	ConversationID string `json:"conversationID" binding:"required,uuid"`
}

// ResetRequest 定义了重置 API 的请求体结构。
type ResetRequest struct {
	ConversationID string `json:"conversationID" binding:"required,uuid"`
}

// HandleChat 处理一轮非流式聊天请求。
func (h *ChatHandler) HandleChat(c *gin.Context) {
	var req ChatRequest
	if !bindChatJSON(c, &req) {
		return
	}

	reply, err := h.chatService.GetChatReply(c.Request.Context(), req.ConversationID, req.Prompt)
	if err != nil {
		if errors.Is(err, service.ErrEmptyPrompt) {
			c.JSON(http.StatusBadRequest, validationErrorBody("prompt", "Prompt is required."))
			return
		}
		log.Errorf("HandleChat: chat turn failed: %v", err)
		h.metrics.ObserveTurn("complete", metrics.OutcomeUpstreamError)
		c.JSON(http.StatusInternalServerError, gin.H{"error": upstreamErrorMessage})
		return
	}

	h.metrics.ObserveTurn("complete", metrics.OutcomeSuccess)
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

// streamEvent 是 SSE 下发的单条分块记录。
type streamEvent struct {
	Text string `json:"text"`
}

// HandleChatStream 处理一轮流式聊天请求，以 Server-Sent Events 下发分块。
func (h *ChatHandler) HandleChatStream(c *gin.Context) {
	var req ChatRequest
	if !bindChatJSON(c, &req) {
		return
	}

	w := &sseWriter{c: c}
	err := h.chatService.StreamChatReply(c.Request.Context(), req.ConversationID, req.Prompt, func(fragment string) error {
		if err := w.WriteFragment(fragment); err != nil {
			return err
		}
		h.metrics.ObserveFragment()
		return nil
	})

	if err != nil {
		if errors.Is(err, service.ErrEmptyPrompt) {
			c.JSON(http.StatusBadRequest, validationErrorBody("prompt", "Prompt is required."))
			return
		}
		log.Errorf("HandleChatStream: chat turn failed: %v", err)
		if !w.started {
			// 流还没开始传输，可以退回结构化错误响应
			h.metrics.ObserveTurn("stream", metrics.OutcomeUpstreamError)
			c.JSON(http.StatusInternalServerError, gin.H{"error": upstreamErrorMessage})
			return
		}
		// 响应已经开始传输，只能用终止哨兵确定性地结束流
		if errors.Is(err, llm.ErrUpstream) {
			h.metrics.ObserveTurn("stream", metrics.OutcomeUpstreamError)
		} else {
			h.metrics.ObserveTurn("stream", metrics.OutcomeClientAbort)
		}
		w.WriteDone()
		return
	}

	h.metrics.ObserveTurn("stream", metrics.OutcomeSuccess)
	w.WriteDone()
}

// HandleReset 处理重置会话历史的请求，幂等。
func (h *ChatHandler) HandleReset(c *gin.Context) {
	var req ResetRequest
	if !bindChatJSON(c, &req) {
		return
	}

	if err := h.chatService.ResetChat(c.Request.Context(), req.ConversationID); err != nil {
		log.Errorf("HandleReset: failed to clear history: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Chat history cleared"})
}

// sseWriter 将分块包装为 SSE 记录写到响应上。
// 响应头在第一条记录写出前才提交，之前仍可改发 JSON 错误。
type sseWriter struct {
	c       *gin.Context
	started bool
}

func (w *sseWriter) start() {
	header := w.c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no") // 关闭 nginx 缓冲
	w.started = true
}

// WriteFragment 写出一条 data: {"text":...} 记录并立即刷出。
func (w *sseWriter) WriteFragment(fragment string) error {
	if !w.started {
		w.start()
	}
	payload, err := json.Marshal(streamEvent{Text: fragment})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w.c.Writer, "data: %s\n\n", payload); err != nil {
		return err
	}
	w.c.Writer.Flush()
	return nil
}

// WriteDone 写出终止哨兵。无论本轮成败，流一旦开始就必须以它收尾。
func (w *sseWriter) WriteDone() {
	if !w.started {
		w.start()
	}
	if _, err := fmt.Fprint(w.c.Writer, "data: [DONE]\n\n"); err != nil {
		log.Debugf("failed to write stream sentinel: %v", err)
		return
	}
	w.c.Writer.Flush()
}

// wsChatRequest 是 WebSocket 通道上的一轮聊天请求。
type wsChatRequest struct {
	Prompt         string `json:"prompt"`
	ConversationID string `json:"conversationID"`
}

// HandleWebSocket 在一条 WebSocket 连接上处理多轮聊天。
// 客户端发送 {"prompt":...,"conversationID":...}，服务端逐块下发 {"chunk":...}，
// 每轮以 {"type":"completion",...} 通知收尾。
func (h *ChatHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立: %s", c.ClientIP())

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			break
		}

		var req wsChatRequest
		if err := json.Unmarshal(message, &req); err != nil {
			writeWSError(conn, "无效的请求负载")
			continue
		}
		if !isValidUUID(req.ConversationID) {
			writeWSError(conn, "Invalid Conversation ID")
			continue
		}
		if utf8.RuneCountInString(req.Prompt) > maxPromptChars {
			writeWSError(conn, "Prompt is too long (max 1000 characters)")
			continue
		}

		err = h.chatService.StreamChatReply(c.Request.Context(), req.ConversationID, req.Prompt, func(fragment string) error {
			h.metrics.ObserveFragment()
			payload, _ := json.Marshal(map[string]string{"chunk": fragment})
			return conn.WriteMessage(websocket.TextMessage, payload)
		})
		if err != nil {
			if errors.Is(err, service.ErrEmptyPrompt) {
				writeWSError(conn, "Prompt is required.")
				continue
			}
			log.Errorf("处理流式响应失败: %v", err)
			h.metrics.ObserveTurn("ws", metrics.OutcomeUpstreamError)
			writeWSError(conn, upstreamErrorMessage)
			// 错误时也发送 completion 通知，让客户端本轮确定性收尾
			sendWSCompletion(conn)
			break
		}

		h.metrics.ObserveTurn("ws", metrics.OutcomeSuccess)
		sendWSCompletion(conn)
	}
}

func writeWSError(conn *websocket.Conn, msg string) {
	payload, _ := json.Marshal(map[string]string{"error": msg})
	_ = conn.WriteMessage(websocket.TextMessage, payload)
}

// sendWSCompletion 发送完成通知 JSON。
func sendWSCompletion(conn *websocket.Conn) {
	notif := map[string]interface{}{
		"type":      "completion",
		"status":    "finished",
		"message":   "响应已完成",
		"timestamp": time.Now().UnixMilli(),
		"date":      time.Now().Format("2006-01-02T15:04:05"),
	}
	payload, _ := json.Marshal(notif)
	_ = conn.WriteMessage(websocket.TextMessage, payload)
}
