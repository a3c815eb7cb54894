// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"sync"

	"ai-chat-go/internal/model"
)

// ConversationRepository 定义了对话历史记录的操作接口。
// 历史按 conversationID 隔离，消息只允许追加，顺序即会话顺序。
type ConversationRepository interface {
	// GetHistory 返回某个会话的完整消息历史（独立副本）。
	// 未知的 conversationID 返回空切片而不是错误，也不会隐式创建会话。
	GetHistory(ctx context.Context, conversationID string) ([]model.ChatMessage, error)
	// AppendMessage 在会话末尾追加一条消息，首次追加会创建会话。
	AppendMessage(ctx context.Context, conversationID string, msg model.ChatMessage) error
	// ClearHistory 整体删除一个会话及其全部消息，幂等。
	ClearHistory(ctx context.Context, conversationID string) error
}

type memoryConversationRepository struct {
	mu            sync.RWMutex
	conversations map[string][]model.ChatMessage
}

// NewMemoryConversationRepository 创建一个进程内的 ConversationRepository 实例。
// 每个实例拥有自己的数据，互不共享，便于测试隔离。
func NewMemoryConversationRepository() ConversationRepository {
	return &memoryConversationRepository{
		conversations: make(map[string][]model.ChatMessage),
	}
}

// GetHistory 返回会话历史的副本，调用方的修改不会影响存储内容。
func (r *memoryConversationRepository) GetHistory(_ context.Context, conversationID string) ([]model.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	history := r.conversations[conversationID]
	out := make([]model.ChatMessage, len(history))
	copy(out, history)
	return out, nil
}

// AppendMessage 在会话末尾追加一条消息。
func (r *memoryConversationRepository) AppendMessage(_ context.Context, conversationID string, msg model.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conversations[conversationID] = append(r.conversations[conversationID], msg)
	return nil
}

// ClearHistory 删除整个会话。会话不存在时为 no-op。
func (r *memoryConversationRepository) ClearHistory(_ context.Context, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conversations, conversationID)
	return nil
}
