package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-chat-go/internal/model"

	"github.com/go-redis/redis/v8"
)

type redisConversationRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewRedisConversationRepository 创建一个以 Redis 为后端的 ConversationRepository。
// 历史以 JSON 数组整体存储在 conversation:{id} 键下，适用于多实例部署共享会话。
// ttl 为 0 时历史永不过期。
func NewRedisConversationRepository(redisClient *redis.Client, ttl time.Duration) ConversationRepository {
	return &redisConversationRepository{redisClient: redisClient, ttl: ttl}
}

func conversationKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s", conversationID)
}

// GetHistory 从 Redis 获取对话历史记录。
func (r *redisConversationRepository) GetHistory(ctx context.Context, conversationID string) ([]model.ChatMessage, error) {
	jsonData, err := r.redisClient.Get(ctx, conversationKey(conversationID)).Result()
	if err == redis.Nil {
		return []model.ChatMessage{}, nil // 还没有历史
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation history: %w", err)
	}
	var messages []model.ChatMessage
	if err := json.Unmarshal([]byte(jsonData), &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation history: %w", err)
	}
	return messages, nil
}

// AppendMessage 读取-追加-整体写回。首次追加即创建该键。
func (r *redisConversationRepository) AppendMessage(ctx context.Context, conversationID string, msg model.ChatMessage) error {
	history, err := r.GetHistory(ctx, conversationID)
	if err != nil {
		return err
	}
	history = append(history, msg)

	jsonData, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation history: %w", err)
	}
	if err := r.redisClient.Set(ctx, conversationKey(conversationID), jsonData, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set conversation history: %w", err)
	}
	return nil
}

// ClearHistory 删除整个会话键。键不存在时 Del 也会成功，天然幂等。
func (r *redisConversationRepository) ClearHistory(ctx context.Context, conversationID string) error {
	if err := r.redisClient.Del(ctx, conversationKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("failed to clear conversation history: %w", err)
	}
	return nil
}
