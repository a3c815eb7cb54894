// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"ai-chat-go/internal/model"
	"ai-chat-go/internal/repository"
	"ai-chat-go/pkg/llm"
	"ai-chat-go/pkg/log"
)

// ErrEmptyPrompt 表示去除首尾空白后 prompt 为空。校验失败发生在任何历史写入之前。
var ErrEmptyPrompt = errors.New("prompt is empty after trimming")

// DefaultEmptyReplyPlaceholder 在模型一个分块都没产出时落库的占位文本。
const DefaultEmptyReplyPlaceholder = "（未收到模型回复）"

// ChatService 定义了一轮聊天的编排接口。
type ChatService interface {
	// GetChatReply 处理一轮非流式聊天：追加用户消息、调用模型、落库助手消息。
	// 模型调用失败时用户消息保留、助手消息不落库（提交是不对称的，刻意如此）。
	GetChatReply(ctx context.Context, conversationID, prompt string) (string, error)
	// StreamChatReply 处理一轮流式聊天，每收到一个分块立即交给 sink。
	// sink 返回错误（如客户端断开）或上游中途失败时，停止拉取且不落库助手消息；
	// 已交付给 sink 的分块不会被撤回。
	StreamChatReply(ctx context.Context, conversationID, prompt string, sink func(fragment string) error) error
	// ResetChat 清空一个会话的历史，幂等。
	ResetChat(ctx context.Context, conversationID string) error
}

type chatService struct {
	llmClient        llm.Client
	conversationRepo repository.ConversationRepository
	placeholder      string
}

// NewChatService 创建一个新的 ChatService 实例。
// placeholder 为空时使用 DefaultEmptyReplyPlaceholder。
func NewChatService(llmClient llm.Client, conversationRepo repository.ConversationRepository, placeholder string) ChatService {
	if placeholder == "" {
		placeholder = DefaultEmptyReplyPlaceholder
	}
	return &chatService{
		llmClient:        llmClient,
		conversationRepo: conversationRepo,
		placeholder:      placeholder,
	}
}

// GetChatReply 协调一轮非流式聊天。
func (s *chatService) GetChatReply(ctx context.Context, conversationID, prompt string) (string, error) {
	history, err := s.beginTurn(ctx, conversationID, prompt)
	if err != nil {
		return "", err
	}

	reply, err := s.llmClient.Complete(ctx, toLLMMessages(history), nil)
	if err != nil {
		// 用户消息已落库，不回滚
		return "", err
	}

	s.persistAssistantTurn(conversationID, reply)
	return reply, nil
}

// StreamChatReply 协调一轮流式聊天。
func (s *chatService) StreamChatReply(ctx context.Context, conversationID, prompt string, sink func(fragment string) error) error {
	history, err := s.beginTurn(ctx, conversationID, prompt)
	if err != nil {
		return err
	}

	stream, err := s.llmClient.Stream(ctx, toLLMMessages(history), nil)
	if err != nil {
		return err
	}
	defer stream.Close()

	var answer strings.Builder
	for {
		fragment, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			// 中途失败：此前的分块已经交付出去，但本轮不落库助手消息
			return err
		}
		answer.WriteString(fragment)
		if err := sink(fragment); err != nil {
			// 客户端中断：停止拉取，不落库
			return fmt.Errorf("failed to deliver fragment: %w", err)
		}
	}

	finalText := answer.String()
	if finalText == "" {
		finalText = s.placeholder
	}
	s.persistAssistantTurn(conversationID, finalText)
	return nil
}

// ResetChat 清空会话历史。
func (s *chatService) ResetChat(ctx context.Context, conversationID string) error {
	return s.conversationRepo.ClearHistory(ctx, conversationID)
}

// beginTurn 校验 prompt、落库用户消息并返回包含本条消息的完整历史。
func (s *chatService) beginTurn(ctx context.Context, conversationID, prompt string) ([]model.ChatMessage, error) {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return nil, ErrEmptyPrompt
	}

	userMsg := model.ChatMessage{
		Role:      model.RoleUser,
		Content:   trimmed,
		Timestamp: time.Now(),
	}
	if err := s.conversationRepo.AppendMessage(ctx, conversationID, userMsg); err != nil {
		return nil, fmt.Errorf("failed to append user message: %w", err)
	}

	history, err := s.conversationRepo.GetHistory(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}
	return history, nil
}

// persistAssistantTurn 落库助手消息。
// 使用后台上下文：即使原始请求已被取消，成功生成的回复也应当保存；
// 保存失败只记日志，不影响已经交付给客户端的响应。
func (s *chatService) persistAssistantTurn(conversationID, text string) {
	msg := model.ChatMessage{
		Role:      model.RoleAssistant,
		Content:   text,
		Timestamp: time.Now(),
	}
	if err := s.conversationRepo.AppendMessage(context.Background(), conversationID, msg); err != nil {
		log.Errorf("Failed to save assistant message: %v", err)
	}
}

func toLLMMessages(history []model.ChatMessage) []llm.Message {
	msgs := make([]llm.Message, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}
	return msgs
}
