// Package model 包含了应用的数据模型定义。
package model

import "time"

// 对话消息的角色。约定使用上消息按 user/assistant 交替出现，
// 但存储层只保证追加顺序，不强制交替。
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage 代表一个对话中的单条消息。
type ChatMessage struct {
	Role      string    `json:"role"` // "user" 或 "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
