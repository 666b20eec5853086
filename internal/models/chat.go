// internal/models/chat.go
package models

import "time"

// ChatRole 聊天角色
type ChatRole string

const (
	ChatRoleUser  ChatRole = "user"
	ChatRoleModel ChatRole = "model"
)

// ChatMessage 聊天记录中的一轮
type ChatMessage struct {
	Role      ChatRole  `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatReply 一次发送的结果
type ChatReply struct {
	Reply   string        `json:"reply"`
	Failed  bool          `json:"failed,omitempty"`
	History []ChatMessage `json:"history"`
}
