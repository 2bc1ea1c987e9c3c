package domain

import (
	"time"
)

// Message roles as stored. A persisted message is immutable; an in-progress
// assistant turn is accumulated in memory and only written once sealed.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one persisted conversation turn.
type Message struct {
	ID         string         `json:"id"`
	ChatPageID string         `json:"chatPageId"`
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// ToolInvocation records one tool call made while producing an assistant
// message. Stored under the message's metadata as an ordered list.
type ToolInvocation struct {
	Name   string `json:"name"`
	Input  any    `json:"args"`
	Result string `json:"result,omitempty"`
}
