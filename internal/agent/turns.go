package agent

import (
	"encoding/json"
	"fmt"
)

// Turn is one entry of the conversation history as supplied by clients.
// Roles follow the stored message roles; "system" is accepted as a legacy
// alias for tool results.
type Turn struct {
	Role     string         `json:"role"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// MessageRole is the normalized role used on the model boundary.
type MessageRole string

const (
	MsgUser      MessageRole = "user"
	MsgAssistant MessageRole = "assistant"
	MsgTool      MessageRole = "tool"
)

// UnknownToolCallID stands in for tool-result turns whose originating call
// ID was lost. The model treats such results as unattributed context.
const UnknownToolCallID = "unknown"

// Message is a normalized conversation entry ready for the model client.
// ToolCallID is set on tool-result messages; ToolCalls on assistant
// messages that requested tool use.
type Message struct {
	Role       MessageRole
	Content    string
	ToolCallID string
	ToolCalls  []ToolCall
}

// ErrEmptyTurns is returned when a request carries no conversation history.
var ErrEmptyTurns = fmt.Errorf("at least one message is required")

// NormalizeTurns converts client-supplied turns into model messages, one
// output per input in order. Tool and system turns become tool-result
// messages whose call ID is read from metadata.
func NormalizeTurns(turns []Turn) ([]Message, error) {
	if len(turns) == 0 {
		return nil, ErrEmptyTurns
	}
	msgs := make([]Message, 0, len(turns))
	for i, t := range turns {
		switch t.Role {
		case "user":
			msgs = append(msgs, Message{Role: MsgUser, Content: t.Content})
		case "assistant":
			msgs = append(msgs, Message{Role: MsgAssistant, Content: t.Content})
		case "tool", "system":
			msgs = append(msgs, Message{
				Role:       MsgTool,
				Content:    t.Content,
				ToolCallID: toolCallIDFromMetadata(t.Metadata),
			})
		default:
			return nil, fmt.Errorf("message %d: unknown role %q", i, t.Role)
		}
	}
	return msgs, nil
}

func toolCallIDFromMetadata(metadata map[string]any) string {
	if id, ok := metadata["toolCallId"].(string); ok && id != "" {
		return id
	}
	return UnknownToolCallID
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}
