package agent

import (
	"encoding/json"
	"strings"

	"github.com/ndelia/loom/internal/domain"
)

// ToolInvocationRecord tracks one tool call from request to completion.
type ToolInvocationRecord struct {
	ID        string
	Name      string
	Input     json.RawMessage
	Result    string
	completed bool
}

// Session carries the mutable state of a single agent run: the growing
// model conversation, the iteration count, tool invocation records, and
// the accumulated assistant text. It is confined to one goroutine.
type Session struct {
	chatPageID    string
	messages      []Message
	iterations    int
	invocations   []*ToolInvocationRecord
	assistantText strings.Builder

	completed     bool
	userPersisted bool
	finalized     bool
}

// NewSession starts a run for the given chat page over normalized history.
func NewSession(chatPageID string, msgs []Message) *Session {
	return &Session{chatPageID: chatPageID, messages: msgs}
}

// ChatPageID returns the conversation this run belongs to.
func (s *Session) ChatPageID() string { return s.chatPageID }

// Iterations returns the number of model round trips taken so far.
func (s *Session) Iterations() int { return s.iterations }

// Completed reports whether the run reached its terminal success state.
// Cancelled and failed runs leave it false so partial assistant output is
// never treated as a finished reply.
func (s *Session) Completed() bool { return s.completed }

// beginInvocation records a tool call announced to the client.
func (s *Session) beginInvocation(call ToolCall) {
	s.invocations = append(s.invocations, &ToolInvocationRecord{
		ID:    call.ID,
		Name:  call.Name,
		Input: call.Input,
	})
}

// completeInvocation attaches a result to the oldest unmatched record with
// the same tool name.
func (s *Session) completeInvocation(name, result string) {
	for _, rec := range s.invocations {
		if rec.Name == name && !rec.completed {
			rec.Result = result
			rec.completed = true
			return
		}
	}
}

// AssistantText returns the assistant output accumulated across all model
// round trips of this run.
func (s *Session) AssistantText() string {
	return s.assistantText.String()
}

// Invocations returns the tool calls of this run in start order, shaped
// for message metadata. Incomplete records carry an empty result.
func (s *Session) Invocations() []domain.ToolInvocation {
	if len(s.invocations) == 0 {
		return nil
	}
	out := make([]domain.ToolInvocation, 0, len(s.invocations))
	for _, rec := range s.invocations {
		var args any
		if len(rec.Input) > 0 {
			if err := json.Unmarshal(rec.Input, &args); err != nil {
				args = string(rec.Input)
			}
		}
		out = append(out, domain.ToolInvocation{
			Name:   rec.Name,
			Input:  args,
			Result: rec.Result,
		})
	}
	return out
}
