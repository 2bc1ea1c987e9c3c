package agent

import (
	"errors"
	"testing"
)

func TestNormalizeTurns_Roles(t *testing.T) {
	turns := []Turn{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi there"},
		{Role: "tool", Content: "result", Metadata: map[string]any{"toolCallId": "tu_42"}},
		{Role: "system", Content: "legacy result"},
	}

	msgs, err := NormalizeTurns(turns)
	if err != nil {
		t.Fatalf("NormalizeTurns failed: %v", err)
	}
	if len(msgs) != len(turns) {
		t.Fatalf("Expected %d messages, got %d", len(turns), len(msgs))
	}

	if msgs[0].Role != MsgUser || msgs[0].Content != "hello" {
		t.Errorf("Unexpected first message: %+v", msgs[0])
	}
	if msgs[1].Role != MsgAssistant {
		t.Errorf("Expected assistant role, got %q", msgs[1].Role)
	}
	if msgs[2].Role != MsgTool || msgs[2].ToolCallID != "tu_42" {
		t.Errorf("Expected tool message with call ID tu_42, got %+v", msgs[2])
	}
	if msgs[3].Role != MsgTool || msgs[3].ToolCallID != UnknownToolCallID {
		t.Errorf("Expected system turn to map to tool message with unknown call ID, got %+v", msgs[3])
	}
}

func TestNormalizeTurns_Empty(t *testing.T) {
	if _, err := NormalizeTurns(nil); !errors.Is(err, ErrEmptyTurns) {
		t.Errorf("Expected ErrEmptyTurns, got %v", err)
	}
}

func TestNormalizeTurns_UnknownRole(t *testing.T) {
	_, err := NormalizeTurns([]Turn{{Role: "moderator", Content: "x"}})
	if err == nil {
		t.Fatal("Expected error for unknown role")
	}
}

func TestNormalizeTurns_MissingToolCallID(t *testing.T) {
	msgs, err := NormalizeTurns([]Turn{{Role: "tool", Content: "r"}})
	if err != nil {
		t.Fatalf("NormalizeTurns failed: %v", err)
	}
	if msgs[0].ToolCallID != UnknownToolCallID {
		t.Errorf("Expected %q, got %q", UnknownToolCallID, msgs[0].ToolCallID)
	}
}
