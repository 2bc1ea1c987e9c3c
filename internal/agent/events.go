package agent

// EventType identifies a stream event emitted by the reasoning loop.
type EventType string

const (
	EventToken     EventType = "token"
	EventToolStart EventType = "tool_start"
	EventToolEnd   EventType = "tool_end"
	EventDone      EventType = "done"
	EventError     EventType = "error"
)

// Error codes carried in the data payload of error events so clients can
// distinguish resource exhaustion from upstream model failures.
const (
	codeModelError     = "model_error"
	codeIterationLimit = "iteration_limit"
	codeUnknownTool    = "unknown_tool"
)

// Event is a single frame in the agent event stream. Data holds a payload
// shaped by the event type.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
}

// ToolStartData announces that a tool invocation is about to run.
type ToolStartData struct {
	ToolName string `json:"toolName"`
	Input    any    `json:"input,omitempty"`
}

// ToolEndData carries the serialized result of a completed tool invocation,
// including structured failures that were fed back to the model.
type ToolEndData struct {
	ToolName string `json:"toolName"`
	Output   string `json:"output"`
}

// ErrorData is the payload of a terminal error event.
type ErrorData struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func tokenEvent(text string) *Event {
	return &Event{Type: EventToken, Data: text}
}

func toolStartEvent(name string, input any) *Event {
	return &Event{Type: EventToolStart, Data: ToolStartData{ToolName: name, Input: input}}
}

func toolEndEvent(name, output string) *Event {
	return &Event{Type: EventToolEnd, Data: ToolEndData{ToolName: name, Output: output}}
}

func doneEvent() *Event {
	return &Event{Type: EventDone}
}

func errorEvent(message, code string) *Event {
	return &Event{Type: EventError, Data: ErrorData{Message: message, Code: code}}
}

// Terminal reports whether the event ends the stream. Every run emits at
// most one terminal event, always last.
func (e *Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}
