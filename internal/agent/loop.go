package agent

import (
	"context"
	"encoding/json"
	"iter"
	"log/slog"

	"github.com/ndelia/loom/internal/tools"
)

// loopState tracks where the reasoning loop is in its lifecycle.
type loopState int

const (
	stateAwaitingModel loopState = iota
	stateAwaitingTools
	stateDone
	stateFailed
)

func (s loopState) String() string {
	switch s {
	case stateAwaitingModel:
		return "awaiting_model"
	case stateAwaitingTools:
		return "awaiting_tools"
	case stateDone:
		return "done"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Loop drives the model/tool reasoning cycle for a session.
type Loop struct {
	model         ModelClient
	registry      *tools.Registry
	maxIterations int
}

// NewLoop builds a reasoning loop. maxIterations caps model round trips
// per run.
func NewLoop(model ModelClient, registry *tools.Registry, maxIterations int) *Loop {
	return &Loop{model: model, registry: registry, maxIterations: maxIterations}
}

// Run executes the reasoning cycle for the session and yields events in
// order. When stream is true, model output is surfaced token by token;
// otherwise each round trip arrives whole and no token events are emitted.
//
// Exactly one terminal event (done or error) ends the sequence unless the
// consumer stops early or the context is cancelled, in which case the run
// aborts silently. Tool failures are not terminal: they are serialized
// into the tool_end payload and fed back to the model.
func (l *Loop) Run(ctx context.Context, s *Session, stream bool) iter.Seq[*Event] {
	return func(yield func(*Event) bool) {
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		stopped := false
		emit := func(e *Event) bool {
			if stopped {
				return false
			}
			if !yield(e) {
				stopped = true
				cancel()
				return false
			}
			return true
		}

		state := stateAwaitingModel
		var pending []ToolCall

		for {
			if runCtx.Err() != nil {
				return
			}
			switch state {
			case stateDone, stateFailed:
				return
			case stateAwaitingModel:
				if s.iterations >= l.maxIterations {
					slog.Warn("Agent iteration limit reached",
						"chat_page_id", s.chatPageID, "iterations", s.iterations)
					state = stateFailed
					emit(errorEvent("agent stopped: maximum number of reasoning steps reached", codeIterationLimit))
					continue
				}
				s.iterations++

				var onToken func(string)
				if stream {
					onToken = func(token string) {
						s.assistantText.WriteString(token)
						emit(tokenEvent(token))
					}
				}
				turn, err := l.model.Turn(runCtx, s.messages, l.registry.Definitions(), onToken)
				if err != nil {
					if stopped || runCtx.Err() != nil {
						return
					}
					slog.Error("Model round trip failed",
						"chat_page_id", s.chatPageID, "iteration", s.iterations, "error", err)
					state = stateFailed
					emit(errorEvent(err.Error(), codeModelError))
					continue
				}
				if stopped {
					return
				}
				if !stream {
					s.assistantText.WriteString(turn.Text)
				}

				s.messages = append(s.messages, Message{
					Role:      MsgAssistant,
					Content:   turn.Text,
					ToolCalls: turn.ToolCalls,
				})
				if len(turn.ToolCalls) == 0 {
					state = stateDone
					s.completed = true
					emit(doneEvent())
					continue
				}
				pending = turn.ToolCalls
				state = stateAwaitingTools

			case stateAwaitingTools:
				for _, call := range pending {
					s.beginInvocation(call)
					if !emit(toolStartEvent(call.Name, decodeToolInput(call.Input))) {
						return
					}

					result, err := l.registry.Invoke(runCtx, call.Name, call.Input)
					if err != nil {
						if runCtx.Err() != nil {
							return
						}
						slog.Error("Tool dispatch failed",
							"chat_page_id", s.chatPageID, "tool", call.Name, "error", err)
						state = stateFailed
						emit(errorEvent(err.Error(), codeUnknownTool))
						break
					}
					payload := result.Payload()
					s.completeInvocation(call.Name, payload)
					if !emit(toolEndEvent(call.Name, payload)) {
						return
					}
					s.messages = append(s.messages, Message{
						Role:       MsgTool,
						Content:    payload,
						ToolCallID: call.ID,
					})
				}
				pending = nil
				if state == stateAwaitingTools {
					state = stateAwaitingModel
				}
			}
		}
	}
}

func decodeToolInput(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}
