package agent

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ndelia/loom/internal/tools"
)

// ModelTurn is the outcome of a single model round trip.
type ModelTurn struct {
	Text      string
	ToolCalls []ToolCall
}

// ModelClient performs one model round trip over a normalized conversation.
// When onToken is non-nil the provider streams and invokes it for each text
// fragment in order; when nil the full turn is returned in one piece.
type ModelClient interface {
	Turn(ctx context.Context, msgs []Message, defs []tools.Definition, onToken func(string)) (*ModelTurn, error)
}

// AnthropicClient is the production ModelClient backed by the Anthropic API.
type AnthropicClient struct {
	client    *anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropicClient builds a client for the given model name. An empty
// name selects the current Sonnet release.
func NewAnthropicClient(apiKey, model string, maxTokens int) *AnthropicClient {
	m := anthropic.ModelClaudeSonnet4_5_20250929
	if model != "" {
		m = anthropic.Model(model)
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{
		client:    &client,
		model:     m,
		maxTokens: int64(maxTokens),
	}
}

// Turn implements ModelClient.
func (c *AnthropicClient) Turn(ctx context.Context, msgs []Message, defs []tools.Definition, onToken func(string)) (*ModelTurn, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  convertMessages(msgs),
	}
	if len(defs) > 0 {
		params.Tools = convertToolDefs(defs)
	}

	if onToken == nil {
		resp, err := c.client.Messages.New(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("model request failed: %w", err)
		}
		return turnFromContent(resp.Content), nil
	}

	stream := c.client.Messages.NewStreaming(ctx, params)
	msg := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := msg.Accumulate(event); err != nil {
			return nil, fmt.Errorf("accumulating stream event: %w", err)
		}
		switch eventVariant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if deltaVariant.Text != "" {
					onToken(deltaVariant.Text)
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("model stream failed: %w", err)
	}
	return turnFromContent(msg.Content), nil
}

func turnFromContent(content []anthropic.ContentBlockUnion) *ModelTurn {
	turn := &ModelTurn{}
	for _, block := range content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			turn.Text += variant.Text
		case anthropic.ToolUseBlock:
			turn.ToolCalls = append(turn.ToolCalls, ToolCall{
				ID:    variant.ID,
				Name:  variant.Name,
				Input: variant.Input,
			})
		}
	}
	return turn
}

func convertMessages(msgs []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case MsgUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case MsgAssistant:
			blocks := []anthropic.ContentBlockParamUnion{}
			if msg.Content != "" {
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfText: &anthropic.TextBlockParam{Text: msg.Content},
				})
			}
			for _, call := range msg.ToolCalls {
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    call.ID,
						Name:  call.Name,
						Input: call.Input,
					},
				})
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		case MsgTool:
			out = append(out, anthropic.NewUserMessage(anthropic.ContentBlockParamUnion{
				OfToolResult: &anthropic.ToolResultBlockParam{
					ToolUseID: msg.ToolCallID,
					Content: []anthropic.ToolResultBlockParamContentUnion{
						{OfText: &anthropic.TextBlockParam{Text: msg.Content}},
					},
				},
			}))
		}
	}
	return out
}

func convertToolDefs(defs []tools.Definition) []anthropic.ToolUnionParam {
	specs := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		spec := anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        def.Name,
				Description: anthropic.String(def.Description),
			},
		}
		if def.Schema != nil {
			spec.OfTool.InputSchema = anthropic.ToolInputSchemaParam{
				Properties: def.Schema.Properties,
			}
		}
		specs = append(specs, spec)
	}
	return specs
}
