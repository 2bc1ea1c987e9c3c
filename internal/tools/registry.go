// Package tools provides the agent's callable capabilities: a fixed registry
// of named tools, each with a declared input schema, a hard timeout and a
// structured failure taxonomy.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/invopop/jsonschema"
)

// FailureKind classifies a tool failure.
type FailureKind string

const (
	FailureTimeout            FailureKind = "timeout"
	FailureNetworkUnreachable FailureKind = "network_unreachable"
	FailureAccessDenied       FailureKind = "access_denied"
	FailureMalformedInput     FailureKind = "malformed_input"
	FailureUpstreamError      FailureKind = "upstream_error"
)

// Failure is a structured tool failure. Failures are returned as values, not
// errors, so the reasoning loop can feed them back to the model as ordinary
// tool output instead of aborting the turn.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// Result is the outcome of one tool call: either Output or Failure is set.
type Result struct {
	Output  string   `json:"output,omitempty"`
	Failure *Failure `json:"failure,omitempty"`
}

// Success builds a successful result.
func Success(output string) Result {
	return Result{Output: output}
}

// Fail builds a failed result.
func Fail(kind FailureKind, format string, args ...any) Result {
	return Result{Failure: &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}}
}

// Payload returns the text handed back to the model: the output on success,
// or a small JSON error object on failure.
func (r Result) Payload() string {
	if r.Failure == nil {
		return r.Output
	}
	raw, err := json.Marshal(map[string]string{
		"error": r.Failure.Message,
		"kind":  string(r.Failure.Kind),
	})
	if err != nil {
		return `{"error":"tool failed"}`
	}
	return string(raw)
}

// Tool is one callable capability.
type Tool interface {
	// Name returns the unique tool name.
	Name() string

	// Description explains to the model when to use the tool.
	Description() string

	// InputSchema declares the tool's input as a JSON schema.
	InputSchema() *jsonschema.Schema

	// Timeout is the hard per-call deadline.
	Timeout() time.Duration

	// Call executes the tool. Implementations must honor ctx cancellation
	// and return failures as values inside Result.
	Call(ctx context.Context, input json.RawMessage) Result
}

// Definition describes a tool for model binding.
type Definition struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
}

// Registry holds the fixed set of tools available to a session. It is
// immutable after construction and safe for concurrent use.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry builds a registry from the given tools.
func NewRegistry(toolList ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(toolList))}
	for _, t := range toolList {
		if _, exists := r.tools[t.Name()]; exists {
			return nil, fmt.Errorf("duplicate tool name %q", t.Name())
		}
		r.tools[t.Name()] = t
		r.order = append(r.order, t.Name())
	}
	return r, nil
}

// Lookup returns the named tool or an error for an unknown name. An unknown
// name is a session-fatal condition, unlike a tool failure.
func (r *Registry) Lookup(name string) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	return t, nil
}

// Definitions returns tool descriptions in registration order.
func (r *Registry) Definitions() []Definition {
	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, Definition{
			Name:        t.Name(),
			Description: t.Description(),
			Schema:      t.InputSchema(),
		})
	}
	return defs
}

// Invoke runs the named tool under its declared timeout. A timed-out call is
// abandoned and reported as a timeout failure, never left hanging. The only
// error returns are an unknown tool name and caller cancellation.
func (r *Registry) Invoke(ctx context.Context, name string, input json.RawMessage) (Result, error) {
	t, err := r.Lookup(name)
	if err != nil {
		return Result{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, t.Timeout())
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		done <- t.Call(callCtx, input)
	}()

	select {
	case res := <-done:
		return res, nil
	case <-callCtx.Done():
		if ctx.Err() != nil {
			// Caller cancelled; the session is being torn down.
			return Result{}, ctx.Err()
		}
		return Fail(FailureTimeout, "tool %q timed out after %s", name, t.Timeout()), nil
	}
}

// ReflectSchema derives a JSON schema from a Go input struct.
func ReflectSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}
