package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dotcommander/storyteller/internal/llm"
	"github.com/dotcommander/storyteller/internal/role"
	"github.com/dotcommander/storyteller/internal/state"
)

// HandoffPrefix starts the name of every handoff tool.
const HandoffPrefix = "transfer_to_"

// Tool is an activity the agent can execute. It receives the state as the
// agent currently sees it and answers with text for the model.
type Tool interface {
	role.Activity
	Call(ctx context.Context, args json.RawMessage, s state.Information) (string, error)
}

// FuncTool adapts a function to Tool.
type FuncTool struct {
	ToolName        string
	ToolDescription string
	Schema          map[string]any
	Fn              func(ctx context.Context, args json.RawMessage, s state.Information) (string, error)
}

func (t FuncTool) Name() string               { return t.ToolName }
func (t FuncTool) Description() string        { return t.ToolDescription }
func (t FuncTool) Parameters() map[string]any { return t.Schema }

func (t FuncTool) Call(ctx context.Context, args json.RawMessage, s state.Information) (string, error) {
	return t.Fn(ctx, args, s)
}

// ObjectSchema builds a JSON schema object from its properties.
func ObjectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// binding is a tool as offered in one run: either an activity or a handoff.
type binding struct {
	name        string
	description string
	parameters  map[string]any
	activity    role.Activity
	target      *Agent
}

func (b binding) spec() llm.Tool {
	params := b.parameters
	if params == nil {
		params = ObjectSchema(map[string]any{})
	}
	return llm.Tool{Name: b.name, Description: b.description, Parameters: params}
}

func (a *Agent) tools(log *slog.Logger) []binding {
	var out []binding
	if !a.supervisor {
		for _, act := range a.Roles.Activities() {
			out = append(out, binding{
				name:        act.Name(),
				description: act.Description(),
				parameters:  act.Parameters(),
				activity:    act,
			})
		}
	}

	for _, protocol := range a.Roles.Protocols() {
		if a.resolver == nil {
			log.Warn("protocol skipped, no resolver", "protocol", protocol)
			continue
		}
		target, ok := a.resolver.Resolve(protocol)
		if !ok {
			log.Warn("protocol skipped, unknown agent", "protocol", protocol)
			continue
		}
		out = append(out, binding{
			name:        HandoffPrefix + protocol,
			description: fmt.Sprintf("Transfiere la conversación a %s.", protocol),
			target:      target,
		})
	}
	return out
}

// callTool resolves one call. Failures become the tool result so the model
// can recover; a handoff also returns the subordinate's update.
func (a *Agent) callTool(ctx context.Context, log *slog.Logger, tools []binding, call llm.ToolCall, s state.Information) (string, *state.Information) {
	var b *binding
	for i := range tools {
		if tools[i].name == call.Name {
			b = &tools[i]
			break
		}
	}
	if b == nil {
		log.Warn("unknown tool requested", "tool", call.Name)
		return fmt.Sprintf("Error: unknown tool %q", call.Name), nil
	}

	args := json.RawMessage(strings.TrimSpace(call.Arguments))
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if !json.Valid(args) {
		log.Warn("invalid tool arguments", "tool", call.Name)
		return fmt.Sprintf("Error: invalid arguments for %s: not valid JSON", call.Name), nil
	}

	if b.target != nil {
		log.Debug("handing off", "to", b.target.Name)
		upd, reply, err := b.target.run(ctx, s.Clone())
		if err != nil {
			log.Warn("handoff failed", "to", b.target.Name, "error", err)
			return fmt.Sprintf("Error: %s failed: %v", b.target.Name, err), nil
		}
		return reply.Content, &upd
	}

	tool, ok := b.activity.(Tool)
	if !ok {
		return fmt.Sprintf("Error: %s cannot be called", call.Name), nil
	}

	start := time.Now()
	result, err := tool.Call(ctx, args, s)
	if err != nil {
		log.Warn("tool failed", "tool", call.Name, "error", err)
		return fmt.Sprintf("Error: %s: %v", call.Name, err), nil
	}
	log.Debug("tool completed", "tool", call.Name, "duration_ms", time.Since(start).Milliseconds())
	return result, nil
}
