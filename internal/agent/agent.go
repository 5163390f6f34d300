// Package agent runs one model-backed participant of an organization: it
// prepares the transcript, calls the model with the tools its roles expose,
// resolves tool calls and hands the reply to a post-processing hook.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dotcommander/storyteller/internal/config"
	"github.com/dotcommander/storyteller/internal/graph"
	"github.com/dotcommander/storyteller/internal/llm"
	"github.com/dotcommander/storyteller/internal/role"
	"github.com/dotcommander/storyteller/internal/state"
)

const defaultMaxToolRounds = 8

// PreFunc builds the messages an agent sends in addition to the transcript.
type PreFunc func(ctx context.Context, s state.Information) ([]llm.Message, error)

// PostFunc turns the final reply into a partial state update.
type PostFunc func(ctx context.Context, s state.Information, reply llm.Message) (state.Information, error)

// Resolver finds the agent a handoff protocol names.
type Resolver interface {
	Resolve(name string) (*Agent, bool)
}

// Registry is the simplest Resolver: agents by name.
type Registry map[string]*Agent

func (r Registry) Resolve(name string) (*Agent, bool) {
	a, ok := r[name]
	return a, ok
}

// Register adds agents under their names.
func (r Registry) Register(agents ...*Agent) {
	for _, a := range agents {
		r[a.Name] = a
	}
}

type Agent struct {
	Name   string
	Roles  *role.Collection
	Model  config.ModelConfig
	Client llm.Client
	Pre    PreFunc
	Post   PostFunc

	resolver      Resolver
	maxToolRounds int
	supervisor    bool
	logger        *slog.Logger
}

type Option func(*Agent)

func WithPre(fn PreFunc) Option {
	return func(a *Agent) {
		a.Pre = fn
	}
}

func WithPost(fn PostFunc) Option {
	return func(a *Agent) {
		a.Post = fn
	}
}

// WithResolver lets the agent hand control to the agents its protocols name.
func WithResolver(r Resolver) Option {
	return func(a *Agent) {
		a.resolver = r
	}
}

func WithMaxToolRounds(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxToolRounds = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

func New(name string, roles *role.Collection, model config.ModelConfig, client llm.Client, opts ...Option) *Agent {
	a := &Agent{
		Name:          name,
		Roles:         roles,
		Model:         model,
		Client:        client,
		maxToolRounds: defaultMaxToolRounds,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "agent", "agent", name)
	return a
}

// NewSupervisor creates an agent that only routes work. It skips the pre,
// permission and post stages and answers through handoffs resolved by r.
func NewSupervisor(name string, roles *role.Collection, model config.ModelConfig, client llm.Client, r Resolver, opts ...Option) *Agent {
	a := New(name, roles, model, client, append(slices.Clone(opts), WithResolver(r))...)
	a.supervisor = true
	return a
}

func (a *Agent) IsSupervisor() bool { return a.supervisor }

// Node adapts the agent to a graph node returning its partial update.
func (a *Agent) Node() graph.NodeFunc[state.Information] {
	return func(ctx context.Context, s state.Information) (state.Information, error) {
		return a.Step(ctx, s)
	}
}

// Invoke runs the agent outside a graph and returns s with the agent's
// update merged in.
func (a *Agent) Invoke(ctx context.Context, s state.Information) (state.Information, error) {
	update, err := a.Step(ctx, s.Clone())
	if err != nil {
		return s, err
	}
	return s.Merge(update), nil
}

// Step runs the agent once and returns only its update.
func (a *Agent) Step(ctx context.Context, s state.Information) (state.Information, error) {
	update, _, err := a.run(ctx, s)
	return update, err
}

func (a *Agent) run(ctx context.Context, s state.Information) (state.Information, llm.Message, error) {
	start := time.Now()
	runID := uuid.NewString()[:8]
	log := a.logger.With("run_id", runID)

	var outbound []llm.Message
	if a.Pre != nil && !a.supervisor {
		msgs, err := a.Pre(ctx, s)
		if err != nil {
			return state.Information{}, llm.Message{}, fmt.Errorf("%s pre-processing: %w", a.Name, err)
		}
		outbound = msgs
	}

	visible := append(slices.Clone(s.Messages), outbound...)
	if !a.supervisor {
		visible = a.Roles.ApplyPermissions(visible)
	}

	tools := a.tools(log)
	specs := make([]llm.Tool, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, t.spec())
	}

	log.Debug("agent started",
		"messages", len(visible),
		"tools", len(specs))

	working := s
	var update state.Information
	transcript := slices.Clone(outbound)
	var reply llm.Message

	for round := 0; ; round++ {
		req := &llm.Request{
			Model:     a.Model.Model,
			System:    a.Roles.Instructions(),
			Messages:  visible,
			MaxTokens: a.Model.MaxTokens,
		}
		if !a.Model.Reasoning {
			req.Temperature = llm.Float(a.Model.Temp())
		}
		// once the budget is spent the model has to answer in text
		if round < a.maxToolRounds {
			req.Tools = specs
		}

		resp, err := a.Client.Generate(ctx, req)
		if err != nil {
			log.Error("model call failed", "round", round, "error", err)
			return state.Information{}, llm.Message{}, fmt.Errorf("%s: %w", a.Name, err)
		}

		msg := resp.Message()
		msg.Name = a.Name
		visible = append(visible, msg)
		transcript = append(transcript, msg)

		if len(resp.ToolCalls) == 0 || len(req.Tools) == 0 {
			reply = msg
			break
		}

		// subordinate turns follow the tool results so every call keeps
		// its answer right after it
		var delegated []llm.Message
		for _, call := range resp.ToolCalls {
			result, handoff := a.callTool(ctx, log, tools, call, working)
			if handoff != nil {
				delegated = append(delegated, handoff.Messages...)
				handoff.Messages = nil
				working = working.Merge(*handoff)
				update = update.Merge(*handoff)
			}
			res := llm.ToolResult(call.ID, result)
			visible = append(visible, res)
			transcript = append(transcript, res)
		}
		transcript = append(transcript, delegated...)
	}

	update = update.Merge(state.Information{Messages: transcript})

	if a.Post != nil && !a.supervisor {
		post, err := a.Post(ctx, working, reply)
		if err != nil {
			log.Error("post-processing failed", "error", err)
			return state.Information{}, llm.Message{}, fmt.Errorf("%s post-processing: %w", a.Name, err)
		}
		update = update.Merge(post)
	}

	log.Info("agent completed",
		"duration_ms", time.Since(start).Milliseconds(),
		"reply_length", len(reply.Content))

	return update, reply, nil
}

func (a *Agent) String() string {
	return a.Name
}
