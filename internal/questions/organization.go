// Package questions assembles the shared-reading question organization:
// one questioner per CROWD question type proposes a question for every
// page, and an aggregator picks the final one.
package questions

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dotcommander/storyteller/internal/agent"
	"github.com/dotcommander/storyteller/internal/config"
	"github.com/dotcommander/storyteller/internal/core"
	"github.com/dotcommander/storyteller/internal/graph"
	"github.com/dotcommander/storyteller/internal/llm"
	"github.com/dotcommander/storyteller/internal/role"
	"github.com/dotcommander/storyteller/internal/state"
)

const (
	NodeAggregator = "aggregator"
	NodeSupervisor = "supervisor"
)

// QuestionerNode is also the questioner's agent name.
func QuestionerNode(kind string) string { return kind + "_questioner" }

type Organization struct {
	cfg     config.QuestionsConfig
	limits  config.Limits
	prompts role.Registry
	clients llm.Source
	logger  *slog.Logger
}

type Option func(*Organization)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Organization) {
		o.logger = logger
	}
}

func New(cfg config.QuestionsConfig, limits config.Limits, prompts role.Registry, clients llm.Source, opts ...Option) *Organization {
	o := &Organization{
		cfg:     cfg,
		limits:  limits,
		prompts: prompts,
		clients: clients,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "questions")
	return o
}

// Build assembles the graph. Questioners run in parallel from the start,
// or under a supervisor that hands work to each of them in supervised
// mode. Either way the aggregator waits for all of them.
func (o *Organization) Build() (*graph.Runnable[state.Information], error) {
	start := time.Now()
	if len(o.cfg.Questioners) == 0 {
		return nil, core.NewConfigError("questioners", "at least one questioner is required")
	}

	g := graph.New[state.Information]()
	workers := agent.Registry{}

	for _, kind := range o.cfg.Questioners {
		name := QuestionerNode(kind)
		if _, ok := workers.Resolve(name); ok {
			continue
		}
		q, err := o.questioner(kind)
		if err != nil {
			return nil, err
		}
		workers.Register(q)
		if !o.cfg.Supervised {
			g.AddNode(name, q.Node()).
				AddEdge(graph.Start, name).
				AddEdge(name, NodeAggregator)
		}
	}

	if o.cfg.Supervised {
		sup, err := o.supervisor(workers)
		if err != nil {
			return nil, err
		}
		g.AddNode(NodeSupervisor, supervise(sup)).
			AddEdge(graph.Start, NodeSupervisor).
			AddEdge(NodeSupervisor, NodeAggregator)
	}

	aggregator, err := o.aggregator()
	if err != nil {
		return nil, err
	}
	g.AddNode(NodeAggregator, aggregator.Node()).SetFinishPoint(NodeAggregator)

	r, err := g.Compile(
		graph.WithName("questions"),
		graph.WithMaxSteps(o.limits.MaxSteps),
		graph.WithConcurrency(o.limits.MaxConcurrency),
		graph.WithLogger(o.logger),
	)
	if err != nil {
		return nil, err
	}

	o.logger.Info("organization built",
		"questioners", len(workers),
		"supervised", o.cfg.Supervised,
		"duration_ms", time.Since(start).Milliseconds())
	return r, nil
}

// supervise gives the supervisor a request to act on; it has no pre stage
// of its own.
func supervise(sup *agent.Agent) graph.NodeFunc[state.Information] {
	return func(ctx context.Context, s state.Information) (state.Information, error) {
		in := s.Clone()
		in.Messages = append(in.Messages, llm.User(supervisorRequest))
		return sup.Step(ctx, in)
	}
}

func (o *Organization) newAgent(name string, roles *role.Collection, opts ...agent.Option) (*agent.Agent, error) {
	model := o.cfg.Model(name)
	client, err := o.clients.Client(model)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", name, err)
	}
	opts = append([]agent.Option{
		agent.WithMaxToolRounds(o.limits.MaxToolRounds),
		agent.WithLogger(o.logger),
	}, opts...)
	return agent.New(name, roles, model, client, opts...), nil
}

func (o *Organization) questioner(kind string) (*agent.Agent, error) {
	c, ok := CriteriaFor(kind)
	if !ok {
		return nil, core.NewConfigError("questioners", "unknown questioner %q", kind)
	}
	roles, err := QuestionerRoles(o.prompts, c)
	if err != nil {
		return nil, err
	}
	return o.newAgent(QuestionerNode(kind), roles,
		agent.WithPre(questionerPre),
		agent.WithPost(questionerPost))
}

func (o *Organization) aggregator() (*agent.Agent, error) {
	roles, err := AggregatorRoles(o.prompts)
	if err != nil {
		return nil, err
	}
	return o.newAgent(NodeAggregator, roles,
		agent.WithPre(aggregatorPre),
		agent.WithPost(aggregatorPost))
}

func (o *Organization) supervisor(workers agent.Registry) (*agent.Agent, error) {
	names := make([]string, 0, len(o.cfg.Questioners))
	for _, kind := range o.cfg.Questioners {
		if name := QuestionerNode(kind); !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	roles, err := SupervisorRoles(o.prompts, names...)
	if err != nil {
		return nil, err
	}
	model := o.cfg.Model(NodeSupervisor)
	client, err := o.clients.Client(model)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", NodeSupervisor, err)
	}
	return agent.NewSupervisor(NodeSupervisor, roles, model, client, workers,
		agent.WithMaxToolRounds(max(o.limits.MaxToolRounds, len(names)+1)),
		agent.WithLogger(o.logger)), nil
}

