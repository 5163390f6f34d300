// Package personalization assembles the story personalization
// organization: several personalizers write candidates at different
// temperatures, pairwise critics vote in a tournament, and the winner goes
// through a critic review and a bounded editing loop.
package personalization

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/dotcommander/storyteller/internal/agent"
	"github.com/dotcommander/storyteller/internal/config"
	"github.com/dotcommander/storyteller/internal/domain"
	"github.com/dotcommander/storyteller/internal/graph"
	"github.com/dotcommander/storyteller/internal/llm"
	"github.com/dotcommander/storyteller/internal/render"
	"github.com/dotcommander/storyteller/internal/role"
	"github.com/dotcommander/storyteller/internal/state"
)

const (
	NodeCollector = "collector"
	NodeMerge     = "merge_evaluations"
	NodeEditor    = "personalization_editor"
	NodeEdition   = "edition_critic"
	NodeTriage    = "triage_critic"

	CriticTriage = "triage"
)

// Agent names as used in the configuration's agents map.
const (
	AgentPersonalizer = "personalizer"
	AgentPairCritic   = "pair_critic"
)

func GeneratorNode(i int) string  { return fmt.Sprintf("personalizer_gen_%d", i) }
func PairCriticNode(i int) string { return fmt.Sprintf("pair_critic_eval_%d", i) }

type Organization struct {
	cfg     config.PersonalizationConfig
	limits  config.Limits
	prompts role.Registry
	clients llm.Source

	src    rand.Source
	rngMu  sync.Mutex // guards src and rng
	rng    *rand.Rand
	logger *slog.Logger
}

type Option func(*Organization)

// WithSeed makes temperature sampling and random pairing reproducible.
func WithSeed(seed uint64) Option {
	return func(o *Organization) {
		o.src = rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Organization) {
		o.logger = logger
	}
}

func New(cfg config.PersonalizationConfig, limits config.Limits, prompts role.Registry, clients llm.Source, opts ...Option) *Organization {
	o := &Organization{
		cfg:     cfg,
		limits:  limits,
		prompts: prompts,
		clients: clients,
		src:     rand.NewPCG(rand.Uint64(), rand.Uint64()),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.rng = rand.New(o.src)
	o.logger = o.logger.With("component", "personalization")
	return o
}

// CriticNode is the node reviewing the tournament winner.
func (o *Organization) CriticNode() string {
	if o.cfg.Critic == CriticTriage {
		return NodeTriage
	}
	return NodeEdition
}

// Build assembles the graph for one reader. The number of generator and
// pairwise critic nodes is fixed here from the configuration.
func (o *Organization) Build(prefs []domain.Preference) (*graph.Runnable[state.Information], error) {
	start := time.Now()
	vars := map[string]string{"preferences": render.Preferences(prefs)}
	g := graph.New[state.Information]()

	n := o.cfg.NumGenerations
	count, err := EvaluationCount(o.cfg.EvaluationMode, n, o.cfg.NumEvaluations)
	if err != nil {
		return nil, err
	}

	lo, hi := 0.5, 1.5
	if len(o.cfg.Temperatures) == 2 {
		lo, hi = o.cfg.Temperatures[0], o.cfg.Temperatures[1]
	}
	o.rngMu.Lock()
	temperatures := SampleTemperatures(n, lo, hi, o.src)
	o.rngMu.Unlock()
	for i, t := range temperatures {
		name := GeneratorNode(i + 1)
		a, err := o.personalizer(name, KindPersonalizer, o.cfg.Model(AgentPersonalizer).WithTemperature(t), vars, generatorPost)
		if err != nil {
			return nil, err
		}
		g.AddNode(name, a.Node()).
			AddEdge(graph.Start, name).
			AddEdge(name, NodeCollector)
		o.logger.Debug("generator added", "node", name, "temperature", t)
	}

	critics := make([]string, count)
	for i := range count {
		name := PairCriticNode(i + 1)
		a, err := o.pairCritic(name, vars)
		if err != nil {
			return nil, err
		}
		g.AddNode(name, a.Node()).AddEdge(name, NodeMerge)
		critics[i] = name
	}

	g.AddNode(NodeCollector, collect).
		AddFanOut(NodeCollector, o.distribute(critics), append(slices.Clone(critics), NodeMerge)...).
		AddNode(NodeMerge, mergeEvaluations)

	criticNode := o.CriticNode()
	critic, err := o.reviewer()
	if err != nil {
		return nil, err
	}
	g.AddNode(criticNode, critic.Node()).
		AddConditionalEdges(NodeMerge, routeWinner(criticNode), map[string]string{
			criticNode: criticNode,
			graph.End:  graph.End,
		})

	editor, err := o.personalizer(NodeEditor, KindEditor, o.cfg.Model(AgentPersonalizer), vars, editorPost)
	if err != nil {
		return nil, err
	}
	maxRounds := o.cfg.MaxEditionRounds
	g.AddNode(NodeEditor, editor.Node()).
		AddConditionalEdges(criticNode, func(_ context.Context, s state.Information) (string, error) {
			return RouteEdition(s, maxRounds), nil
		}, map[string]string{
			NodeEditor: NodeEditor,
			graph.End:  graph.End,
		})
	if maxRounds > 1 {
		g.AddEdge(NodeEditor, criticNode)
	} else {
		g.SetFinishPoint(NodeEditor)
	}

	r, err := g.Compile(
		graph.WithName("personalization"),
		graph.WithMaxSteps(o.limits.MaxSteps),
		graph.WithConcurrency(o.limits.MaxConcurrency),
		graph.WithLogger(o.logger),
	)
	if err != nil {
		return nil, err
	}

	o.logger.Info("organization built",
		"generations", n,
		"evaluations", count,
		"critic", criticNode,
		"duration_ms", time.Since(start).Milliseconds())
	return r, nil
}

func collect(context.Context, state.Information) (state.Information, error) {
	return state.Information{}, nil
}

// distribute sends every pair to its own critic on an isolated payload.
// Without pairs the collector hands over to the vote directly.
func (o *Organization) distribute(critics []string) graph.FanOut[state.Information] {
	return func(_ context.Context, s state.Information) ([]graph.Send[state.Information], error) {
		o.rngMu.Lock()
		pairs, err := SelectPairs(s.IntermediateBooks, o.cfg.EvaluationMode, o.cfg.NumEvaluations, o.rng)
		o.rngMu.Unlock()
		if err != nil {
			return nil, err
		}
		if len(pairs) > len(critics) {
			return nil, fmt.Errorf("%d pairs for %d critics", len(pairs), len(critics))
		}
		if len(pairs) == 0 {
			return []graph.Send[state.Information]{{Node: NodeMerge, State: s}}, nil
		}

		sends := make([]graph.Send[state.Information], len(pairs))
		for i, p := range pairs {
			sends[i] = graph.Send[state.Information]{Node: critics[i], State: pairPayload(s, p)}
		}
		o.logger.Debug("pairs dispatched", "pairs", len(pairs), "candidates", len(s.IntermediateBooks))
		return sends, nil
	}
}

// pairPayload holds only what a pairwise critic may see.
func pairPayload(s state.Information, p Pair) state.Information {
	return state.Information{
		Preferences:       slices.Clone(s.Preferences),
		OriginalBook:      s.OriginalBook.Clone(),
		IntermediateBooks: []*domain.Book{p.A.Clone(), p.B.Clone()},
	}
}

// mergeEvaluations crowns the candidate with most pairwise wins. A lone
// candidate wins without a vote.
func mergeEvaluations(_ context.Context, s state.Information) (state.Information, error) {
	winner, ok := PluralityWinner(s.Evaluations)
	if !ok {
		if len(s.IntermediateBooks) == 1 {
			return state.Information{ModifiedBook: s.IntermediateBooks[0]}, nil
		}
		return state.Information{}, nil
	}
	if book := domain.FindBook(s.IntermediateBooks, winner); book != nil {
		return state.Information{ModifiedBook: book}, nil
	}
	return state.Information{}, nil
}

func routeWinner(critic string) graph.Router[state.Information] {
	return func(_ context.Context, s state.Information) (string, error) {
		if s.ModifiedBook == nil {
			return graph.End, nil
		}
		return critic, nil
	}
}

func (o *Organization) newAgent(name string, roles *role.Collection, model config.ModelConfig, opts ...agent.Option) (*agent.Agent, error) {
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

// personalizer builds a generator or the editor. The role is fixed here so
// running agents never switch it.
func (o *Organization) personalizer(name string, kind role.Kind, model config.ModelConfig, vars map[string]string, post agent.PostFunc) (*agent.Agent, error) {
	roles, err := PersonalizerRoles(o.prompts)
	if err != nil {
		return nil, err
	}
	if err := roles.Activate(kind); err != nil {
		return nil, err
	}
	roles.SetVariables(vars)
	return o.newAgent(name, roles, model,
		agent.WithPre(personalizerPre(kind)),
		agent.WithPost(post))
}

func (o *Organization) pairCritic(name string, vars map[string]string) (*agent.Agent, error) {
	roles, err := PairCriticRoles(o.prompts)
	if err != nil {
		return nil, err
	}
	roles.SetVariables(vars)
	return o.newAgent(name, roles, o.cfg.Model(AgentPairCritic),
		agent.WithPre(pairCriticPre),
		agent.WithPost(pairCriticPost))
}

// reviewer builds the critic that labels the winner: the edition critic,
// or the triage critic with its delegation tools.
func (o *Organization) reviewer() (*agent.Agent, error) {
	if o.cfg.Critic == CriticTriage {
		roles, err := TriageCriticRoles(o.prompts, o.deepReportTool(), o.askCriticTool())
		if err != nil {
			return nil, err
		}
		return o.newAgent(NodeTriage, roles, o.cfg.Model(NodeTriage),
			agent.WithPre(labelPre),
			agent.WithPost(evaluationPost(domain.OverallQualityCriteria)))
	}

	roles, err := EditionCriticRoles(o.prompts)
	if err != nil {
		return nil, err
	}
	return o.newAgent(NodeEdition, roles, o.cfg.Model(NodeEdition),
		agent.WithPre(labelPre),
		agent.WithPost(evaluationPost(domain.EditionCriteria)))
}
