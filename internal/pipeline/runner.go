// Package pipeline runs the personalization and questions organizations
// over a story, alone or chained, and journals what happens.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dotcommander/storyteller/internal/config"
	"github.com/dotcommander/storyteller/internal/core"
	"github.com/dotcommander/storyteller/internal/domain"
	"github.com/dotcommander/storyteller/internal/graph"
	"github.com/dotcommander/storyteller/internal/llm"
	"github.com/dotcommander/storyteller/internal/personalization"
	"github.com/dotcommander/storyteller/internal/prompt"
	"github.com/dotcommander/storyteller/internal/questions"
	"github.com/dotcommander/storyteller/internal/role"
	"github.com/dotcommander/storyteller/internal/state"
	"github.com/dotcommander/storyteller/internal/storage/sqlite"
)

type Kind string

const (
	All             Kind = "ALL"
	Personalization Kind = "PERSONALIZATION"
	Questions       Kind = "QUESTIONS"
)

// ParseKind accepts a pipeline name in any case.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToUpper(strings.TrimSpace(s))); k {
	case All, Personalization, Questions:
		return k, nil
	}
	return "", core.NewConfigError("pipelines", "unknown pipeline %q, expected ALL, PERSONALIZATION or QUESTIONS", s)
}

func (k Kind) personalizes() bool { return k == All || k == Personalization }
func (k Kind) asks() bool         { return k == All || k == Questions }

// Recorder receives the run journal. *sqlite.Journal implements it.
type Recorder interface {
	StartRun(ctx context.Context, pipeline, title string) (string, error)
	RecordEvent(ctx context.Context, runID string, e sqlite.Event) error
	RecordEvaluations(ctx context.Context, runID, node string, evals []domain.Evaluation) error
	FinishRun(ctx context.Context, runID string, runErr error) error
}

var _ Recorder = (*sqlite.Journal)(nil)

// Result is the outcome of a run. Book is the final story; it is the input
// story when no stage produced a new one.
type Result struct {
	RunID       string
	Book        *domain.Book
	Evaluations []domain.Evaluation
	// Winner is the tournament winner before any edition.
	Winner   *domain.Book
	NoWinner bool
}

// Observer sees every node update as it is merged.
type Observer func(graphName string, e graph.Event[state.Information])

type Runner struct {
	cfg      *config.Config
	prompts  role.Registry
	clients  llm.Source
	journal  Recorder
	observer Observer
	seed     *uint64
	logger   *slog.Logger
}

type Option func(*Runner)

func WithJournal(r Recorder) Option {
	return func(rn *Runner) {
		rn.journal = r
	}
}

func WithObserver(o Observer) Option {
	return func(rn *Runner) {
		rn.observer = o
	}
}

// WithSeed makes the personalization tournament reproducible.
func WithSeed(seed uint64) Option {
	return func(rn *Runner) {
		rn.seed = &seed
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(rn *Runner) {
		rn.logger = logger
	}
}

// WithClients replaces the model clients FromConfig would build.
func WithClients(src llm.Source) Option {
	return func(rn *Runner) {
		rn.clients = src
	}
}

func New(cfg *config.Config, prompts role.Registry, clients llm.Source, opts ...Option) *Runner {
	r := &Runner{
		cfg:     cfg,
		prompts: prompts,
		clients: clients,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "pipeline")
	return r
}

// FromConfig wires the prompt registry and the model clients the
// configuration describes.
func FromConfig(cfg *config.Config, opts ...Option) *Runner {
	r := New(cfg, nil, nil, opts...)
	r.prompts = prompt.New(cfg.Prompts.Dir,
		prompt.WithCacheSize(cfg.Prompts.CacheSize),
		prompt.WithLogger(r.logger))
	if r.clients == nil {
		r.clients = llm.NewFactory(cfg.Limits, r.logger)
	}
	return r
}

// Run executes kind over story. With ALL, the personalized story (or the
// original one when the tournament has no winner) feeds the questions.
func (r *Runner) Run(ctx context.Context, kind Kind, story *domain.Book, prefs []domain.Preference) (res *Result, err error) {
	if story == nil {
		return nil, fmt.Errorf("%w: no story", core.ErrInvalidInput)
	}
	if err := r.preload(kind); err != nil {
		return nil, err
	}
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Limits.TotalTimeout)
	defer cancel()

	res = &Result{Book: story}
	if r.journal != nil {
		id, jerr := r.journal.StartRun(ctx, string(kind), story.Title)
		if jerr != nil {
			return nil, jerr
		}
		res.RunID = id
		defer func() {
			// the run's context may be gone; the outcome is still recorded
			if ferr := r.journal.FinishRun(context.WithoutCancel(ctx), id, err); ferr != nil {
				r.logger.Warn("journal finish failed", "run_id", id, "error", ferr)
			}
		}()
	}

	log := r.logger.With("pipeline", string(kind), "run_id", res.RunID)
	log.Info("pipeline started", "title", story.Title, "preferences", len(prefs))

	if kind.personalizes() {
		if err := r.personalize(ctx, res, story, prefs); err != nil {
			log.Error("personalization failed", "error", err)
			return nil, fmt.Errorf("personalization: %w", err)
		}
	}

	if kind.asks() {
		if err := r.ask(ctx, res); err != nil {
			log.Error("questions failed", "error", err)
			return nil, fmt.Errorf("questions: %w", err)
		}
	}

	log.Info("pipeline completed",
		"no_winner", res.NoWinner,
		"evaluations", len(res.Evaluations),
		"duration_ms", time.Since(start).Milliseconds())
	return res, nil
}

// preload reads every prompt kind needs so a missing one fails the run
// before any model call. Registries without Preload are left alone.
func (r *Runner) preload(kind Kind) error {
	p, ok := r.prompts.(interface{ Preload(names []string) error })
	if !ok {
		return nil
	}

	var names []string
	if kind.personalizes() {
		names = append(names, personalization.Prompts(r.cfg.Organizations.Personalization)...)
	}
	if kind.asks() {
		names = append(names, questions.Prompts(r.cfg.Organizations.Questions)...)
	}
	if err := p.Preload(names); err != nil {
		return fmt.Errorf("%w: %w", core.ErrRegistryLookup, err)
	}
	return nil
}

func (r *Runner) personalize(ctx context.Context, res *Result, story *domain.Book, prefs []domain.Preference) error {
	opts := []personalization.Option{personalization.WithLogger(r.logger)}
	if r.seed != nil {
		opts = append(opts, personalization.WithSeed(*r.seed))
	}
	org := personalization.New(r.cfg.Organizations.Personalization, r.cfg.Limits, r.prompts, r.clients, opts...)

	g, err := org.Build(prefs)
	if err != nil {
		return err
	}

	out, err := g.Stream(ctx, state.Information{OriginalBook: story, Preferences: prefs},
		r.emit(res, "personalization", func(e graph.Event[state.Information]) {
			if e.Node == personalization.NodeMerge && e.Update.ModifiedBook != nil {
				res.Winner = e.Update.ModifiedBook
			}
		}))
	if err != nil {
		return err
	}

	res.Evaluations = append(res.Evaluations, out.Evaluations...)
	if out.ModifiedBook == nil {
		res.NoWinner = true
		r.logger.Warn("no personalization won the tournament, keeping the original story",
			"candidates", len(out.IntermediateBooks))
		return nil
	}
	res.Book = out.ModifiedBook
	return nil
}

func (r *Runner) ask(ctx context.Context, res *Result) error {
	org := questions.New(r.cfg.Organizations.Questions, r.cfg.Limits, r.prompts, r.clients,
		questions.WithLogger(r.logger))

	g, err := org.Build()
	if err != nil {
		return err
	}

	out, err := g.Stream(ctx, state.Information{OriginalBook: res.Book}, r.emit(res, "questions", nil))
	if err != nil {
		return err
	}
	if out.ModifiedBook != nil {
		res.Book = out.ModifiedBook
	}
	return nil
}

// summary is what the journal keeps of a node update.
type summary struct {
	Messages      int      `json:"messages,omitempty"`
	Candidates    int      `json:"candidates,omitempty"`
	Labels        []string `json:"labels,omitempty"`
	Book          string   `json:"book,omitempty"`
	Questions     int      `json:"questions,omitempty"`
	EditionRounds int      `json:"edition_rounds,omitempty"`
}

func summarize(u state.Information) summary {
	s := summary{
		Messages:      len(u.Messages),
		Candidates:    len(u.IntermediateBooks),
		Questions:     len(u.QuestionsBooks),
		EditionRounds: u.EditionRounds,
	}
	for _, e := range u.Evaluations {
		s.Labels = append(s.Labels, e.Label)
	}
	if u.ModifiedBook != nil {
		s.Book = u.ModifiedBook.Title
	}
	return s
}

// emit journals and observes every update. Journal failures are logged and
// do not stop the run.
func (r *Runner) emit(res *Result, name string, hook func(graph.Event[state.Information])) func(graph.Event[state.Information]) error {
	return func(e graph.Event[state.Information]) error {
		r.logger.Debug("node update",
			"graph", name,
			"step", e.Step,
			"node", e.Node,
			"evaluations", len(e.Update.Evaluations))

		if hook != nil {
			hook(e)
		}
		if r.observer != nil {
			r.observer(name, e)
		}
		if r.journal == nil {
			return nil
		}

		ctx := context.Background()
		if err := r.journal.RecordEvent(ctx, res.RunID, sqlite.Event{
			Graph:   name,
			Step:    e.Step,
			Node:    e.Node,
			Payload: summarize(e.Update),
		}); err != nil {
			r.logger.Warn("journal event failed", "node", e.Node, "error", err)
		}
		if err := r.journal.RecordEvaluations(ctx, res.RunID, e.Node, e.Update.Evaluations); err != nil {
			r.logger.Warn("journal evaluations failed", "node", e.Node, "error", err)
		}
		return nil
	}
}
