package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dotcommander/storyteller/internal/core"
)

const DefaultMaxSteps = 25

type options struct {
	name        string
	maxSteps    int
	concurrency int
	logger      *slog.Logger
}

func defaultOptions() options {
	return options{
		name:        "graph",
		maxSteps:    DefaultMaxSteps,
		concurrency: -1,
		logger:      slog.Default(),
	}
}

type Option func(*options)

// WithName labels log lines and errors.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithMaxSteps bounds the number of supersteps of one run.
func WithMaxSteps(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxSteps = n
		}
	}
}

// WithConcurrency bounds the tasks running at once inside a step. Zero or
// negative means unbounded.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n <= 0 {
			n = -1
		}
		o.concurrency = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Event reports one node's update after the step barrier.
type Event[S any] struct {
	Step   int
	Node   string
	Update S
}

type task[S any] struct {
	node  string
	input S
}

// Runnable is a compiled graph. It holds no run state and may be invoked
// concurrently.
type Runnable[S State[S]] struct {
	nodes    map[string]NodeFunc[S]
	order    []string
	edges    map[string][]string
	branches map[string]branch[S]
	fanOuts  map[string]fanOut[S]
	opts     options
}

// Nodes returns the node names in registration order.
func (r *Runnable[S]) Nodes() []string {
	return append([]string(nil), r.order...)
}

// Invoke runs the graph to completion and returns the final state.
func (r *Runnable[S]) Invoke(ctx context.Context, input S) (S, error) {
	return r.Stream(ctx, input, nil)
}

// Stream runs the graph and calls emit for every node update in merge
// order. An error from emit stops the run.
func (r *Runnable[S]) Stream(ctx context.Context, input S, emit func(Event[S]) error) (S, error) {
	logger := r.opts.logger.With("component", "graph", "graph", r.opts.name)
	startTime := time.Now()

	state := input.Clone()

	tasks, err := r.next(ctx, []string{Start}, state)
	if err != nil {
		return state, err
	}

	step := 0
	for len(tasks) > 0 {
		if err := ctx.Err(); err != nil {
			return state, err
		}
		if step >= r.opts.maxSteps {
			logger.Error("step limit reached",
				"max_steps", r.opts.maxSteps,
				"pending", len(tasks))
			return state, fmt.Errorf("%s: %d steps without reaching the end: %w",
				r.opts.name, r.opts.maxSteps, core.ErrRecursionLimit)
		}

		names := make([]string, len(tasks))
		for i, t := range tasks {
			names[i] = t.node
		}
		logger.Debug("running step",
			"step", step,
			"tasks", names)

		updates, err := r.runStep(ctx, step, tasks)
		if err != nil {
			logger.Error("step failed",
				"step", step,
				"error", err)
			return state, err
		}

		// barrier: merge in task order
		for i, u := range updates {
			state = state.Merge(u)
			if emit != nil {
				if err := emit(Event[S]{Step: step, Node: tasks[i].node, Update: u}); err != nil {
					return state, err
				}
			}
		}

		tasks, err = r.next(ctx, names, state)
		if err != nil {
			return state, err
		}
		step++
	}

	logger.Debug("graph finished",
		"steps", step,
		"duration_ms", time.Since(startTime).Milliseconds())

	return state, nil
}

func (r *Runnable[S]) runStep(ctx context.Context, step int, tasks []task[S]) ([]S, error) {
	updates := make([]S, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.concurrency)

	for i, t := range tasks {
		g.Go(func() error {
			update, err := r.nodes[t.node](gctx, t.input)
			if err != nil {
				return core.NewNodeError(t.node, step, err)
			}
			updates[i] = update
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return updates, nil
}

// next derives the following step's tasks from the nodes that completed.
// Static targets run once per step no matter how many nodes lead to them;
// sends are never merged.
func (r *Runnable[S]) next(ctx context.Context, completed []string, state S) ([]task[S], error) {
	var tasks []task[S]
	scheduled := make(map[string]bool)

	schedule := func(node string) {
		if node == End || scheduled[node] {
			return
		}
		scheduled[node] = true
		tasks = append(tasks, task[S]{node: node, input: state.Clone()})
	}

	visited := make(map[string]bool, len(completed))
	for _, from := range completed {
		// a node sent several times still routes once
		if visited[from] {
			continue
		}
		visited[from] = true

		for _, to := range r.edges[from] {
			schedule(to)
		}

		if b, ok := r.branches[from]; ok {
			key, err := b.router(ctx, state.Clone())
			if err != nil {
				return nil, fmt.Errorf("routing from %s: %w", from, err)
			}
			to := key
			if b.paths != nil {
				mapped, ok := b.paths[key]
				if !ok {
					return nil, fmt.Errorf("routing from %s: no path for %q", from, key)
				}
				to = mapped
			}
			if to != End && r.nodes[to] == nil {
				return nil, fmt.Errorf("routing from %s: unknown node %q", from, to)
			}
			schedule(to)
		}

		if f, ok := r.fanOuts[from]; ok {
			sends, err := f.fn(ctx, state.Clone())
			if err != nil {
				return nil, fmt.Errorf("fan-out from %s: %w", from, err)
			}
			for _, s := range sends {
				if len(f.targets) > 0 && !f.targets[s.Node] {
					return nil, fmt.Errorf("fan-out from %s: undeclared target %q", from, s.Node)
				}
				if r.nodes[s.Node] == nil {
					return nil, fmt.Errorf("fan-out from %s: unknown node %q", from, s.Node)
				}
				tasks = append(tasks, task[S]{node: s.Node, input: s.State.Clone()})
			}
		}
	}

	return tasks, nil
}
