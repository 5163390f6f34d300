// Package graph runs state machines whose nodes execute in supersteps.
//
// Every node triggered in a step runs concurrently on its own copy of the
// shared state. When all of them finish, their partial updates are merged
// into the shared state in a fixed order and the next step's nodes are
// derived from the outgoing edges of the nodes that just ran.
package graph

import (
	"context"
	"errors"
	"fmt"
)

const (
	Start = "__start__"
	End   = "__end__"
)

// State is implemented by graph state types. Merge applies a partial
// update produced by a node and returns the combined value; Clone returns
// a copy that a node may freely modify.
type State[S any] interface {
	Merge(update S) S
	Clone() S
}

// NodeFunc receives a private copy of the state and returns a partial
// update.
type NodeFunc[S any] func(ctx context.Context, s S) (S, error)

// Router picks the key of the next node from the merged state.
type Router[S any] func(ctx context.Context, s S) (string, error)

// Send dispatches a node with an explicit input instead of the shared
// state.
type Send[S any] struct {
	Node  string
	State S
}

// FanOut computes the sends issued after a node completes.
type FanOut[S any] func(ctx context.Context, s S) ([]Send[S], error)

type branch[S any] struct {
	router Router[S]
	paths  map[string]string
}

type fanOut[S any] struct {
	fn      FanOut[S]
	targets map[string]bool
}

// Graph is a builder. Structural mistakes are collected and reported by
// Compile.
type Graph[S State[S]] struct {
	nodes    map[string]NodeFunc[S]
	order    []string
	edges    map[string][]string
	branches map[string]branch[S]
	fanOuts  map[string]fanOut[S]
	errs     []error
}

func New[S State[S]]() *Graph[S] {
	return &Graph[S]{
		nodes:    make(map[string]NodeFunc[S]),
		edges:    make(map[string][]string),
		branches: make(map[string]branch[S]),
		fanOuts:  make(map[string]fanOut[S]),
	}
}

func (g *Graph[S]) AddNode(name string, fn NodeFunc[S]) *Graph[S] {
	switch {
	case name == "" || name == Start || name == End:
		g.errs = append(g.errs, fmt.Errorf("invalid node name %q", name))
	case fn == nil:
		g.errs = append(g.errs, fmt.Errorf("node %q has no function", name))
	case g.nodes[name] != nil:
		g.errs = append(g.errs, fmt.Errorf("node %q already exists", name))
	default:
		g.nodes[name] = fn
		g.order = append(g.order, name)
	}
	return g
}

func (g *Graph[S]) AddEdge(from, to string) *Graph[S] {
	if from == End || to == Start {
		g.errs = append(g.errs, fmt.Errorf("invalid edge %s -> %s", from, to))
		return g
	}
	g.edges[from] = append(g.edges[from], to)
	return g
}

// AddConditionalEdges routes from a node by the key its router returns.
// A nil paths map treats keys as node names.
func (g *Graph[S]) AddConditionalEdges(from string, router Router[S], paths map[string]string) *Graph[S] {
	if _, dup := g.branches[from]; dup {
		g.errs = append(g.errs, fmt.Errorf("node %q already has conditional edges", from))
		return g
	}
	if router == nil {
		g.errs = append(g.errs, fmt.Errorf("conditional edges from %q have no router", from))
		return g
	}
	g.branches[from] = branch[S]{router: router, paths: paths}
	return g
}

// AddFanOut issues sends after from completes. targets lists the nodes the
// sends may address.
func (g *Graph[S]) AddFanOut(from string, fn FanOut[S], targets ...string) *Graph[S] {
	if _, dup := g.fanOuts[from]; dup {
		g.errs = append(g.errs, fmt.Errorf("node %q already fans out", from))
		return g
	}
	allowed := make(map[string]bool, len(targets))
	for _, t := range targets {
		allowed[t] = true
	}
	g.fanOuts[from] = fanOut[S]{fn: fn, targets: allowed}
	return g
}

func (g *Graph[S]) SetEntryPoint(name string) *Graph[S] {
	return g.AddEdge(Start, name)
}

func (g *Graph[S]) SetFinishPoint(name string) *Graph[S] {
	return g.AddEdge(name, End)
}

// Compile validates the structure and returns a runnable graph.
func (g *Graph[S]) Compile(opts ...Option) (*Runnable[S], error) {
	errs := append([]error(nil), g.errs...)

	known := func(n string) bool { return n == End || g.nodes[n] != nil }
	source := func(n string) bool { return n == Start || g.nodes[n] != nil }

	if len(g.edges[Start]) == 0 && g.branches[Start].router == nil && g.fanOuts[Start].fn == nil {
		errs = append(errs, errors.New("graph has no entry point"))
	}

	for from, tos := range g.edges {
		if !source(from) {
			errs = append(errs, fmt.Errorf("edge from unknown node %q", from))
		}
		for _, to := range tos {
			if !known(to) {
				errs = append(errs, fmt.Errorf("edge %s -> unknown node %q", from, to))
			}
		}
	}
	for from, b := range g.branches {
		if !source(from) {
			errs = append(errs, fmt.Errorf("conditional edges from unknown node %q", from))
		}
		for key, to := range b.paths {
			if !known(to) {
				errs = append(errs, fmt.Errorf("conditional edge %s[%s] -> unknown node %q", from, key, to))
			}
		}
	}
	for from, f := range g.fanOuts {
		if !source(from) {
			errs = append(errs, fmt.Errorf("fan-out from unknown node %q", from))
		}
		for to := range f.targets {
			if g.nodes[to] == nil {
				errs = append(errs, fmt.Errorf("fan-out %s -> unknown node %q", from, to))
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("compiling graph: %w", err)
	}

	r := &Runnable[S]{
		nodes:    g.nodes,
		order:    append([]string(nil), g.order...),
		edges:    g.edges,
		branches: g.branches,
		fanOuts:  g.fanOuts,
		opts:     defaultOptions(),
	}
	for _, opt := range opts {
		opt(&r.opts)
	}
	return r, nil
}
