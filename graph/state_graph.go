package graph

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// StateGraph is a builder for a conversation-flow graph over state type S.
type StateGraph[S any] struct {
	// nodes is a map of node names to their corresponding Node objects
	nodes map[string]Node[S]

	// edges is a slice of Edge objects representing the connections between nodes
	edges []Edge

	// conditionalEdges maps a "From" node to a function deriving the "To" node at runtime
	conditionalEdges map[string]func(ctx context.Context, state S) string

	// entryPoint is the name of the entry point node in the graph
	entryPoint string
}

// NewStateGraph creates a new, empty StateGraph.
func NewStateGraph[S any]() *StateGraph[S] {
	return &StateGraph[S]{
		nodes:            make(map[string]Node[S]),
		conditionalEdges: make(map[string]func(ctx context.Context, state S) string),
	}
}

// AddNode adds a new node to the state graph with the given name, description and function.
func (g *StateGraph[S]) AddNode(name string, description string, fn func(ctx context.Context, state S) (S, error)) {
	g.nodes[name] = Node[S]{
		Name:        name,
		Description: description,
		Function:    fn,
	}
}

// AddEdge adds a new edge to the state graph between the "from" and "to" nodes.
func (g *StateGraph[S]) AddEdge(from, to string) {
	g.edges = append(g.edges, Edge{
		From: from,
		To:   to,
	})
}

// AddConditionalEdge adds a conditional edge where the target node is determined at runtime.
func (g *StateGraph[S]) AddConditionalEdge(from string, condition func(ctx context.Context, state S) string) {
	g.conditionalEdges[from] = condition
}

// SetEntryPoint sets the entry point node name for the state graph.
func (g *StateGraph[S]) SetEntryPoint(name string) {
	g.entryPoint = name
}

// StateRunnable represents a compiled state graph that can be invoked.
type StateRunnable[S any] struct {
	graph *StateGraph[S]
}

// Compile compiles the state graph and returns a StateRunnable instance.
func (g *StateGraph[S]) Compile() (*StateRunnable[S], error) {
	if g.entryPoint == "" {
		return nil, ErrEntryPointNotSet
	}
	if _, ok := g.nodes[g.entryPoint]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, g.entryPoint)
	}

	return &StateRunnable[S]{graph: g}, nil
}

// Invoke executes the compiled state graph with the given input state.
func (r *StateRunnable[S]) Invoke(ctx context.Context, initialState S) (S, error) {
	return r.InvokeWithConfig(ctx, initialState, nil)
}

// InvokeWithConfig executes the compiled state graph with the given input
// state and config. Nodes run one at a time, following static edges or
// conditional edges, until END is reached or a node interrupts. On interrupt
// the returned error is a *GraphInterrupt carrying the state snapshot at the
// pause point; the returned state equals that snapshot.
func (r *StateRunnable[S]) InvokeWithConfig(ctx context.Context, initialState S, config *Config) (S, error) {
	state := initialState
	current := r.graph.entryPoint

	if config != nil {
		if len(config.ResumeFrom) > 0 {
			current = config.ResumeFrom[0]
		}
		if config.ResumeValue != nil {
			ctx = WithResumeValue(ctx, config.ResumeValue)
		}
	}

	for current != END {
		node, ok := r.graph.nodes[current]
		if !ok {
			return state, fmt.Errorf("%w: %s", ErrNodeNotFound, current)
		}

		if config != nil && slices.Contains(config.InterruptBefore, current) {
			return state, &GraphInterrupt{Node: current, State: state, NextNodes: []string{current}}
		}

		result, err := r.executeNode(ctx, node, state)
		if err != nil {
			var nodeInterrupt *NodeInterrupt
			if errors.As(err, &nodeInterrupt) {
				// The pre-node state is the snapshot to resume from, so a
				// partially executed node leaves no trace.
				return state, &GraphInterrupt{
					Node:           current,
					State:          state,
					NextNodes:      []string{current},
					InterruptValue: nodeInterrupt.Value,
				}
			}
			return state, fmt.Errorf("error in node %s: %w", current, err)
		}
		state = result

		next, err := r.nextNode(ctx, current, state)
		if err != nil {
			return state, err
		}

		if config != nil && slices.Contains(config.InterruptAfter, current) {
			return state, &GraphInterrupt{Node: current, State: state, NextNodes: []string{next}}
		}

		current = next
	}

	return state, nil
}

// executeNode runs a single node, converting panics into errors.
func (r *StateRunnable[S]) executeNode(ctx context.Context, node Node[S], state S) (result S, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in node %s: %v", node.Name, p)
		}
	}()
	return node.Function(ctx, state)
}

// nextNode determines the node following "current", preferring a conditional
// edge over static edges.
func (r *StateRunnable[S]) nextNode(ctx context.Context, current string, state S) (string, error) {
	if condition, ok := r.graph.conditionalEdges[current]; ok {
		next := condition(ctx, state)
		if next == "" {
			return "", fmt.Errorf("conditional edge returned empty next node from %s", current)
		}
		return next, nil
	}

	for _, edge := range r.graph.edges {
		if edge.From == current {
			return edge.To, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrNoOutgoingEdge, current)
}
