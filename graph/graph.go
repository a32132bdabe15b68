package graph

import (
	"context"
	"errors"
	"fmt"
)

// END is a special node name that terminates execution.
const END = "END"

var (
	// ErrEntryPointNotSet is returned when the entry point of the graph is not set.
	ErrEntryPointNotSet = errors.New("entry point not set")

	// ErrNodeNotFound is returned when a node is not found in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNoOutgoingEdge is returned when no outgoing edge is found for a node.
	ErrNoOutgoingEdge = errors.New("no outgoing edge found for node")
)

// Node is a named unit of work in the graph.
type Node[S any] struct {
	// Name is the unique identifier for the node.
	Name string

	// Description describes the functionality of the node.
	Description string

	// Function receives the current state and returns the updated state.
	Function func(ctx context.Context, state S) (S, error)
}

// Edge connects two nodes by name.
type Edge struct {
	From string
	To   string
}

// NodeInterrupt is returned by a node that requests a pause (e.g. waiting
// for human input). The runner wraps it into a GraphInterrupt.
type NodeInterrupt struct {
	// Node is the name of the node that triggered the interrupt.
	Node string
	// Value is the payload carried by the interrupt, typically a prompt.
	Value any
}

func (e *NodeInterrupt) Error() string {
	return fmt.Sprintf("interrupt at node %s: %v", e.Node, e.Value)
}

// GraphInterrupt is returned by Invoke when execution pauses. It carries
// everything needed to resume later: the interrupted node, the state at the
// time of the pause and the interrupt payload.
type GraphInterrupt struct {
	// Node that caused the interruption.
	Node string
	// State at the time of interruption.
	State any
	// NextNodes to execute on resume.
	NextNodes []string
	// InterruptValue is the payload provided by the interrupting node.
	InterruptValue any
}

func (e *GraphInterrupt) Error() string {
	if e.InterruptValue != nil {
		return fmt.Sprintf("graph interrupted at node %s with value: %v", e.Node, e.InterruptValue)
	}
	return fmt.Sprintf("graph interrupted at node %s", e.Node)
}

// Interrupt pauses execution and waits for input. On the first pass it
// returns a NodeInterrupt error that aborts the run. When the node is
// re-executed with a resume value in the context, it returns that value
// instead and the node continues. The resume value is consumed: a second
// Interrupt call in the same run pauses again.
func Interrupt(ctx context.Context, value any) (any, error) {
	if resumeVal := takeResumeValue(ctx); resumeVal != nil {
		return resumeVal, nil
	}
	return nil, &NodeInterrupt{Value: value}
}
