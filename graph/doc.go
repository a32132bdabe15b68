// Package graph implements a small state-graph execution engine for
// conversation flows.
//
// A graph is a set of named nodes connected by static or conditional edges.
// Each node receives the current state and returns an updated state. A node
// may pause the run by calling Interrupt, which surfaces as a *GraphInterrupt
// to the caller; the run can later be re-entered at the interrupted node with
// Config.ResumeFrom and Config.ResumeValue. The pause is pure data (node name
// plus state snapshot), so it can be persisted and resumed in a different
// process.
package graph
