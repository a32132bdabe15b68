// Package writer implements the blog pipeline: a research node gathers web
// search material for a topic and a write node turns it into a markdown
// draft. The pipeline runs on the same graph engine as the conversation flow,
// just without suspend points.
package writer

import (
	"context"
	"fmt"
	"strings"

	"github.com/mayadakhatib/langgraph-crewai/chat"
	"github.com/mayadakhatib/langgraph-crewai/graph"
	"github.com/mayadakhatib/langgraph-crewai/log"
	"github.com/mayadakhatib/langgraph-crewai/tool"
)

const (
	nodeResearch = "research"
	nodeWrite    = "write"
)

// Searcher gathers web material for a topic.
type Searcher interface {
	Search(ctx context.Context, query string) ([]tool.Result, error)
}

type pipelineState struct {
	Topic    string
	Research string
	Draft    string
}

// Pipeline produces a blog draft for a topic.
type Pipeline struct {
	searcher Searcher
	gen      chat.Generator
	logger   log.Logger
	runnable *graph.StateRunnable[pipelineState]
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithPipelineLogger sets the pipeline logger.
func WithPipelineLogger(logger log.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = logger }
}

// NewPipeline creates the research+write pipeline. The generator is required;
// the searcher may be nil, in which case the write node works without
// research material.
func NewPipeline(searcher Searcher, gen chat.Generator, opts ...PipelineOption) (*Pipeline, error) {
	if gen == nil {
		return nil, fmt.Errorf("writer: generator is required")
	}

	p := &Pipeline{
		searcher: searcher,
		gen:      gen,
		logger:   log.GetDefaultLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}

	g := graph.NewStateGraph[pipelineState]()
	g.AddNode(nodeResearch, "Gathers web search material for the topic", p.research)
	g.AddNode(nodeWrite, "Writes the markdown draft from the research notes", p.write)
	g.SetEntryPoint(nodeResearch)
	g.AddEdge(nodeResearch, nodeWrite)
	g.AddEdge(nodeWrite, graph.END)

	runnable, err := g.Compile()
	if err != nil {
		return nil, fmt.Errorf("failed to compile writer graph: %w", err)
	}
	p.runnable = runnable

	return p, nil
}

// Write runs the pipeline and returns the markdown draft.
func (p *Pipeline) Write(ctx context.Context, topic string) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", fmt.Errorf("%w: topic is required", chat.ErrValidation)
	}

	out, err := p.runnable.InvokeWithConfig(ctx, pipelineState{Topic: topic}, nil)
	if err != nil {
		return "", err
	}
	return out.Draft, nil
}

// research collects search hits. Search failures are not fatal: the write
// node can still produce a draft from the topic alone.
func (p *Pipeline) research(ctx context.Context, s pipelineState) (pipelineState, error) {
	if p.searcher == nil {
		return s, nil
	}

	results, err := p.searcher.Search(ctx, s.Topic)
	if err != nil {
		p.logger.Warn("research for %q failed, writing without material: %v", s.Topic, err)
		return s, nil
	}

	var sb strings.Builder
	for _, r := range results {
		fmt.Fprintf(&sb, "- %s (%s): %s\n", r.Title, r.URL, r.Snippet)
	}
	s.Research = sb.String()
	p.logger.Debug("research for %q collected %d results", s.Topic, len(results))
	return s, nil
}

// write asks the generator for the draft. A generation failure fails the
// pipeline; the caller decides how to present it.
func (p *Pipeline) write(ctx context.Context, s pipelineState) (pipelineState, error) {
	prompt := fmt.Sprintf(
		"Write a blog post of roughly 300 words about %q.\n"+
			"Structure it in Markdown with a title, a short introduction, body sections, and a conclusion.",
		s.Topic)
	if s.Research != "" {
		prompt += "\n\nBase it on these research notes:\n" + s.Research
	}

	draft, err := p.gen.Generate(ctx, []chat.Message{
		{Role: chat.RoleSystem, Content: "You are a professional content writer."},
		{Role: chat.RoleUser, Content: prompt},
	})
	if err != nil {
		return s, fmt.Errorf("%w: %v", chat.ErrUpstream, err)
	}

	s.Draft = draft
	return s, nil
}
