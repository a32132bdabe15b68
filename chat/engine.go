// Package chat implements the resumable conversation engine. A conversation
// thread runs a fixed two-node graph (await_input -> process): the first node
// pauses for human input, the second derives an assistant acknowledgment and
// completes the thread. The pause is persisted as a checkpoint keyed by
// thread id, so the engine is reconstructed per request and resumes exactly
// where the thread left off, even across process restarts.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mayadakhatib/langgraph-crewai/graph"
	"github.com/mayadakhatib/langgraph-crewai/log"
	"github.com/mayadakhatib/langgraph-crewai/store"
)

// Node names of the conversation graph.
const (
	nodeAwaitInput = "await_input"
	nodeProcess    = "process"
)

// inputPrompt is the payload carried by the await_input suspension. It is not
// persisted: it is reconstructed from the checkpoint's node name on demand.
const inputPrompt = "I need your input to continue. Please provide your response."

// Generator produces assistant text from the conversation so far. It is an
// opaque external collaborator; failures are absorbed into the conversation.
type Generator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, messages []Message) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, messages []Message) (string, error) {
	return f(ctx, messages)
}

// Status reports how a Start or Resume call left the thread.
type Status string

const (
	// StatusInterrupted means the thread is paused waiting for input.
	StatusInterrupted Status = "interrupted"

	// StatusCompleted means the thread just reached its end state.
	StatusCompleted Status = "completed"

	// StatusAlreadyCompleted means the thread had finished earlier; the
	// stored state is returned without re-executing anything.
	StatusAlreadyCompleted Status = "already_completed"
)

// Result is the outcome of a Start or Resume call.
type Result struct {
	ThreadID string
	Status   Status
	// Prompt carries the interrupt payload when Status is StatusInterrupted.
	Prompt string
	State  State
}

// Snapshot is a read-only view of a thread, as returned by GetState.
type Snapshot struct {
	ThreadID  string
	State     State
	NextSteps []string
	CreatedAt time.Time
	Step      int
}

// ThreadPhase classifies a thread for the HTTP dispatch rule.
type ThreadPhase int

const (
	// ThreadUnknown means no checkpoint exists for the thread.
	ThreadUnknown ThreadPhase = iota
	// ThreadLive means a non-terminal checkpoint is waiting for resume.
	ThreadLive
	// ThreadDone means the thread reached its terminal checkpoint.
	ThreadDone
)

// Engine executes conversation threads against a checkpoint store. The store
// is the single source of truth for thread state; the engine itself keeps no
// thread registry, only short-lived per-thread locks that serialize
// concurrent requests for the same thread id.
type Engine struct {
	store    store.CheckpointStore
	gen      Generator
	runnable *graph.StateRunnable[State]
	logger   log.Logger

	mu      sync.Mutex
	threads map[string]*sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithGenerator sets the external text generator used by the process node.
// Without one the engine derives a canned acknowledgment.
func WithGenerator(gen Generator) Option {
	return func(e *Engine) { e.gen = gen }
}

// WithLogger sets the engine logger.
func WithLogger(logger log.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates an engine backed by the given checkpoint store.
func NewEngine(cs store.CheckpointStore, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:   cs,
		logger:  log.GetDefaultLogger(),
		threads: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}

	g := graph.NewStateGraph[State]()
	g.AddNode(nodeAwaitInput, "Requests human input and pauses until it arrives", e.awaitInput)
	g.AddNode(nodeProcess, "Derives the assistant acknowledgment and completes the thread", e.process)
	g.SetEntryPoint(nodeAwaitInput)
	g.AddEdge(nodeAwaitInput, nodeProcess)
	g.AddEdge(nodeProcess, graph.END)

	runnable, err := g.Compile()
	if err != nil {
		return nil, fmt.Errorf("failed to compile conversation graph: %w", err)
	}
	e.runnable = runnable

	return e, nil
}

// awaitInput pauses for human input. On resume it records both sides of the
// exchange: the assistant prompt and the user's reply.
func (e *Engine) awaitInput(ctx context.Context, s State) (State, error) {
	input, err := graph.Interrupt(ctx, inputPrompt)
	if err != nil {
		return s, err
	}

	s.Messages = append(s.Messages,
		Message{Role: RoleAssistant, Content: inputPrompt},
		Message{Role: RoleUser, Content: fmt.Sprint(input)},
	)
	return s, nil
}

// process appends the assistant acknowledgment and marks the thread done.
func (e *Engine) process(ctx context.Context, s State) (State, error) {
	input := s.LastUserInput()

	reply := fmt.Sprintf("Thank you for your input: '%s'. Processing complete!", input)
	if e.gen != nil {
		generated, err := e.gen.Generate(ctx, s.Messages)
		if err != nil {
			// Upstream failures are not fatal: the thread stays usable and
			// the failure becomes part of the conversation.
			e.logger.Warn("generation failed, continuing with synthetic reply: %v",
				fmt.Errorf("%w: %v", ErrUpstream, err))
			reply = fmt.Sprintf("I ran into a problem while processing your input '%s'. %s",
				input, "The conversation can continue.")
		} else {
			reply = generated
		}
	}

	s.Messages = append(s.Messages, Message{Role: RoleAssistant, Content: reply})
	s.ProcessingComplete = true
	return s, nil
}

// Start creates a thread and executes it until the first suspend point. An
// empty threadID generates a fresh id. If a checkpoint already exists for the
// id, the thread is NOT re-initialized: a live checkpoint yields the recorded
// prompt again, a terminal one yields the stored completed state.
func (e *Engine) Start(ctx context.Context, threadID string) (*Result, error) {
	if threadID == "" {
		threadID = uuid.NewString()
	}

	unlock := e.lockThread(threadID)
	defer unlock()

	cp, err := e.store.Load(ctx, threadID)
	switch {
	case err == nil:
		var st State
		if decErr := cp.DecodeState(&st); decErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, decErr)
		}
		if cp.Terminal() {
			return &Result{ThreadID: threadID, Status: StatusAlreadyCompleted, State: st}, nil
		}
		e.logger.Debug("start on in-flight thread %s, returning pending prompt", threadID)
		return &Result{ThreadID: threadID, Status: StatusInterrupted, Prompt: promptFor(cp.NodeName), State: st}, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	e.logger.Info("starting new conversation thread %s", threadID)
	return e.run(ctx, threadID, NewState(), graph.WithThreadID(threadID))
}

// Resume feeds input into a paused thread at its recorded suspension point.
func (e *Engine) Resume(ctx context.Context, threadID, input string) (*Result, error) {
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("%w: user_input is required to resume", ErrValidation)
	}

	unlock := e.lockThread(threadID)
	defer unlock()

	cp, err := e.store.Load(ctx, threadID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, threadID)
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	var st State
	if err := cp.DecodeState(&st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if cp.Terminal() {
		return &Result{ThreadID: threadID, Status: StatusAlreadyCompleted, State: st}, nil
	}

	e.logger.Info("resuming thread %s at node %s", threadID, cp.NodeName)
	config := graph.WithThreadID(threadID)
	config.ResumeFrom = []string{cp.NodeName}
	config.ResumeValue = input
	return e.run(ctx, threadID, st, config)
}

// run executes the graph forward until the next suspend point or END, and
// persists the resulting checkpoint.
func (e *Engine) run(ctx context.Context, threadID string, st State, config *graph.Config) (*Result, error) {
	out, err := e.runnable.InvokeWithConfig(ctx, st, config)

	var interrupt *graph.GraphInterrupt
	if errors.As(err, &interrupt) {
		paused, ok := interrupt.State.(State)
		if !ok {
			return nil, fmt.Errorf("unexpected state type %T at interrupt", interrupt.State)
		}
		if err := e.save(ctx, threadID, interrupt.Node, paused); err != nil {
			return nil, err
		}

		prompt := promptFor(interrupt.Node)
		if interrupt.InterruptValue != nil {
			prompt = fmt.Sprint(interrupt.InterruptValue)
		}
		return &Result{ThreadID: threadID, Status: StatusInterrupted, Prompt: prompt, State: paused}, nil
	}
	if err != nil {
		return nil, err
	}

	if err := e.save(ctx, threadID, "", out); err != nil {
		return nil, err
	}
	return &Result{ThreadID: threadID, Status: StatusCompleted, State: out}, nil
}

// save persists a checkpoint. An empty nodeName marks the thread terminal.
func (e *Engine) save(ctx context.Context, threadID, nodeName string, st State) error {
	cp := &store.Checkpoint{
		ThreadID:  threadID,
		NodeName:  nodeName,
		Timestamp: time.Now().UTC(),
	}
	if err := cp.EncodeState(st); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := e.store.Save(ctx, cp); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// GetState returns a read-only snapshot of a thread.
func (e *Engine) GetState(ctx context.Context, threadID string) (*Snapshot, error) {
	cp, err := e.store.Load(ctx, threadID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, threadID)
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	var st State
	if err := cp.DecodeState(&st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	var next []string
	if !cp.Terminal() {
		next = []string{cp.NodeName}
	}
	return &Snapshot{
		ThreadID:  threadID,
		State:     st,
		NextSteps: next,
		CreatedAt: cp.Timestamp,
		Step:      cp.Version,
	}, nil
}

// ThreadStatus classifies a thread for dispatching.
func (e *Engine) ThreadStatus(ctx context.Context, threadID string) (ThreadPhase, error) {
	cp, err := e.store.Load(ctx, threadID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ThreadUnknown, nil
		}
		return ThreadUnknown, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if cp.Terminal() {
		return ThreadDone, nil
	}
	return ThreadLive, nil
}

// DeleteThread removes a thread's checkpoints and returns the removed count.
// Deleting an unknown thread returns 0, not an error.
func (e *Engine) DeleteThread(ctx context.Context, threadID string) (int64, error) {
	unlock := e.lockThread(threadID)
	defer unlock()

	count, err := e.store.Delete(ctx, threadID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if count > 0 {
		e.logger.Info("deleted thread %s (%d checkpoints)", threadID, count)
	}
	return count, nil
}

// lockThread serializes execution per thread id: a concurrent resume on the
// same thread waits rather than racing the checkpoint write.
func (e *Engine) lockThread(threadID string) func() {
	e.mu.Lock()
	m, ok := e.threads[threadID]
	if !ok {
		m = &sync.Mutex{}
		e.threads[threadID] = m
	}
	e.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// promptFor reconstructs the interrupt payload for a paused node.
func promptFor(nodeName string) string {
	switch nodeName {
	case nodeAwaitInput:
		return inputPrompt
	default:
		return "Please provide your response:"
	}
}
