package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mayadakhatib/langgraph-crewai/log"
	"github.com/mayadakhatib/langgraph-crewai/store"
	"github.com/mayadakhatib/langgraph-crewai/store/memory"
)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *memory.MemoryCheckpointStore) {
	t.Helper()
	cs := memory.NewMemoryCheckpointStore()
	opts = append(opts, WithLogger(&log.NoOpLogger{}))
	e, err := NewEngine(cs, opts...)
	require.NoError(t, err)
	return e, cs
}

func TestEngine_StartPausesForInput(t *testing.T) {
	e, _ := newTestEngine(t)

	res, err := e.Start(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, "t1", res.ThreadID)
	assert.Equal(t, StatusInterrupted, res.Status)
	assert.Equal(t, "I need your input to continue. Please provide your response.", res.Prompt)
	assert.Empty(t, res.State.Messages)
	assert.False(t, res.State.ProcessingComplete)
}

func TestEngine_StartGeneratesThreadID(t *testing.T) {
	e, _ := newTestEngine(t)

	res, err := e.Start(context.Background(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, res.ThreadID)

	// A second empty-id start must get its own thread.
	res2, err := e.Start(context.Background(), "")
	require.NoError(t, err)
	assert.NotEqual(t, res.ThreadID, res2.ThreadID)
}

func TestEngine_ResumeCompletesThread(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Start(ctx, "t1")
	require.NoError(t, err)

	res, err := e.Resume(ctx, "t1", "hello there")
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, res.Status)
	assert.True(t, res.State.ProcessingComplete)

	// Order: prompt, user input, acknowledgment.
	require.Len(t, res.State.Messages, 3)
	assert.Equal(t, RoleAssistant, res.State.Messages[0].Role)
	assert.Equal(t, RoleUser, res.State.Messages[1].Role)
	assert.Equal(t, "hello there", res.State.Messages[1].Content)
	assert.Equal(t, RoleAssistant, res.State.Messages[2].Role)
	assert.Contains(t, res.State.Messages[2].Content, "hello there")
}

func TestEngine_ResumeEmptyInput(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Start(ctx, "t1")
	require.NoError(t, err)

	for _, input := range []string{"", "   ", "\n\t"} {
		_, err := e.Resume(ctx, "t1", input)
		assert.ErrorIs(t, err, ErrValidation, "input %q", input)
	}

	// The thread is still paused and resumable afterwards.
	res, err := e.Resume(ctx, "t1", "real input")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
}

func TestEngine_ResumeUnknownThread(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Resume(context.Background(), "nope", "hello")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEngine_ResumeValidatesBeforeLookup(t *testing.T) {
	e, _ := newTestEngine(t)

	// Empty input on an unknown thread: validation wins.
	_, err := e.Resume(context.Background(), "nope", "  ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestEngine_StartOnLiveThreadDoesNotReset(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := e.Start(ctx, "t1")
	require.NoError(t, err)

	again, err := e.Start(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, StatusInterrupted, again.Status)
	assert.Equal(t, first.Prompt, again.Prompt)

	res, err := e.Resume(ctx, "t1", "still works")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
}

func TestEngine_CompletedThreadIsIdempotent(t *testing.T) {
	e, cs := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Start(ctx, "t1")
	require.NoError(t, err)
	done, err := e.Resume(ctx, "t1", "input")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, done.Status)

	cpBefore, err := cs.Load(ctx, "t1")
	require.NoError(t, err)

	// Both start and resume on a completed thread report already_completed
	// with the stored state, and write nothing.
	res, err := e.Start(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyCompleted, res.Status)
	assert.Equal(t, done.State, res.State)

	res, err = e.Resume(ctx, "t1", "more input")
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyCompleted, res.Status)
	assert.Equal(t, done.State, res.State)

	cpAfter, err := cs.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, cpBefore.Version, cpAfter.Version)
}

func TestEngine_ResumeAcrossEngineInstances(t *testing.T) {
	cs := memory.NewMemoryCheckpointStore()
	ctx := context.Background()

	e1, err := NewEngine(cs, WithLogger(&log.NoOpLogger{}))
	require.NoError(t, err)
	_, err = e1.Start(ctx, "t1")
	require.NoError(t, err)

	// A fresh engine over the same store picks up the paused thread.
	e2, err := NewEngine(cs, WithLogger(&log.NoOpLogger{}))
	require.NoError(t, err)
	res, err := e2.Resume(ctx, "t1", "after restart")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Contains(t, res.State.Messages[2].Content, "after restart")
}

func TestEngine_GeneratorReply(t *testing.T) {
	gen := GeneratorFunc(func(ctx context.Context, messages []Message) (string, error) {
		return "generated: " + messages[len(messages)-1].Content, nil
	})
	e, _ := newTestEngine(t, WithGenerator(gen))
	ctx := context.Background()

	_, err := e.Start(ctx, "t1")
	require.NoError(t, err)
	res, err := e.Resume(ctx, "t1", "question")
	require.NoError(t, err)

	assert.Equal(t, "generated: question", res.State.Messages[2].Content)
}

func TestEngine_GeneratorFailureIsNotFatal(t *testing.T) {
	gen := GeneratorFunc(func(ctx context.Context, messages []Message) (string, error) {
		return "", errors.New("model unavailable")
	})
	e, _ := newTestEngine(t, WithGenerator(gen))
	ctx := context.Background()

	_, err := e.Start(ctx, "t1")
	require.NoError(t, err)
	res, err := e.Resume(ctx, "t1", "question")
	require.NoError(t, err)

	// The thread still completes with a synthetic assistant message that
	// quotes the input.
	assert.Equal(t, StatusCompleted, res.Status)
	assert.True(t, res.State.ProcessingComplete)
	last := res.State.Messages[len(res.State.Messages)-1]
	assert.Equal(t, RoleAssistant, last.Role)
	assert.Contains(t, last.Content, "question")
}

func TestEngine_GetState(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.GetState(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.Start(ctx, "t1")
	require.NoError(t, err)

	snap, err := e.GetState(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", snap.ThreadID)
	assert.Equal(t, []string{"await_input"}, snap.NextSteps)
	assert.False(t, snap.State.ProcessingComplete)
	assert.False(t, snap.CreatedAt.IsZero())
	assert.Equal(t, 1, snap.Step)

	_, err = e.Resume(ctx, "t1", "input")
	require.NoError(t, err)

	snap, err = e.GetState(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, snap.NextSteps)
	assert.True(t, snap.State.ProcessingComplete)
	assert.Equal(t, 2, snap.Step)
}

func TestEngine_ThreadStatus(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	phase, err := e.ThreadStatus(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, ThreadUnknown, phase)

	_, err = e.Start(ctx, "t1")
	require.NoError(t, err)
	phase, err = e.ThreadStatus(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, ThreadLive, phase)

	_, err = e.Resume(ctx, "t1", "input")
	require.NoError(t, err)
	phase, err = e.ThreadStatus(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, ThreadDone, phase)
}

func TestEngine_DeleteThread(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	count, err := e.DeleteThread(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = e.Start(ctx, "t1")
	require.NoError(t, err)

	count, err = e.DeleteThread(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = e.Resume(ctx, "t1", "input")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEngine_ThreadsAreIsolated(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Start(ctx, "a")
	require.NoError(t, err)
	_, err = e.Start(ctx, "b")
	require.NoError(t, err)

	resA, err := e.Resume(ctx, "a", "for a")
	require.NoError(t, err)
	assert.Contains(t, resA.State.Messages[1].Content, "for a")

	// Thread b is untouched by a's resume.
	snap, err := e.GetState(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, snap.State.Messages)
	assert.Equal(t, []string{"await_input"}, snap.NextSteps)

	resB, err := e.Resume(ctx, "b", "for b")
	require.NoError(t, err)
	assert.Equal(t, "for b", resB.State.Messages[1].Content)
}

func TestEngine_ConcurrentThreads(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	errCh := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("thread-%d", i)
			if _, err := e.Start(ctx, id); err != nil {
				errCh <- err
				return
			}
			res, err := e.Resume(ctx, id, fmt.Sprintf("input-%d", i))
			if err != nil {
				errCh <- err
				return
			}
			if !strings.Contains(res.State.Messages[2].Content, fmt.Sprintf("input-%d", i)) {
				errCh <- fmt.Errorf("thread %s got foreign acknowledgment %q", id, res.State.Messages[2].Content)
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Error(err)
	}
}

func TestEngine_PersistenceErrorsAreWrapped(t *testing.T) {
	e, err := NewEngine(&failingStore{}, WithLogger(&log.NoOpLogger{}))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = e.Start(ctx, "t1")
	assert.ErrorIs(t, err, ErrPersistence)

	_, err = e.Resume(ctx, "t1", "input")
	assert.ErrorIs(t, err, ErrPersistence)

	_, err = e.GetState(ctx, "t1")
	assert.ErrorIs(t, err, ErrPersistence)

	_, err = e.DeleteThread(ctx, "t1")
	assert.ErrorIs(t, err, ErrPersistence)
}

type failingStore struct{}

func (f *failingStore) Save(ctx context.Context, cp *store.Checkpoint) error {
	return errors.New("disk full")
}

func (f *failingStore) Load(ctx context.Context, threadID string) (*store.Checkpoint, error) {
	return nil, errors.New("disk full")
}

func (f *failingStore) ListThreads(ctx context.Context) ([]string, error) {
	return nil, errors.New("disk full")
}

func (f *failingStore) Delete(ctx context.Context, threadID string) (int64, error) {
	return 0, errors.New("disk full")
}

func TestEngine_CheckpointTimestampsAreUTC(t *testing.T) {
	e, cs := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Start(ctx, "t1")
	require.NoError(t, err)

	cp, err := cs.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, cp.Timestamp.Location())
}
