package graph

import "context"

// Config carries per-invocation options for a compiled graph.
type Config struct {
	// Configurable holds free-form invocation metadata such as "thread_id".
	Configurable map[string]any

	// ResumeFrom restarts execution at the given node instead of the entry
	// point. Used together with ResumeValue to continue an interrupted run.
	ResumeFrom []string

	// ResumeValue is handed to the first Interrupt call of the run.
	ResumeValue any

	// InterruptBefore pauses execution before any of the listed nodes run.
	InterruptBefore []string

	// InterruptAfter pauses execution after any of the listed nodes ran.
	InterruptAfter []string
}

// WithThreadID creates a Config with the given thread_id set in the
// configurable map.
func WithThreadID(threadID string) *Config {
	return &Config{
		Configurable: map[string]any{
			"thread_id": threadID,
		},
	}
}

type resumeValueKey struct{}

// resumeHolder makes the resume value single-shot: once a node consumed it
// through Interrupt, later Interrupt calls in the same run pause again.
type resumeHolder struct {
	value any
}

// WithResumeValue adds a resume value to the context. The value is returned
// by the first Interrupt() call during re-execution.
func WithResumeValue(ctx context.Context, value any) context.Context {
	return context.WithValue(ctx, resumeValueKey{}, &resumeHolder{value: value})
}

func takeResumeValue(ctx context.Context) any {
	h, ok := ctx.Value(resumeValueKey{}).(*resumeHolder)
	if !ok || h.value == nil {
		return nil
	}
	v := h.value
	h.value = nil
	return v
}
