package sandbox

import (
	"context"
	"time"

	"github.com/tablab/databox/script"
	"github.com/tablab/databox/tabular"
)

// Request represents the parameters for one snippet execution.
type Request struct {
	// Snippet is the statically validated source text.
	Snippet string
	// Frame is the dataset the snippet runs against. The engine ships a
	// serialized copy to the worker; the caller's frame is never shared.
	Frame *tabular.Frame
	// Timeout overrides the engine's configured timeout when positive.
	Timeout time.Duration
}

// Outcome represents the result of one snippet execution. Every failure
// mode is folded into the value: not-OK outcomes carry a message and a
// retryable flag, and tabular or row-shaped results arrive already
// rendered to text by the worker.
type Outcome struct {
	OK         bool
	Value      script.Value
	ErrMessage string
	Retryable  bool
	Elapsed    time.Duration
}

// Engine defines the interface for isolated snippet execution. Execute
// never returns an error and never panics: callers always get an Outcome.
type Engine interface {
	Execute(ctx context.Context, req Request) Outcome
}
