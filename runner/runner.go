package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tablab/databox/sandbox"
	"github.com/tablab/databox/tabular"
	"github.com/tablab/databox/validate"
)

// DefaultMaxAttempts bounds sequential executions of one snippet.
const DefaultMaxAttempts = 3

// ValidationError reports a snippet rejected by static validation. The
// engine was never touched and nothing counted as an attempt.
type ValidationError struct {
	Violations []validate.Violation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "snippet validation failed"
	}
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Message
	}
	return "snippet validation failed: " + strings.Join(msgs, "; ")
}

// ExecutionError reports a snippet that passed validation but failed in
// the engine. Outcome is the last attempt's result.
type ExecutionError struct {
	Outcome  sandbox.Outcome
	Attempts int
}

func (e *ExecutionError) Error() string {
	if e.Attempts == 1 {
		return fmt.Sprintf("execution failed after 1 attempt: %s", e.Outcome.ErrMessage)
	}
	return fmt.Sprintf("execution failed after %d attempts: %s", e.Attempts, e.Outcome.ErrMessage)
}

// Option adjusts one Run call, or the runner's defaults when passed to
// NewRunner.
type Option func(*runOptions)

type runOptions struct {
	maxAttempts int
	timeout     time.Duration
}

// WithMaxAttempts overrides the attempt budget.
func WithMaxAttempts(n int) Option {
	return func(o *runOptions) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithTimeout overrides the engine's per-execution deadline. Zero keeps
// the engine's configured timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *runOptions) {
		o.timeout = d
	}
}

// Runner validates snippets and drives the engine with retry.
type Runner struct {
	logger   *zap.Logger
	engine   sandbox.Engine
	defaults runOptions
}

// NewRunner creates a Runner around an engine. Options set the defaults
// applied to every Run call.
func NewRunner(logger *zap.Logger, engine sandbox.Engine, opts ...Option) *Runner {
	r := &Runner{
		logger:   logger,
		engine:   engine,
		defaults: runOptions{maxAttempts: DefaultMaxAttempts},
	}
	for _, opt := range opts {
		opt(&r.defaults)
	}
	return r
}

// Run validates the snippet once, executes it up to the attempt budget
// and renders the final reply text. The snippet text is identical on
// every attempt; retry exists to absorb transient faults, not to revise
// code. Returned errors are *ValidationError or *ExecutionError.
func (r *Runner) Run(ctx context.Context, snippet string, frame *tabular.Frame, columns validate.ColumnSet, opts ...Option) (string, error) {
	cfg := r.defaults
	for _, opt := range opts {
		opt(&cfg)
	}

	check := validate.Check(snippet, columns)
	if !check.Valid {
		r.logger.Info("snippet rejected",
			zap.Int("violations", len(check.Violations)))
		return "", &ValidationError{Violations: check.Violations}
	}

	var last sandbox.Outcome
	attempts := 0
	for attempt := 1; attempt <= cfg.maxAttempts; attempt++ {
		attempts = attempt
		last = r.engine.Execute(ctx, sandbox.Request{
			Snippet: snippet,
			Frame:   frame,
			Timeout: cfg.timeout,
		})
		if last.OK {
			if attempt > 1 {
				r.logger.Info("snippet succeeded on retry",
					zap.Int("attempt", attempt))
			}
			return Render(last.Value), nil
		}
		if !last.Retryable {
			break
		}
		if attempt < cfg.maxAttempts {
			r.logger.Warn("retrying snippet",
				zap.Int("attempt", attempt),
				zap.String("error", last.ErrMessage))
		}
	}

	r.logger.Info("snippet execution gave up",
		zap.Int("attempts", attempts),
		zap.Bool("retryable", last.Retryable),
		zap.String("error", last.ErrMessage))
	return "", &ExecutionError{Outcome: last, Attempts: attempts}
}
