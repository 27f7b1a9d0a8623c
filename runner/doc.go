// Package runner orchestrates snippet validation, execution and retry.
//
// A Runner validates a snippet exactly once, then drives the sandbox
// engine through up to MaxAttempts strictly sequential executions of the
// identical snippet text. Invalid snippets are rejected before the engine
// is ever touched; non-retryable faults stop the loop on the spot;
// retryable faults are logged and absorbed until the attempt budget runs
// out. On success the runner renders the outcome to the final reply text
// (fixed two-decimal floats, True/False booleans, "No result produced."
// when the snippet left nothing behind).
//
// Failures come back as typed errors: *ValidationError carries every
// static violation, *ExecutionError carries the last engine outcome, so
// callers can distinguish a rejected snippet from one that ran and died.
package runner
