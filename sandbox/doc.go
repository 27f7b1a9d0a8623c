// Package sandbox provides isolated execution of analysis snippets.
//
// The sandbox package implements the execution engine for running untrusted
// snippets in isolation. Every call spawns one fresh worker process: the
// parent re-executes its own binary with a marker environment variable,
// ships the snippet and a copy of the dataset over the worker's stdin as
// JSON, and reads a JSON outcome back from its stdout. The worker caps its
// own address space (RLIMIT_AS at its measured baseline plus configurable
// headroom) before running the snippet; the parent enforces the wall-clock
// timeout from outside by killing the child, so a runaway snippet cannot
// outlive its deadline regardless of what it does in-process.
//
// Engines never return an error and never panic across the Execute
// boundary: timeouts, memory kills, crashes and snippet faults all come
// back folded into an Outcome value.
//
// Usage:
//
//	engine := sandbox.NewProcessEngine(logger,
//	    sandbox.WithTimeout(5*time.Second),
//	    sandbox.WithMemoryHeadroomMB(1024),
//	)
//	outcome := engine.Execute(ctx, sandbox.Request{
//	    Snippet: `result = dataset["Age"].mean()`,
//	    Frame:   frame,
//	})
package sandbox
