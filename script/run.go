package script

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/tablab/databox/tabular"
	"github.com/tablab/databox/validate"
)

// Params configures one in-process execution.
type Params struct {
	// Snippet is the validated source text.
	Snippet string
	// Frame is this execution's own copy of the dataset. Snippets may
	// mutate it freely; nothing outside the call observes the changes
	// unless the caller shares the frame deliberately.
	Frame *tabular.Frame
	// OutputLimit caps rendered output characters; zero means the default.
	OutputLimit int
	// MaxSteps bounds abstract interpreter steps; zero means unlimited.
	MaxSteps uint64
}

// Result is the outcome of one in-process execution.
type Result struct {
	OK         bool   `json:"ok"`
	Value      Value  `json:"value"`
	ErrMessage string `json:"error,omitempty"`
	Retryable  bool   `json:"retryable,omitempty"`
}

// Run executes a snippet against the frame and classifies what comes
// back. It never panics: faults of any kind become a failed Result.
// Run provides no isolation; the sandbox package wraps it in a separate
// process with a memory ceiling and an external timeout.
func Run(params Params) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{ErrMessage: fmt.Sprintf("execution panicked: %v", r)}
		}
	}()

	modules := helperModules()
	thread := &starlark.Thread{
		Name:  "snippet",
		Print: func(*starlark.Thread, string) {}, // print output is discarded
		Load:  loadHook(modules),
	}
	if params.MaxSteps > 0 {
		thread.SetMaxExecutionSteps(params.MaxSteps)
	}

	globals, err := starlark.ExecFileOptions(
		validate.FileOptions(), thread, "snippet.star",
		params.Snippet, predeclared(params.Frame, modules))
	if err != nil {
		retryable, message := Classify(err)
		return Result{ErrMessage: message, Retryable: retryable}
	}

	return Result{OK: true, Value: FromStarlark(globals["result"], params.OutputLimit)}
}
