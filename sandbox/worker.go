package sandbox

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/tablab/databox/script"
	"github.com/tablab/databox/tabular"
)

// workerEnvVar marks a process as a sandbox worker. The parent sets it
// when re-executing its own binary; main dispatches on it before any
// other startup work.
const workerEnvVar = "DATABOX_SANDBOX_WORKER"

// workerRequest is the JSON document the parent writes to the worker's
// stdin. The frame rides along serialized, so the worker always executes
// against its own copy of the dataset.
type workerRequest struct {
	Snippet     string         `json:"snippet"`
	Frame       *tabular.Frame `json:"frame"`
	HeadroomMB  int            `json:"headroom_mb"`
	OutputLimit int            `json:"output_limit"`
	MaxSteps    uint64         `json:"max_steps"`
}

// IsWorkerProcess reports whether this process was spawned as a sandbox
// worker.
func IsWorkerProcess() bool {
	return os.Getenv(workerEnvVar) == "1"
}

// WorkerMain runs the worker side of the protocol: decode the request,
// cap the address space, execute the snippet, write the result as JSON.
// The returned value is the process exit code. Snippet faults are not
// protocol faults: they ride back inside the result with exit code 0.
//
// Stdout is reserved for the result document; snippet print output is
// already discarded by the execution environment.
func WorkerMain(stdin io.Reader, stdout io.Writer) int {
	var req workerRequest
	if err := json.NewDecoder(stdin).Decode(&req); err != nil {
		writeResult(stdout, script.Result{
			ErrMessage: fmt.Sprintf("worker: decode request: %v", err),
		})
		return 1
	}

	// The request is fully decoded, so the dataset is resident and the
	// baseline measured next reflects it. Headroom on top of that is all
	// the snippet gets.
	if err := applyMemoryCeiling(req.HeadroomMB); err != nil {
		writeResult(stdout, script.Result{
			ErrMessage: fmt.Sprintf("worker: apply memory ceiling: %v", err),
		})
		return 1
	}

	res := script.Run(script.Params{
		Snippet:     req.Snippet,
		Frame:       req.Frame,
		OutputLimit: req.OutputLimit,
		MaxSteps:    req.MaxSteps,
	})
	writeResult(stdout, res)
	return 0
}

func writeResult(w io.Writer, res script.Result) {
	// A failed write means the parent is gone; there is no one to tell.
	_ = json.NewEncoder(w).Encode(res)
}
