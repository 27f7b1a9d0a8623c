package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tablab/databox/script"
)

// Engine defaults.
const (
	DefaultTimeout    = 5 * time.Second
	DefaultHeadroomMB = 1024
)

// ProcessEngine implements Engine by spawning one fresh worker process
// per call. The worker is this same binary re-executed with the marker
// environment variable set; request and result ride JSON over the
// worker's stdin and stdout.
type ProcessEngine struct {
	logger      *zap.Logger
	executable  string
	timeout     time.Duration
	headroomMB  int
	outputLimit int
	maxSteps    uint64
}

// ProcessEngineOption defines a functional option for ProcessEngine.
type ProcessEngineOption func(*ProcessEngine)

// WithTimeout sets the default wall-clock limit per execution.
func WithTimeout(d time.Duration) ProcessEngineOption {
	return func(e *ProcessEngine) {
		e.timeout = d
	}
}

// WithMemoryHeadroomMB sets how much the worker may grow beyond its
// post-decode baseline before the kernel refuses further allocation.
func WithMemoryHeadroomMB(mb int) ProcessEngineOption {
	return func(e *ProcessEngine) {
		e.headroomMB = mb
	}
}

// WithOutputLimit caps rendered output characters per execution.
func WithOutputLimit(chars int) ProcessEngineOption {
	return func(e *ProcessEngine) {
		e.outputLimit = chars
	}
}

// WithMaxSteps bounds abstract interpreter steps per execution; zero
// leaves the interpreter unbounded and relies on the external timeout.
func WithMaxSteps(n uint64) ProcessEngineOption {
	return func(e *ProcessEngine) {
		e.maxSteps = n
	}
}

// WithExecutable overrides the binary re-executed as the worker.
func WithExecutable(path string) ProcessEngineOption {
	return func(e *ProcessEngine) {
		e.executable = path
	}
}

// NewProcessEngine creates a ProcessEngine with defaults and optional
// overrides. The worker binary defaults to the current executable.
func NewProcessEngine(logger *zap.Logger, opts ...ProcessEngineOption) *ProcessEngine {
	engine := &ProcessEngine{
		logger:      logger,
		timeout:     DefaultTimeout,
		headroomMB:  DefaultHeadroomMB,
		outputLimit: script.DefaultOutputLimit,
	}

	for _, opt := range opts {
		opt(engine)
	}

	if engine.executable == "" {
		if path, err := os.Executable(); err == nil {
			engine.executable = path
		}
	}
	return engine
}

// Execute runs one snippet in a fresh worker process and reports what
// happened. It never returns an error: every failure mode, including the
// worker dying, is folded into the Outcome.
func (e *ProcessEngine) Execute(ctx context.Context, req Request) Outcome {
	start := time.Now()
	outcome := e.execute(ctx, req)
	outcome.Elapsed = time.Since(start)

	if outcome.OK {
		e.logger.Info("snippet executed",
			zap.Duration("elapsed", outcome.Elapsed),
			zap.String("result_kind", string(outcome.Value.Kind)))
	} else {
		e.logger.Info("snippet execution failed",
			zap.Duration("elapsed", outcome.Elapsed),
			zap.Bool("retryable", outcome.Retryable),
			zap.String("error", outcome.ErrMessage))
	}
	return outcome
}

func (e *ProcessEngine) execute(ctx context.Context, req Request) Outcome {
	if e.executable == "" {
		return failure("worker executable path unknown", false)
	}

	timeout := e.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}

	payload, err := json.Marshal(workerRequest{
		Snippet:     req.Snippet,
		Frame:       req.Frame,
		HeadroomMB:  e.headroomMB,
		OutputLimit: e.outputLimit,
		MaxSteps:    e.maxSteps,
	})
	if err != nil {
		return failure(fmt.Sprintf("encode worker request: %v", err), false)
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctxWithTimeout, e.executable) //nolint:gosec // re-executes this same binary
	cmd.Env = append(os.Environ(), workerEnvVar+"=1")
	cmd.Stdin = bytes.NewReader(payload)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	runErr := cmd.Run()

	// The deadline wins over whatever partial output the dying worker
	// managed to flush. In-worker time discipline is never trusted.
	if ctxWithTimeout.Err() == context.DeadlineExceeded {
		return failure(fmt.Sprintf("execution timed out after %s", timeout), false)
	}

	var res script.Result
	if decodeErr := json.Unmarshal(stdoutBuf.Bytes(), &res); decodeErr == nil && (res.OK || res.ErrMessage != "") {
		return Outcome{
			OK:         res.OK,
			Value:      res.Value,
			ErrMessage: res.ErrMessage,
			Retryable:  res.Retryable,
		}
	}

	// No usable result came back; classify the process death instead.
	return classifyExit(runErr, stderrBuf.String())
}

// classifyExit maps an abnormal worker exit to an Outcome. Everything
// here is non-retryable: the same snippet hits the same wall again.
func classifyExit(runErr error, stderr string) Outcome {
	if runErr == nil {
		return failure("worker returned no result", false)
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			sig := status.Signal()
			if sig == syscall.SIGKILL || mentionsAllocator(stderr) {
				return failure("memory limit exceeded", false)
			}
			return failure(fmt.Sprintf("worker crashed: signal %s", sig), false)
		}
		if mentionsAllocator(stderr) {
			return failure("memory limit exceeded", false)
		}
		return failure(fmt.Sprintf("worker crashed: exit code %d", exitErr.ExitCode()), false)
	}

	return failure(fmt.Sprintf("worker failed to start: %v", runErr), false)
}

// mentionsAllocator recognizes the runtime's allocation-failure wording
// on stderr, which is how death by RLIMIT_AS usually presents.
func mentionsAllocator(stderr string) bool {
	return strings.Contains(stderr, "out of memory") ||
		strings.Contains(stderr, "cannot allocate")
}

func failure(message string, retryable bool) Outcome {
	return Outcome{
		Value:      script.AbsentValue(),
		ErrMessage: message,
		Retryable:  retryable,
	}
}
