package sandbox

import (
	"context"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tablab/databox/script"
	"github.com/tablab/databox/tabular"
)

// TestMain makes the test binary usable as the worker: when the engine
// under test re-executes it with the marker variable set, it must behave
// exactly like the production binary's worker mode.
func TestMain(m *testing.M) {
	if os.Getenv("SANDBOX_TEST_EXIT_SILENTLY") == "1" {
		os.Exit(3)
	}
	if IsWorkerProcess() {
		os.Exit(WorkerMain(os.Stdin, os.Stdout))
	}
	os.Exit(m.Run())
}

func sampleFrame(t *testing.T) *tabular.Frame {
	t.Helper()
	age := &tabular.Column{Name: "Age", Kind: tabular.KindFloat, Floats: []float64{22, 38, 26, 0}}
	age.SetNull(3)
	frame, err := tabular.NewFrame(
		&tabular.Column{Name: "PassengerId", Kind: tabular.KindInt, Ints: []int64{1, 2, 3, 4}},
		&tabular.Column{Name: "Sex", Kind: tabular.KindString, Strs: []string{"male", "female", "female", "male"}},
		age,
	)
	require.NoError(t, err)
	return frame
}

func testEngine(t *testing.T, opts ...ProcessEngineOption) *ProcessEngine {
	t.Helper()
	return NewProcessEngine(zaptest.NewLogger(t), opts...)
}

func TestProcessEngineExecute(t *testing.T) {
	t.Run("ScalarResult", func(t *testing.T) {
		out := testEngine(t).Execute(context.Background(), Request{
			Snippet: `result = dataset["Age"].mean()`,
			Frame:   sampleFrame(t),
		})
		require.True(t, out.OK, out.ErrMessage)
		require.Equal(t, script.KindScalar, out.Value.Kind)
		assert.Equal(t, script.ScalarFloat, out.Value.ScalarType)
		assert.InDelta(t, 28.6667, out.Value.FloatVal, 0.001)
		assert.Greater(t, out.Elapsed, time.Duration(0))
	})

	t.Run("TabularResultArrivesRendered", func(t *testing.T) {
		out := testEngine(t).Execute(context.Background(), Request{
			Snippet: `result = dataset.head(2)`,
			Frame:   sampleFrame(t),
		})
		require.True(t, out.OK, out.ErrMessage)
		assert.Equal(t, script.KindTabular, out.Value.Kind)
		assert.Contains(t, out.Value.Text, "Age")
		assert.Contains(t, out.Value.Text, "(2 rows)")
	})

	t.Run("RetryableSnippetFault", func(t *testing.T) {
		out := testEngine(t).Execute(context.Background(), Request{
			Snippet: `result = dataset["Nope"]`,
			Frame:   sampleFrame(t),
		})
		require.False(t, out.OK)
		assert.True(t, out.Retryable)
		assert.Contains(t, out.ErrMessage, "unknown column")
	})

	t.Run("BlockedImportIsNotRetryable", func(t *testing.T) {
		out := testEngine(t).Execute(context.Background(), Request{
			Snippet: "load(\"os.star\", \"os\")\nresult = 1",
			Frame:   sampleFrame(t),
		})
		require.False(t, out.OK)
		assert.False(t, out.Retryable)
		assert.Contains(t, out.ErrMessage, "blocked by sandbox policy")
	})

	t.Run("DatasetMutationsStayInTheWorker", func(t *testing.T) {
		frame := sampleFrame(t)
		before := frame.Fingerprint()
		engine := testEngine(t)

		out := engine.Execute(context.Background(), Request{
			Snippet: "dataset[\"Injected\"] = 1\nresult = dataset.shape[1]",
			Frame:   frame,
		})
		require.True(t, out.OK, out.ErrMessage)
		assert.Equal(t, int64(4), out.Value.IntVal)
		assert.Equal(t, before, frame.Fingerprint())

		again := engine.Execute(context.Background(), Request{
			Snippet: `result = dataset.shape[1]`,
			Frame:   frame,
		})
		require.True(t, again.OK, again.ErrMessage)
		assert.Equal(t, int64(3), again.Value.IntVal)
	})
}

func TestProcessEngineTimeout(t *testing.T) {
	start := time.Now()
	out := testEngine(t).Execute(context.Background(), Request{
		Snippet: "while True:\n    pass",
		Frame:   sampleFrame(t),
		Timeout: time.Second,
	})
	require.False(t, out.OK)
	assert.False(t, out.Retryable)
	assert.Contains(t, out.ErrMessage, "timed out")
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestProcessEngineMemoryCeiling(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("address-space limit enforcement is linux-only")
	}
	engine := testEngine(t,
		WithMemoryHeadroomMB(64),
		WithTimeout(30*time.Second),
	)
	out := engine.Execute(context.Background(), Request{
		Snippet: "chunks = []\nfor i in range(400):\n    chunks.append(str(i) * 1048576)\nresult = len(chunks)",
		Frame:   sampleFrame(t),
	})
	require.False(t, out.OK)
	assert.False(t, out.Retryable)
	assert.Contains(t, strings.ToLower(out.ErrMessage), "memory")
}

func TestProcessEngineWorkerDeath(t *testing.T) {
	t.Run("MissingExecutable", func(t *testing.T) {
		engine := testEngine(t, WithExecutable("/nonexistent/databox-worker"))
		out := engine.Execute(context.Background(), Request{
			Snippet: `result = 1`,
			Frame:   sampleFrame(t),
		})
		require.False(t, out.OK)
		assert.False(t, out.Retryable)
		assert.Contains(t, out.ErrMessage, "failed to start")
	})

	t.Run("SilentNonzeroExit", func(t *testing.T) {
		// The child sees the variable via os.Environ and dies before
		// writing any result, exercising the exit-code classification.
		t.Setenv("SANDBOX_TEST_EXIT_SILENTLY", "1")
		out := testEngine(t).Execute(context.Background(), Request{
			Snippet: `result = 1`,
			Frame:   sampleFrame(t),
		})
		require.False(t, out.OK)
		assert.False(t, out.Retryable)
		assert.Contains(t, out.ErrMessage, "exit code 3")
	})
}
