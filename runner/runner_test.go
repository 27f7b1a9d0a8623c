package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tablab/databox/sandbox"
	"github.com/tablab/databox/script"
	"github.com/tablab/databox/tabular"
	"github.com/tablab/databox/validate"
)

// fakeEngine replays scripted outcomes and records every request.
type fakeEngine struct {
	outcomes []sandbox.Outcome
	requests []sandbox.Request
}

func (f *fakeEngine) Execute(_ context.Context, req sandbox.Request) sandbox.Outcome {
	idx := len(f.requests)
	f.requests = append(f.requests, req)
	if idx >= len(f.outcomes) {
		idx = len(f.outcomes) - 1
	}
	return f.outcomes[idx]
}

func okScalar(f float64) sandbox.Outcome {
	return sandbox.Outcome{
		OK: true,
		Value: script.Value{
			Kind:       script.KindScalar,
			ScalarType: script.ScalarFloat,
			FloatVal:   f,
		},
	}
}

func failed(message string, retryable bool) sandbox.Outcome {
	return sandbox.Outcome{
		Value:      script.AbsentValue(),
		ErrMessage: message,
		Retryable:  retryable,
	}
}

func testFrame(t *testing.T) *tabular.Frame {
	t.Helper()
	frame, err := tabular.NewFrame(
		&tabular.Column{Name: "Age", Kind: tabular.KindFloat, Floats: []float64{22, 38, 26}},
	)
	require.NoError(t, err)
	return frame
}

func testColumns() validate.ColumnSet {
	return validate.NewColumnSet("Age")
}

func newTestRunner(t *testing.T, engine sandbox.Engine, opts ...Option) *Runner {
	t.Helper()
	return NewRunner(zaptest.NewLogger(t), engine, opts...)
}

func TestRunnerRun(t *testing.T) {
	const snippet = `result = dataset["Age"].mean()`

	t.Run("SuccessRendersFloat", func(t *testing.T) {
		engine := &fakeEngine{outcomes: []sandbox.Outcome{okScalar(28.666666)}}
		out, err := newTestRunner(t, engine).Run(context.Background(), snippet, testFrame(t), testColumns())
		require.NoError(t, err)
		assert.Equal(t, "28.67", out)
		assert.Len(t, engine.requests, 1)
	})

	t.Run("InvalidSnippetNeverReachesEngine", func(t *testing.T) {
		engine := &fakeEngine{outcomes: []sandbox.Outcome{okScalar(1)}}
		_, err := newTestRunner(t, engine).Run(context.Background(), `result = open("/etc/passwd")`, testFrame(t), testColumns())
		require.Error(t, err)

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		require.NotEmpty(t, vErr.Violations)
		assert.Equal(t, validate.KindBlockedCall, vErr.Violations[0].Kind)
		assert.Empty(t, engine.requests)
	})

	t.Run("ValidationReportsEveryViolation", func(t *testing.T) {
		engine := &fakeEngine{outcomes: []sandbox.Outcome{okScalar(1)}}
		snippet := "load(\"os.star\", \"os\")\nresult = eval(dataset[\"Nope\"])"
		_, err := newTestRunner(t, engine).Run(context.Background(), snippet, testFrame(t), testColumns())

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Len(t, vErr.Violations, 3)
	})

	t.Run("RetryableFaultRetriesIdenticalSnippet", func(t *testing.T) {
		engine := &fakeEngine{outcomes: []sandbox.Outcome{
			failed("unknown column \"Agee\"", true),
			okScalar(28.666666),
		}}
		out, err := newTestRunner(t, engine).Run(context.Background(), snippet, testFrame(t), testColumns())
		require.NoError(t, err)
		assert.Equal(t, "28.67", out)
		require.Len(t, engine.requests, 2)
		assert.Equal(t, engine.requests[0].Snippet, engine.requests[1].Snippet)
		assert.Same(t, engine.requests[0].Frame, engine.requests[1].Frame)
	})

	t.Run("ExhaustsAttemptBudget", func(t *testing.T) {
		engine := &fakeEngine{outcomes: []sandbox.Outcome{failed("flaky", true)}}
		_, err := newTestRunner(t, engine).Run(context.Background(), snippet, testFrame(t), testColumns())
		require.Error(t, err)

		var eErr *ExecutionError
		require.ErrorAs(t, err, &eErr)
		assert.Equal(t, DefaultMaxAttempts, eErr.Attempts)
		assert.Equal(t, "flaky", eErr.Outcome.ErrMessage)
		assert.Len(t, engine.requests, DefaultMaxAttempts)
	})

	t.Run("NonRetryableStopsImmediately", func(t *testing.T) {
		engine := &fakeEngine{outcomes: []sandbox.Outcome{failed("execution timed out after 5s", false)}}
		_, err := newTestRunner(t, engine).Run(context.Background(), snippet, testFrame(t), testColumns())
		require.Error(t, err)

		var eErr *ExecutionError
		require.ErrorAs(t, err, &eErr)
		assert.Equal(t, 1, eErr.Attempts)
		assert.Len(t, engine.requests, 1)
	})

	t.Run("MaxAttemptsOption", func(t *testing.T) {
		engine := &fakeEngine{outcomes: []sandbox.Outcome{failed("flaky", true)}}
		_, err := newTestRunner(t, engine).Run(context.Background(), snippet, testFrame(t), testColumns(), WithMaxAttempts(1))
		require.Error(t, err)
		assert.Len(t, engine.requests, 1)
	})

	t.Run("TimeoutOptionReachesEngine", func(t *testing.T) {
		engine := &fakeEngine{outcomes: []sandbox.Outcome{okScalar(1)}}
		_, err := newTestRunner(t, engine).Run(context.Background(), snippet, testFrame(t), testColumns(), WithTimeout(10*time.Second))
		require.NoError(t, err)
		require.Len(t, engine.requests, 1)
		assert.Equal(t, 10*time.Second, engine.requests[0].Timeout)
	})

	t.Run("AbsentResultIsSuccess", func(t *testing.T) {
		engine := &fakeEngine{outcomes: []sandbox.Outcome{{OK: true, Value: script.AbsentValue()}}}
		out, err := newTestRunner(t, engine).Run(context.Background(), `x = 1`, testFrame(t), testColumns())
		require.NoError(t, err)
		assert.Equal(t, NoResultText, out)
	})
}

func TestRunnerErrorText(t *testing.T) {
	t.Run("SingleAttempt", func(t *testing.T) {
		err := &ExecutionError{Outcome: failed("boom", false), Attempts: 1}
		assert.Equal(t, "execution failed after 1 attempt: boom", err.Error())
	})

	t.Run("ManyAttempts", func(t *testing.T) {
		err := &ExecutionError{Outcome: failed("boom", true), Attempts: 3}
		assert.Equal(t, "execution failed after 3 attempts: boom", err.Error())
	})

	t.Run("ValidationJoinsMessages", func(t *testing.T) {
		err := &ValidationError{Violations: []validate.Violation{
			{Kind: validate.KindBlockedCall, Message: `call to "eval" is not allowed`},
			{Kind: validate.KindUnknownColumn, Message: `unknown column "Nope"`},
		}}
		assert.Contains(t, err.Error(), `call to "eval" is not allowed`)
		assert.Contains(t, err.Error(), "; ")
	})

	t.Run("AsErrorTypes", func(t *testing.T) {
		var vErr *ValidationError
		assert.True(t, errors.As(error(&ValidationError{}), &vErr))
	})
}

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		in   script.Value
		want string
	}{
		{"FloatTwoDecimals", script.Value{Kind: script.KindScalar, ScalarType: script.ScalarFloat, FloatVal: 28.666666}, "28.67"},
		{"FloatWhole", script.Value{Kind: script.KindScalar, ScalarType: script.ScalarFloat, FloatVal: 3}, "3.00"},
		{"Int", script.Value{Kind: script.KindScalar, ScalarType: script.ScalarInt, IntVal: 891}, "891"},
		{"BoolTrue", script.Value{Kind: script.KindScalar, ScalarType: script.ScalarBool, BoolVal: true}, "True"},
		{"BoolFalse", script.Value{Kind: script.KindScalar, ScalarType: script.ScalarBool}, "False"},
		{"TextPassthrough", script.Value{Kind: script.KindText, Text: "nan"}, "nan"},
		{"TabularPassthrough", script.Value{Kind: script.KindTabular, Text: "| Age |\n(1 rows)"}, "| Age |\n(1 rows)"},
		{"RowsPassthrough", script.Value{Kind: script.KindRows, Text: "1\n2"}, "1\n2"},
		{"Absent", script.AbsentValue(), NoResultText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.in))
		})
	}
}
