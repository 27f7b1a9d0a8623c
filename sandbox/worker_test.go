package sandbox

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablab/databox/script"
)

func TestIsWorkerProcess(t *testing.T) {
	t.Run("UnsetMeansParent", func(t *testing.T) {
		t.Setenv(workerEnvVar, "")
		assert.False(t, IsWorkerProcess())
	})

	t.Run("MarkerMeansWorker", func(t *testing.T) {
		t.Setenv(workerEnvVar, "1")
		assert.True(t, IsWorkerProcess())
	})
}

func TestWorkerMainRejectsGarbageRequest(t *testing.T) {
	var stdout bytes.Buffer
	code := WorkerMain(strings.NewReader("this is not json"), &stdout)
	assert.Equal(t, 1, code)

	var res script.Result
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &res))
	assert.False(t, res.OK)
	assert.Contains(t, res.ErrMessage, "decode request")
	assert.False(t, res.Retryable)
}

func TestWorkerRequestRoundTripsFrame(t *testing.T) {
	frame := sampleFrame(t)
	payload, err := json.Marshal(workerRequest{
		Snippet:    `result = 1`,
		Frame:      frame,
		HeadroomMB: 512,
	})
	require.NoError(t, err)

	var decoded workerRequest
	require.NoError(t, json.Unmarshal(payload, &decoded))
	require.NotNil(t, decoded.Frame)
	assert.Equal(t, frame.Fingerprint(), decoded.Frame.Fingerprint())
	assert.Equal(t, 512, decoded.HeadroomMB)
}
