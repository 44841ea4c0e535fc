package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/kb-console/backend/internal/models"
	"github.com/kb-console/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slowResponse() testutil.Response {
	return testutil.Response{Status: http.StatusCreated, Body: `{"id":"slow"}`, Delay: 100 * time.Millisecond}
}

func TestUploadHandler_RunBatchAsync(t *testing.T) {
	env := newTestEnv(t, false)
	sess := env.newSession(t)
	env.kb.QueueUploads(slowResponse())
	sess.Orchestrator.AddFiles(env.store.AddFile("a.txt", "text/plain", []byte("hello")))

	rec := env.serve(http.MethodPost, "/api/sessions/"+sess.ID+"/upload", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	state := decodeState(t, rec)
	assert.True(t, state.Running)
	require.Len(t, state.Progress, 1)
	assert.False(t, state.Progress[0].Status.IsTerminal())

	require.Eventually(t, func() bool {
		return !sess.Orchestrator.Running()
	}, 2*time.Second, 10*time.Millisecond)

	final := sess.Orchestrator.Snapshot()
	assert.Equal(t, models.ProgressSuccess, final.Progress[0].Status)
	assert.Equal(t, "slow", final.Progress[0].DocID)
}

func TestUploadHandler_RunBatchWait(t *testing.T) {
	env := newTestEnv(t, false)
	sess := env.newSession(t)
	env.kb.QueueUploads(
		testutil.Response{Status: http.StatusOK, Body: `{"id":"doc-1"}`},
		testutil.Response{Status: http.StatusInternalServerError, Body: `{"detail":"disk full"}`},
	)
	sess.Orchestrator.AddFiles(
		env.store.AddFile("one.txt", "text/plain", []byte("1")),
		env.store.AddFile("two.txt", "text/plain", []byte("2")),
	)

	rec := env.serve(http.MethodPost, "/api/sessions/"+sess.ID+"/upload?wait=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp batchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.BatchOutcome{Succeeded: 1, Failed: 1}, resp.Outcome)
	assert.Equal(t, models.MessageError, resp.Message.Type)
	assert.Equal(t, "Uploaded 1 file, 1 failed", resp.Message.Text)

	require.Len(t, resp.State.Progress, 2)
	assert.Equal(t, models.ProgressSuccess, resp.State.Progress[0].Status)
	assert.Equal(t, models.ProgressError, resp.State.Progress[1].Status)
	assert.Equal(t, "disk full", resp.State.Progress[1].Error)
	assert.Len(t, resp.State.Files, 2, "failed batches keep the queue for retry")
}

func TestUploadHandler_Preconditions(t *testing.T) {
	env := newTestEnv(t, false)
	sess := env.newSession(t)

	c, _ := env.newContext(http.MethodPost, "/", nil, map[string]string{"id": sess.ID})
	apiErr := requireAPIError(t, env.handlers.Upload.HandleRunBatch(c), http.StatusBadRequest, "BAD_REQUEST")
	assert.Equal(t, "Please select at least one file", apiErr.Message)

	state := sess.Orchestrator.Snapshot()
	require.NotNil(t, state.Message)
	assert.Equal(t, models.MessageError, state.Message.Type)

	env.kb.QueueUploads(slowResponse())
	sess.Orchestrator.AddFiles(env.store.AddFile("a.txt", "text/plain", []byte("a")))

	rec := env.serve(http.MethodPost, "/api/sessions/"+sess.ID+"/upload", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = env.serve(http.MethodPost, "/api/sessions/"+sess.ID+"/upload", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.serve(http.MethodDelete, "/api/sessions/"+sess.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "running sessions cannot be closed")

	require.Eventually(t, func() bool {
		return !sess.Orchestrator.Running()
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, env.kb.Uploads(), 1)
}

func TestUploadHandler_UnknownSession(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.serve(http.MethodPost, "/api/sessions/missing/upload", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
