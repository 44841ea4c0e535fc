package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/kb-console/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestSessionHandler_CreateAndGet(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.serve(http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	assert.Empty(t, created.State.Files)
	assert.NotNil(t, created.State.Files, "empty queue is encoded as [] not null")
	assert.False(t, created.State.Running)

	rec = env.serve(http.MethodGet, "/api/sessions/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeState(t, rec)
	assert.Empty(t, state.Progress)
	assert.Nil(t, state.Message)
}

func TestSessionHandler_GetMissing(t *testing.T) {
	env := newTestEnv(t, false)

	c, _ := env.newContext(http.MethodGet, "/api/sessions/nope", nil, map[string]string{"id": "nope"})
	requireAPIError(t, env.handlers.Session.HandleGetSession(c), http.StatusNotFound, "NOT_FOUND")

	c, _ = env.newContext(http.MethodGet, "/api/sessions/", nil, nil)
	requireAPIError(t, env.handlers.Session.HandleGetSession(c), http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestSessionHandler_Msgpack(t *testing.T) {
	env := newTestEnv(t, false)
	sess := env.newSession(t)
	sess.Orchestrator.AddFiles(env.store.AddFile("notes.md", "text/markdown", []byte("# hi")))
	_, err := sess.Orchestrator.RunBatch(context.Background())
	require.NoError(t, err)

	rec := env.serve(http.MethodGet, "/api/sessions/"+sess.ID+"/state/msgpack", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/msgpack", rec.Header().Get("Content-Type"))

	var state models.UploadState
	dec := msgpack.NewDecoder(bytes.NewReader(rec.Body.Bytes()))
	dec.SetCustomStructTag("json")
	require.NoError(t, dec.Decode(&state))

	require.Len(t, state.Files, 1)
	assert.Equal(t, "notes.md", state.Files[0].Name)
	require.Len(t, state.Progress, 1)
	assert.Equal(t, models.ProgressSuccess, state.Progress[0].Status)
	assert.Equal(t, "doc-1", state.Progress[0].DocID)
	require.NotNil(t, state.Message)
	assert.Equal(t, "Successfully uploaded 1 file!", state.Message.Text)
}

func TestSessionHandler_Delete(t *testing.T) {
	env := newTestEnv(t, false)
	sess := env.newSession(t)
	sess.Orchestrator.AddFiles(env.store.AddFile("a.txt", "text/plain", []byte("a")))

	rec := env.serve(http.MethodDelete, "/api/sessions/"+sess.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, env.sessions.Count())
	assert.Equal(t, 0, env.store.Count(), "staged files are released with the session")

	rec = env.serve(http.MethodDelete, "/api/sessions/"+sess.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionHandler_KeepAlive(t *testing.T) {
	env := newTestEnv(t, false)
	sess := env.newSession(t)

	rec := env.serve(http.MethodPost, "/api/sessions/"+sess.ID+"/keepalive", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = env.serve(http.MethodPost, "/api/sessions/unknown/keepalive", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
