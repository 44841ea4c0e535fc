package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kb-console/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialState(t *testing.T, env *testEnv, sessionID string) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(env.echo)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/sessions/" + sessionID + "/ws"
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) WSMessage {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg WSMessage
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

// readStateUntil reads state frames until cond holds for one of them.
func readStateUntil(t *testing.T, ws *websocket.Conn, cond func(models.UploadState) bool) models.UploadState {
	t.Helper()
	for {
		msg := readMessage(t, ws)
		if msg.Type != MsgTypeState {
			continue
		}
		var state models.UploadState
		require.NoError(t, json.Unmarshal(msg.Payload, &state))
		if cond(state) {
			return state
		}
	}
}

func TestWebSocket_StreamsState(t *testing.T) {
	env := newTestEnv(t, false)
	sess := env.newSession(t)
	ws := dialState(t, env, sess.ID)

	initial := readMessage(t, ws)
	assert.Equal(t, MsgTypeState, initial.Type)

	sess.Orchestrator.AddFiles(env.store.AddFile("a.txt", "text/plain", []byte("hello")))
	state := readStateUntil(t, ws, func(s models.UploadState) bool { return len(s.Files) == 1 })
	assert.Equal(t, "a.txt", state.Files[0].Name)

	rec := env.serve(http.MethodPost, "/api/sessions/"+sess.ID+"/upload", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	state = readStateUntil(t, ws, func(s models.UploadState) bool {
		return !s.Running && s.Message != nil
	})
	require.Len(t, state.Progress, 1)
	assert.Equal(t, models.ProgressSuccess, state.Progress[0].Status)
	assert.Equal(t, "Successfully uploaded 1 file!", state.Message.Text)
}

func TestWebSocket_Ping(t *testing.T) {
	env := newTestEnv(t, false)
	sess := env.newSession(t)
	ws := dialState(t, env, sess.ID)

	readMessage(t, ws)
	require.NoError(t, ws.WriteJSON(WSMessage{Type: MsgTypePing, Timestamp: time.Now().UnixMilli()}))

	for {
		msg := readMessage(t, ws)
		if msg.Type == MsgTypePong {
			break
		}
	}
}

func TestWebSocket_UnknownSession(t *testing.T) {
	env := newTestEnv(t, false)
	server := httptest.NewServer(env.echo)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/sessions/missing/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
