package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kb-console/backend/internal/models"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// WebSocket message types for the state stream
const (
	// Client -> Server messages
	MsgTypePing = "ping"

	// Server -> Client messages
	MsgTypeState = "state"
	MsgTypePong  = "pong"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// WSMessage is the envelope for every frame in both directions
type WSMessage struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WebSocketHandler pushes a session's UploadState to the view on every change
type WebSocketHandler struct {
	sessions SessionManager
	upgrader websocket.Upgrader
	log      *log.Logger
}

// NewWebSocketHandler creates a new WebSocket state handler
func NewWebSocketHandler(sessions SessionManager, logger *log.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		log: logger,
	}
}

// HandleWebSocket upgrades the connection and streams state until the client leaves
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	state, err := lookupSession(c, wsh.sessions)
	if err != nil {
		return err
	}

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	changes, unsubscribe := state.Orchestrator.Subscribe()
	defer unsubscribe()

	wsh.log.Debugf("client connected to session %s", state.ID)

	// The reader goroutine owns all reads; every write happens on this one.
	pings := make(chan struct{}, 1)
	closed := make(chan struct{})
	go wsh.readLoop(ws, pings, closed)

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	if err := wsh.sendState(ws, state.Orchestrator.Snapshot()); err != nil {
		return nil
	}

	for {
		select {
		case <-changes:
			wsh.sessions.TouchSession(state.ID)
			if err := wsh.sendState(ws, state.Orchestrator.Snapshot()); err != nil {
				return nil
			}
		case <-pings:
			wsh.sessions.TouchSession(state.ID)
			if err := wsh.sendMessage(ws, WSMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()}); err != nil {
				return nil
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-closed:
			wsh.log.Debugf("client disconnected from session %s", state.ID)
			return nil
		}
	}
}

func (wsh *WebSocketHandler) readLoop(ws *websocket.Conn, pings chan<- struct{}, closed chan<- struct{}) {
	defer close(closed)

	ws.SetReadDeadline(time.Now().Add(wsPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsh.log.Warnf("connection error: %v", err)
			}
			return
		}
		ws.SetReadDeadline(time.Now().Add(wsPongWait))

		if msg.Type == MsgTypePing {
			select {
			case pings <- struct{}{}:
			default:
			}
		}
	}
}

func (wsh *WebSocketHandler) sendState(ws *websocket.Conn, state models.UploadState) error {
	return wsh.sendMessage(ws, WSMessage{
		Type:      MsgTypeState,
		Payload:   mustJSON(state),
		Timestamp: time.Now().UnixMilli(),
	})
}

func (wsh *WebSocketHandler) sendMessage(ws *websocket.Conn, msg WSMessage) error {
	ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := ws.WriteJSON(msg); err != nil {
		wsh.log.Warnf("failed to send message: %v", err)
		return err
	}
	return nil
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
