// handlers_session.go - Upload session lifecycle and state handlers
package api

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/kb-console/backend/internal/models"
	"github.com/kb-console/backend/internal/session"
	"github.com/kb-console/backend/internal/upload"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/vmihailenco/msgpack/v5"
)

// SessionHandlerImpl implements the SessionHandler interface
type SessionHandlerImpl struct {
	sessions SessionManager
	log      *log.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions SessionManager, logger *log.Logger) SessionHandler {
	return &SessionHandlerImpl{sessions: sessions, log: logger}
}

type sessionResponse struct {
	ID    string             `json:"id"`
	State models.UploadState `json:"state"`
}

// HandleCreateSession opens an upload session for a new view
func (h *SessionHandlerImpl) HandleCreateSession(c echo.Context) error {
	state, err := h.sessions.CreateSession()
	if err != nil {
		if errors.Is(err, session.ErrTooManySessions) {
			h.log.Warnf("rejected new session: %v", err)
			return NewServiceUnavailableError(err.Error())
		}
		return NewInternalError("failed to create session", err)
	}

	return c.JSON(http.StatusCreated, sessionResponse{
		ID:    state.ID,
		State: state.Orchestrator.Snapshot(),
	})
}

// HandleGetSession returns the session's UploadState as JSON
func (h *SessionHandlerImpl) HandleGetSession(c echo.Context) error {
	state, err := lookupSession(c, h.sessions)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, state.Orchestrator.Snapshot())
}

// HandleGetSessionMsgpack returns the session's UploadState encoded as msgpack
func (h *SessionHandlerImpl) HandleGetSessionMsgpack(c echo.Context) error {
	state, err := lookupSession(c, h.sessions)
	if err != nil {
		return err
	}

	data, err := encodeMsgpack(state.Orchestrator.Snapshot())
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleDeleteSession closes the session and releases its staged files
func (h *SessionHandlerImpl) HandleDeleteSession(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	switch err := h.sessions.DeleteSession(id); {
	case errors.Is(err, session.ErrSessionNotFound):
		return NewNotFoundError("session", id)
	case errors.Is(err, upload.ErrBatchRunning):
		return NewConflictError("cannot close a session while an upload is running")
	case err != nil:
		return NewInternalError("failed to close session", err)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleSessionKeepAlive marks the session as recently used
func (h *SessionHandlerImpl) HandleSessionKeepAlive(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if !h.sessions.TouchSession(id) {
		return NewNotFoundError("session", id)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "ok",
	})
}

// lookupSession resolves the :id path parameter to a live session.
func lookupSession(c echo.Context, sessions SessionManager) (*session.SessionState, error) {
	id := c.Param("id")
	if id == "" {
		return nil, NewValidationError("id")
	}

	state, ok := sessions.GetSession(id)
	if !ok {
		return nil, NewNotFoundError("session", id)
	}
	return state, nil
}

// encodeMsgpack marshals v with its json tags so both encodings share field names.
func encodeMsgpack(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
