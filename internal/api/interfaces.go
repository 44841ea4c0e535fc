// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/kb-console/backend/internal/models"
	"github.com/kb-console/backend/internal/session"
	"github.com/labstack/echo/v4"
)

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionHandler handles upload view sessions and their state
type SessionHandler interface {
	HandleCreateSession(c echo.Context) error
	HandleGetSession(c echo.Context) error
	HandleGetSessionMsgpack(c echo.Context) error
	HandleDeleteSession(c echo.Context) error
	HandleSessionKeepAlive(c echo.Context) error
}

// FileHandler handles the queue of files selected in a session
type FileHandler interface {
	HandleAddFiles(c echo.Context) error
	HandleAddFileBase64(c echo.Context) error
	HandleRemoveFile(c echo.Context) error
	HandleClearFiles(c echo.Context) error
}

// UploadHandler starts upload batches
type UploadHandler interface {
	HandleRunBatch(c echo.Context) error
}

// QueryHandler proxies questions to the knowledge base
type QueryHandler interface {
	HandleQuery(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	CreateSession() (*session.SessionState, error)
	GetSession(id string) (*session.SessionState, bool)
	TouchSession(id string) bool
	DeleteSession(id string) error
}

// KnowledgeBase is the part of the knowledge-base client the API calls directly.
type KnowledgeBase interface {
	Query(ctx context.Context, req *models.QueryRequest) (*models.QueryResponse, error)
	Health(ctx context.Context) (*models.HealthStatus, error)
}
