// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kb-console/backend/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	// Context bounds every upload batch; cancel it on shutdown.
	Context          context.Context
	Store            storage.Store
	Sessions         SessionManager
	KnowledgeBase    KnowledgeBase
	Version          string
	HealthTimeout    time.Duration
	QueryTopK        int
	QueryThreshold   float64
	SniffContentType bool
	Logger           *log.Logger
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Session   SessionHandler
	File      FileHandler
	Upload    UploadHandler
	Query     QueryHandler
	WebSocket *WebSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	ctx := deps.Context
	if ctx == nil {
		ctx = context.Background()
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New("api")
	}

	return &Handlers{
		Health:    NewHealthHandler(deps.Version, deps.KnowledgeBase, deps.HealthTimeout),
		Session:   NewSessionHandler(deps.Sessions, logger),
		File:      NewFileHandler(deps.Sessions, deps.Store, deps.SniffContentType, logger),
		Upload:    NewUploadHandler(ctx, deps.Sessions, logger),
		Query:     NewQueryHandler(deps.KnowledgeBase, deps.QueryTopK, deps.QueryThreshold, logger),
		WebSocket: NewWebSocketHandler(deps.Sessions, logger),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// Knowledge-base query
	apiGroup.POST("/query", handlers.Query.HandleQuery)

	// Upload sessions
	sessionGroup := apiGroup.Group("/sessions")
	sessionGroup.POST("", handlers.Session.HandleCreateSession)
	sessionGroup.GET("/:id", handlers.Session.HandleGetSession)
	sessionGroup.GET("/:id/state/msgpack", handlers.Session.HandleGetSessionMsgpack)
	sessionGroup.DELETE("/:id", handlers.Session.HandleDeleteSession)
	sessionGroup.POST("/:id/keepalive", handlers.Session.HandleSessionKeepAlive)

	// File queue
	sessionGroup.POST("/:id/files", handlers.File.HandleAddFiles)
	sessionGroup.POST("/:id/files/base64", handlers.File.HandleAddFileBase64)
	sessionGroup.DELETE("/:id/files/:index", handlers.File.HandleRemoveFile)
	sessionGroup.DELETE("/:id/files", handlers.File.HandleClearFiles)

	// Batch upload
	sessionGroup.POST("/:id/upload", handlers.Upload.HandleRunBatch)

	// WebSocket state stream
	sessionGroup.GET("/:id/ws", handlers.WebSocket.HandleWebSocket)
}

// MiddlewareOptions selects the optional middleware
type MiddlewareOptions struct {
	RequestLogging bool
	BodyLimit      string
	EnableCORS     bool
	AllowOrigins   string
	ShowErrorInfo  bool
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, opts MiddlewareOptions) {
	e.HTTPErrorHandler = ErrorHandler(opts.ShowErrorInfo)

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			// Skip logging if disabled in config
			if !opts.RequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return path == "/api/health" ||
				strings.HasSuffix(path, "/keepalive") ||
				strings.HasSuffix(path, "/ws")
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize:         1024 * 4,
		DisablePrintStack: false,
	}))

	if opts.BodyLimit != "" {
		e.Use(middleware.BodyLimit(opts.BodyLimit))
	}

	if opts.EnableCORS {
		origins := strings.Split(opts.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}
}
