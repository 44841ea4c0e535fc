// handlers_query.go - Knowledge-base query proxy
package api

import (
	"net/http"
	"strings"

	"github.com/kb-console/backend/internal/kbclient"
	"github.com/kb-console/backend/internal/models"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// QueryHandlerImpl implements the QueryHandler interface
type QueryHandlerImpl struct {
	kb             KnowledgeBase
	topK           int
	scoreThreshold float64
	log            *log.Logger
}

// NewQueryHandler creates a query handler that sends every question with
// the given retrieval parameters.
func NewQueryHandler(kb KnowledgeBase, topK int, scoreThreshold float64, logger *log.Logger) QueryHandler {
	return &QueryHandlerImpl{
		kb:             kb,
		topK:           topK,
		scoreThreshold: scoreThreshold,
		log:            logger,
	}
}

type queryRequest struct {
	Query string `json:"query"`
}

// HandleQuery forwards a question to the knowledge base and returns its answer
func (h *QueryHandlerImpl) HandleQuery(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	if strings.TrimSpace(req.Query) == "" {
		return NewValidationError("query")
	}

	resp, err := h.kb.Query(c.Request().Context(), &models.QueryRequest{
		Query:          req.Query,
		TopK:           h.topK,
		ScoreThreshold: h.scoreThreshold,
		Stream:         false,
	})
	if err != nil {
		h.log.Warnf("query failed: %v", err)
		if svcErr, ok := kbclient.AsServiceError(err); ok {
			return NewUpstreamError("QUERY_FAILED", svcErr.Detail, nil)
		}
		return NewUpstreamError("QUERY_FAILED", kbclient.FallbackQueryMessage, err)
	}

	if resp.Sources == nil {
		resp.Sources = []models.SourceInfo{}
	}
	return c.JSON(http.StatusOK, resp)
}
