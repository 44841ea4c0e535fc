// handlers_upload.go - Upload batch handlers
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/kb-console/backend/internal/models"
	"github.com/kb-console/backend/internal/upload"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// UploadHandlerImpl implements the UploadHandler interface
type UploadHandlerImpl struct {
	ctx      context.Context
	sessions SessionManager
	log      *log.Logger
}

// NewUploadHandler creates a new upload handler. Batches run under ctx, not
// under the request that started them, so they end only when ctx does.
func NewUploadHandler(ctx context.Context, sessions SessionManager, logger *log.Logger) UploadHandler {
	return &UploadHandlerImpl{
		ctx:      ctx,
		sessions: sessions,
		log:      logger,
	}
}

type batchResponse struct {
	Outcome models.BatchOutcome `json:"outcome"`
	Message models.BatchMessage `json:"message"`
	State   models.UploadState  `json:"state"`
}

// HandleRunBatch uploads the session's queue. By default it answers 202 as
// soon as the batch starts; with ?wait=true it answers once the batch is done.
func (h *UploadHandlerImpl) HandleRunBatch(c echo.Context) error {
	state, err := lookupSession(c, h.sessions)
	if err != nil {
		return err
	}

	done, err := state.Orchestrator.Start(h.ctx)
	switch {
	case errors.Is(err, upload.ErrEmptyQueue):
		return NewBadRequestError("Please select at least one file", nil)
	case errors.Is(err, upload.ErrBatchRunning):
		return NewConflictError("an upload batch is already running")
	case err != nil:
		return NewInternalError("failed to start upload", err)
	}

	if c.QueryParam("wait") != "true" {
		return c.JSON(http.StatusAccepted, state.Orchestrator.Snapshot())
	}

	select {
	case outcome := <-done:
		return c.JSON(http.StatusOK, batchResponse{
			Outcome: outcome,
			Message: outcome.Message(),
			State:   state.Orchestrator.Snapshot(),
		})
	case <-c.Request().Context().Done():
		// The batch keeps running; the view picks up the result from its state.
		h.log.Debugf("client stopped waiting for batch in session %s", state.ID)
		return c.Request().Context().Err()
	}
}
