// handlers_files.go - File selection handlers
package api

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/kb-console/backend/internal/models"
	"github.com/kb-console/backend/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

var errAddWhileRunning = NewConflictError("cannot add files while an upload is running")

// FileHandlerImpl implements the FileHandler interface
type FileHandlerImpl struct {
	sessions SessionManager
	store    storage.Store
	sniff    bool
	log      *log.Logger
}

// NewFileHandler creates a new file handler. With sniff set, files arriving
// without a usable media type get one detected from their content.
func NewFileHandler(sessions SessionManager, store storage.Store, sniff bool, logger *log.Logger) FileHandler {
	return &FileHandlerImpl{
		sessions: sessions,
		store:    store,
		sniff:    sniff,
		log:      logger,
	}
}

// HandleAddFiles stages every part of the multipart field "files" and
// appends them to the session's queue
func (h *FileHandlerImpl) HandleAddFiles(c echo.Context) error {
	state, err := lookupSession(c, h.sessions)
	if err != nil {
		return err
	}
	if state.Orchestrator.Running() {
		return errAddWhileRunning
	}

	form, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("invalid multipart form", err)
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return NewValidationError("files")
	}

	added := make([]models.SelectedFile, 0, len(headers))
	for _, fh := range headers {
		file, err := h.stageMultipart(fh)
		if err != nil {
			h.discard(added)
			return NewInternalError(fmt.Sprintf("failed to save file %s", fh.Filename), err)
		}
		added = append(added, *file)
	}

	if !state.Orchestrator.AddFiles(added...) {
		h.discard(added)
		return errAddWhileRunning
	}
	return c.JSON(http.StatusCreated, state.Orchestrator.Snapshot())
}

func (h *FileHandlerImpl) stageMultipart(fh *multipart.FileHeader) (*models.SelectedFile, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	mediaType := normalizeMediaType(fh.Header.Get(echo.HeaderContentType))
	if h.sniff && mediaType == "" {
		detected, err := mimetype.DetectReader(src)
		if err != nil {
			return nil, err
		}
		mediaType = detectedMediaType(detected)
		if _, err := src.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
	}

	return h.store.Save(fh.Filename, mediaType, src)
}

// HandleAddFileBase64 accepts one file as base64 JSON and appends it to the queue
func (h *FileHandlerImpl) HandleAddFileBase64(c echo.Context) error {
	state, err := lookupSession(c, h.sessions)
	if err != nil {
		return err
	}

	if state.Orchestrator.Running() {
		return errAddWhileRunning
	}

	var req addFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	mediaType := normalizeMediaType(req.Type)
	if h.sniff && mediaType == "" {
		mediaType = detectedMediaType(mimetype.Detect(decoded))
	}

	file, err := h.store.Save(req.Name, mediaType, bytes.NewReader(decoded))
	if err != nil {
		return NewInternalError("failed to save file", err)
	}

	if !state.Orchestrator.AddFiles(*file) {
		h.discard([]models.SelectedFile{*file})
		return errAddWhileRunning
	}
	return c.JSON(http.StatusCreated, state.Orchestrator.Snapshot())
}

// HandleRemoveFile drops the file at :index from the queue
func (h *FileHandlerImpl) HandleRemoveFile(c echo.Context) error {
	state, err := lookupSession(c, h.sessions)
	if err != nil {
		return err
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return NewValidationError("index")
	}

	if state.Orchestrator.Running() {
		return NewConflictError("cannot remove files while an upload is running")
	}
	if !state.Orchestrator.RemoveFile(index) {
		// A batch may have started between the check and the removal.
		if state.Orchestrator.Running() {
			return NewConflictError("cannot remove files while an upload is running")
		}
		return NewNotFoundError("file", strconv.Itoa(index))
	}

	return c.JSON(http.StatusOK, state.Orchestrator.Snapshot())
}

// HandleClearFiles empties the queue, the progress list and the message
func (h *FileHandlerImpl) HandleClearFiles(c echo.Context) error {
	state, err := lookupSession(c, h.sessions)
	if err != nil {
		return err
	}

	if !state.Orchestrator.Clear() {
		return NewConflictError("cannot clear files while an upload is running")
	}

	return c.JSON(http.StatusOK, state.Orchestrator.Snapshot())
}

// discard removes files staged by a request that failed part way.
func (h *FileHandlerImpl) discard(files []models.SelectedFile) {
	for _, f := range files {
		if err := h.store.Delete(f.ID); err != nil {
			h.log.Warnf("discarding staged file %s: %v", f.Name, err)
		}
	}
}

// normalizeMediaType maps the types browsers use for "unknown" to empty.
func normalizeMediaType(declared string) string {
	declared = strings.TrimSpace(declared)
	if declared == "" || declared == echo.MIMEOctetStream {
		return ""
	}
	return declared
}

func detectedMediaType(detected *mimetype.MIME) string {
	if detected == nil || detected.Is(echo.MIMEOctetStream) {
		return ""
	}
	mediaType, _, _ := strings.Cut(detected.String(), ";")
	return strings.TrimSpace(mediaType)
}

// Request types

type addFileRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Data string `json:"data"`
}

func (r *addFileRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return NewValidationError("name")
	}
	return nil
}
