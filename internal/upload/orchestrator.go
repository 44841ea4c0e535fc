package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kb-console/backend/internal/models"
	"github.com/labstack/gommon/log"
)

const (
	DefaultTimeout    = 5 * time.Minute
	DefaultResetDelay = 2 * time.Second
)

const (
	emptyQueueMessage = "Please select at least one file"
	cancelledMessage  = "Upload cancelled"
)

var (
	ErrEmptyQueue   = errors.New("please select at least one file")
	ErrBatchRunning = errors.New("an upload batch is already running")
)

// Source gives access to the staged bytes of selected files.
type Source interface {
	Open(id string) (io.ReadCloser, error)
	Delete(id string) error
}

// Uploader sends one document to the knowledge base.
type Uploader interface {
	UploadDocument(ctx context.Context, doc *models.DocumentUpload) (*models.DocumentInfo, error)
}

// Options tunes an Orchestrator. Zero values fall back to the defaults.
type Options struct {
	Timeout    time.Duration
	ResetDelay time.Duration
	Metadata   map[string]any
	Logger     *log.Logger
}

// Orchestrator owns one upload view's file queue and progress list and
// uploads the queue one file at a time.
type Orchestrator struct {
	mu         sync.RWMutex
	files      []models.SelectedFile
	progress   []models.UploadProgress
	message    *models.BatchMessage
	running    bool
	generation uint64
	resetTimer *time.Timer
	batches    sync.WaitGroup

	source Source
	client Uploader
	opts   Options
	log    *log.Logger

	subMu   sync.Mutex
	subs    map[int]chan struct{}
	nextSub int
}

// NewOrchestrator creates an orchestrator with an empty queue.
func NewOrchestrator(source Source, client Uploader, opts Options) *Orchestrator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ResetDelay <= 0 {
		opts.ResetDelay = DefaultResetDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New("upload")
	}
	return &Orchestrator{
		source: source,
		client: client,
		opts:   opts,
		log:    logger,
		subs:   make(map[int]chan struct{}),
	}
}

// AddFiles appends to the queue and clears any terminal message. It reports
// false when a batch is running; the queue stays aligned with the progress
// list until the batch resolves.
func (o *Orchestrator) AddFiles(files ...models.SelectedFile) bool {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return false
	}
	if len(files) == 0 {
		o.mu.Unlock()
		return true
	}
	o.files = append(o.files, files...)
	o.message = nil
	o.mu.Unlock()

	o.log.Debugf("queued %d files", len(files))
	o.notify()
	return true
}

// RemoveFile drops the file and its progress entry at index. It reports
// false when a batch is running or the index is out of range.
func (o *Orchestrator) RemoveFile(index int) bool {
	o.mu.Lock()
	if o.running || index < 0 || index >= len(o.files) {
		o.mu.Unlock()
		return false
	}
	removed := o.files[index]
	o.files = slices.Delete(o.files, index, index+1)
	if index < len(o.progress) {
		o.progress = slices.Delete(o.progress, index, index+1)
	}
	o.mu.Unlock()

	o.release(removed)
	o.notify()
	return true
}

// Clear empties the queue, the progress list and the message. It reports
// false when a batch is running.
func (o *Orchestrator) Clear() bool {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return false
	}
	o.stopResetLocked()
	o.generation++
	removed := o.files
	o.files = nil
	o.progress = nil
	o.message = nil
	o.mu.Unlock()

	o.release(removed...)
	o.notify()
	return true
}

// Running reports whether a batch is in flight.
func (o *Orchestrator) Running() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.running
}

// Snapshot returns a copy of the current state.
func (o *Orchestrator) Snapshot() models.UploadState {
	o.mu.RLock()
	defer o.mu.RUnlock()

	state := models.UploadState{
		Files:    slices.Clone(o.files),
		Progress: slices.Clone(o.progress),
		Running:  o.running,
	}
	if state.Files == nil {
		state.Files = []models.SelectedFile{}
	}
	if state.Progress == nil {
		state.Progress = []models.UploadProgress{}
	}
	if o.message != nil {
		msg := *o.message
		state.Message = &msg
	}
	return state
}

// RunBatch uploads every queued file in order, one at a time, and returns
// the aggregate outcome. Per-file failures are recorded in the progress
// list and never abort the batch.
func (o *Orchestrator) RunBatch(ctx context.Context) (models.BatchOutcome, error) {
	batch, err := o.begin()
	if err != nil {
		return models.BatchOutcome{}, err
	}
	return o.run(ctx, batch), nil
}

// Start checks the preconditions synchronously and runs the batch in the
// background. The channel receives the outcome once every file is resolved.
func (o *Orchestrator) Start(ctx context.Context) (<-chan models.BatchOutcome, error) {
	batch, err := o.begin()
	if err != nil {
		return nil, err
	}
	done := make(chan models.BatchOutcome, 1)
	o.batches.Add(1)
	go func() {
		defer o.batches.Done()
		done <- o.run(ctx, batch)
	}()
	return done, nil
}

// Wait blocks until every batch launched by Start has resolved.
func (o *Orchestrator) Wait() {
	o.batches.Wait()
}

// begin marks the orchestrator running and resets progress to one pending
// entry per queued file.
func (o *Orchestrator) begin() ([]models.SelectedFile, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, ErrBatchRunning
	}
	if len(o.files) == 0 {
		o.message = &models.BatchMessage{Type: models.MessageError, Text: emptyQueueMessage}
		o.mu.Unlock()
		o.notify()
		return nil, ErrEmptyQueue
	}
	o.stopResetLocked()
	o.generation++
	o.running = true
	o.message = nil
	batch := slices.Clone(o.files)
	o.progress = make([]models.UploadProgress, len(batch))
	for i, f := range batch {
		o.progress[i] = models.UploadProgress{Filename: f.Name, Status: models.ProgressPending}
	}
	o.mu.Unlock()
	o.notify()
	return batch, nil
}

func (o *Orchestrator) run(ctx context.Context, batch []models.SelectedFile) models.BatchOutcome {
	batchID := uuid.New().String()[:8]
	o.log.Infof("[Batch %s] Uploading %d files", batchID, len(batch))
	start := time.Now()

	var outcome models.BatchOutcome
	for i, file := range batch {
		if err := o.uploadOne(ctx, file, i); err != nil {
			outcome.Failed++
			o.log.Warnf("[Batch %s] %s failed: %v", batchID, file.Name, err)
			continue
		}
		outcome.Succeeded++
	}

	msg := outcome.Message()
	o.mu.Lock()
	o.running = false
	o.message = &msg
	if outcome.AllSucceeded() {
		o.scheduleResetLocked(batch)
	}
	o.mu.Unlock()
	o.notify()

	o.log.Infof("[Batch %s] %s (%d files, %s)", batchID, msg.Text, outcome.Total(), time.Since(start).Round(time.Millisecond))
	return outcome
}

// uploadOne runs a single file through encode and upload. The returned
// error has already been recorded in progress[index].
func (o *Orchestrator) uploadOne(ctx context.Context, file models.SelectedFile, index int) error {
	o.setProgress(index, models.UploadProgress{Filename: file.Name, Status: models.ProgressUploading})

	doc, err := o.encode(file)
	if err != nil {
		o.setProgress(index, failedProgress(file, err.Error()))
		return err
	}

	reqCtx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	info, err := o.client.UploadDocument(reqCtx, doc)
	if err != nil {
		o.setProgress(index, failedProgress(file, o.failureMessage(ctx, reqCtx, err)))
		return err
	}

	o.setProgress(index, models.UploadProgress{
		Filename: file.Name,
		Status:   models.ProgressSuccess,
		DocID:    info.ID,
	})
	o.log.Debugf("%s stored as %s", file.Name, info.ID)
	return nil
}

func (o *Orchestrator) encode(file models.SelectedFile) (*models.DocumentUpload, error) {
	rc, err := o.source.Open(file.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	defer rc.Close()

	content, err := EncodeContent(rc, Classify(file.Name, file.MediaType), file.Size)
	if err != nil {
		return nil, err
	}

	contentType := file.MediaType
	if contentType == "" {
		contentType = "text/plain"
	}

	metadata := maps.Clone(o.opts.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}

	return &models.DocumentUpload{
		Filename:    file.Name,
		Content:     content,
		ContentType: contentType,
		Metadata:    metadata,
	}, nil
}

// failureMessage tells a batch cancellation from a per-file timeout; any
// other error (including the service's detail) is shown as is.
func (o *Orchestrator) failureMessage(batchCtx, reqCtx context.Context, err error) string {
	switch {
	case batchCtx.Err() != nil:
		return cancelledMessage
	case errors.Is(reqCtx.Err(), context.DeadlineExceeded):
		return TimeoutMessage(o.opts.Timeout)
	default:
		return err.Error()
	}
}

// TimeoutMessage is the per-file error recorded when an upload runs out of time.
func TimeoutMessage(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		minutes := int(d / time.Minute)
		unit := "minutes"
		if minutes == 1 {
			unit = "minute"
		}
		return fmt.Sprintf("Upload timeout (%d %s exceeded)", minutes, unit)
	}
	return fmt.Sprintf("Upload timeout (%s exceeded)", d)
}

func failedProgress(file models.SelectedFile, msg string) models.UploadProgress {
	return models.UploadProgress{Filename: file.Name, Status: models.ProgressError, Error: msg}
}

func (o *Orchestrator) setProgress(index int, p models.UploadProgress) {
	o.mu.Lock()
	if index < len(o.progress) {
		o.progress[index] = p
	}
	o.mu.Unlock()
	o.notify()
}

// scheduleResetLocked clears the batch's files and the progress list after
// the reset delay so the view shows the success state first. Files added
// after the batch started are kept.
func (o *Orchestrator) scheduleResetLocked(batch []models.SelectedFile) {
	gen := o.generation
	ids := make(map[string]struct{}, len(batch))
	for _, f := range batch {
		ids[f.ID] = struct{}{}
	}

	o.resetTimer = time.AfterFunc(o.opts.ResetDelay, func() {
		o.mu.Lock()
		if o.running || o.generation != gen {
			o.mu.Unlock()
			return
		}
		var removed []models.SelectedFile
		kept := o.files[:0:0]
		for _, f := range o.files {
			if _, ok := ids[f.ID]; ok {
				removed = append(removed, f)
				continue
			}
			kept = append(kept, f)
		}
		o.files = kept
		o.progress = nil
		o.resetTimer = nil
		o.mu.Unlock()

		o.release(removed...)
		o.notify()
	})
}

func (o *Orchestrator) stopResetLocked() {
	if o.resetTimer != nil {
		o.resetTimer.Stop()
		o.resetTimer = nil
	}
}

func (o *Orchestrator) release(files ...models.SelectedFile) {
	for _, f := range files {
		if err := o.source.Delete(f.ID); err != nil {
			o.log.Warnf("releasing staged file %s: %v", f.Name, err)
		}
	}
}

// Subscribe returns a channel that receives a signal after every state
// change. Signals coalesce; readers should take a fresh Snapshot.
func (o *Orchestrator) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	o.subMu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = ch
	o.subMu.Unlock()

	return ch, func() {
		o.subMu.Lock()
		delete(o.subs, id)
		o.subMu.Unlock()
	}
}

func (o *Orchestrator) notify() {
	o.subMu.Lock()
	defer o.subMu.Unlock()
	for _, ch := range o.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
