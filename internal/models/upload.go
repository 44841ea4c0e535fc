// Package models contains domain types for the knowledge-base console.
package models

import (
	"fmt"
	"time"
)

// ProgressStatus represents the state of a single file within an upload batch.
type ProgressStatus string

const (
	ProgressPending   ProgressStatus = "pending"
	ProgressUploading ProgressStatus = "uploading"
	ProgressSuccess   ProgressStatus = "success"
	ProgressError     ProgressStatus = "error"
)

// IsTerminal reports whether no further transition is possible.
func (s ProgressStatus) IsTerminal() bool {
	return s == ProgressSuccess || s == ProgressError
}

// SelectedFile is a file the user picked for upload. The bytes live in the
// staging store under ID.
type SelectedFile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	MediaType string    `json:"mediaType"` // as declared by the browser, may be empty
	AddedAt   time.Time `json:"addedAt"`
}

// UploadProgress tracks one queued file, positionally aligned with the queue.
type UploadProgress struct {
	Filename string         `json:"filename"`
	Status   ProgressStatus `json:"status"`
	Error    string         `json:"error,omitempty"`
	DocID    string         `json:"docId,omitempty"`
}

// MessageType is the tone of a batch banner.
type MessageType string

const (
	MessageSuccess MessageType = "success"
	MessageError   MessageType = "error"
)

// BatchMessage is the summary banner shown after a batch resolves.
type BatchMessage struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

// BatchOutcome aggregates per-file results of one batch run.
type BatchOutcome struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Total returns the number of files the batch processed.
func (o BatchOutcome) Total() int {
	return o.Succeeded + o.Failed
}

// AllSucceeded reports whether the batch finished with no failures.
func (o BatchOutcome) AllSucceeded() bool {
	return o.Succeeded > 0 && o.Failed == 0
}

// Message picks one of the three summary banners.
func (o BatchOutcome) Message() BatchMessage {
	switch {
	case o.AllSucceeded():
		return BatchMessage{
			Type: MessageSuccess,
			Text: fmt.Sprintf("Successfully uploaded %d %s!", o.Succeeded, pluralFiles(o.Succeeded)),
		}
	case o.Succeeded > 0 && o.Failed > 0:
		return BatchMessage{
			Type: MessageError,
			Text: fmt.Sprintf("Uploaded %d %s, %d failed", o.Succeeded, pluralFiles(o.Succeeded), o.Failed),
		}
	default:
		return BatchMessage{
			Type: MessageError,
			Text: fmt.Sprintf("Failed to upload %d %s", o.Failed, pluralFiles(o.Failed)),
		}
	}
}

func pluralFiles(n int) string {
	if n > 1 {
		return "files"
	}
	return "file"
}

// UploadState is a read-only snapshot of an orchestrator for the view.
type UploadState struct {
	Files    []SelectedFile   `json:"files"`
	Progress []UploadProgress `json:"progress"`
	Running  bool             `json:"running"`
	Message  *BatchMessage    `json:"message,omitempty"`
}
