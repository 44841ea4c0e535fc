package models

import "time"

// DocumentUpload is the ingestion request body sent to the knowledge base.
type DocumentUpload struct {
	Filename    string         `json:"filename"`
	Content     string         `json:"content"` // base64 for binary files, raw text otherwise
	ContentType string         `json:"content_type"`
	Metadata    map[string]any `json:"metadata"`
}

// DocumentInfo is the knowledge base's answer to a successful ingestion.
type DocumentInfo struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename,omitempty"`
	ContentType string         `json:"content_type,omitempty"`
	UploadedAt  *time.Time     `json:"uploaded_at,omitempty"`
	ChunkCount  int            `json:"chunk_count,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// HealthStatus is reported by the knowledge base health endpoint.
type HealthStatus struct {
	Status    string     `json:"status"`
	Version   string     `json:"version,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}
