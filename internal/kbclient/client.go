// Package kbclient talks to the remote knowledge-base service.
package kbclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kb-console/backend/internal/models"
)

// DefaultBaseURL is used when no API base URL is configured.
const DefaultBaseURL = "http://localhost:8080"

// Fallback messages used when the service gives no readable detail.
const (
	FallbackUploadMessage = "Failed to upload document"
	FallbackQueryMessage  = "Failed to process query"
	FallbackHealthMessage = "Health check failed"
)

// Client is an HTTP client for the knowledge-base v1 API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a client rooted at baseURL.
// Timeouts are left to the caller's context; the orchestrator bounds each upload itself.
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the resolved service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// UploadDocument posts a single document to the ingestion endpoint.
func (c *Client) UploadDocument(ctx context.Context, doc *models.DocumentUpload) (*models.DocumentInfo, error) {
	var info models.DocumentInfo
	if err := c.do(ctx, http.MethodPost, "/api/v1/documents", doc, &info, FallbackUploadMessage); err != nil {
		return nil, err
	}
	return &info, nil
}

// Query runs a natural-language query against the indexed documents.
func (c *Client) Query(ctx context.Context, req *models.QueryRequest) (*models.QueryResponse, error) {
	var resp models.QueryResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/queries", req, &resp, FallbackQueryMessage); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health reports whether the knowledge base is up.
func (c *Client) Health(ctx context.Context) (*models.HealthStatus, error) {
	var status models.HealthStatus
	if err := c.do(ctx, http.MethodGet, "/api/v1/health", nil, &status, FallbackHealthMessage); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, fallback string) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newServiceError(resp.StatusCode, data, fallback)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
