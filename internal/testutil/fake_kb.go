// fake_kb.go - Scripted knowledge-base server for testing
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/kb-console/backend/internal/models"
)

// Response is one scripted answer from the fake knowledge base.
type Response struct {
	Status int
	Body   string
	Delay  time.Duration // held until the delay passes or the client gives up
}

// FakeKB serves /api/v1/documents, /api/v1/queries and /api/v1/health.
type FakeKB struct {
	Server *httptest.Server

	mu              sync.Mutex
	uploads         []models.DocumentUpload
	queries         []models.QueryRequest
	uploadResponses []Response
	queryResponse   Response
	healthResponse  Response
	inFlight        int
	maxInFlight     int
}

// NewFakeKB starts a fake knowledge base; it is closed when the test ends.
func NewFakeKB(t *testing.T) *FakeKB {
	t.Helper()
	kb := &FakeKB{
		queryResponse:  Response{Status: http.StatusOK, Body: `{"answer":"","sources":[],"score":0,"metadata":{}}`},
		healthResponse: Response{Status: http.StatusOK, Body: `{"status":"healthy","version":"test"}`},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/documents", kb.handleDocuments)
	mux.HandleFunc("POST /api/v1/queries", kb.handleQueries)
	mux.HandleFunc("GET /api/v1/health", kb.handleHealth)

	kb.Server = httptest.NewServer(mux)
	t.Cleanup(kb.Server.Close)
	return kb
}

// URL returns the base URL of the fake.
func (kb *FakeKB) URL() string {
	return kb.Server.URL
}

// QueueUploads scripts the answers to the next document uploads, in order.
// Once the script runs out every upload gets 201 with a generated id.
func (kb *FakeKB) QueueUploads(responses ...Response) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.uploadResponses = append(kb.uploadResponses, responses...)
}

// SetQueryResponse scripts the answer for every query.
func (kb *FakeKB) SetQueryResponse(r Response) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.queryResponse = r
}

// SetHealthResponse scripts the answer for the health endpoint.
func (kb *FakeKB) SetHealthResponse(r Response) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.healthResponse = r
}

// Uploads returns the document bodies received so far.
func (kb *FakeKB) Uploads() []models.DocumentUpload {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	return append([]models.DocumentUpload(nil), kb.uploads...)
}

// Queries returns the query bodies received so far.
func (kb *FakeKB) Queries() []models.QueryRequest {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	return append([]models.QueryRequest(nil), kb.queries...)
}

// MaxInFlight returns the highest number of concurrent document uploads seen.
func (kb *FakeKB) MaxInFlight() int {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	return kb.maxInFlight
}

func (kb *FakeKB) handleDocuments(w http.ResponseWriter, r *http.Request) {
	var doc models.DocumentUpload
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, `{"detail":"invalid body"}`, http.StatusUnprocessableEntity)
		return
	}

	kb.mu.Lock()
	kb.uploads = append(kb.uploads, doc)
	n := len(kb.uploads)
	resp := Response{Status: http.StatusCreated, Body: fmt.Sprintf(`{"id":"doc-%d","filename":%q}`, n, doc.Filename)}
	if len(kb.uploadResponses) > 0 {
		resp = kb.uploadResponses[0]
		kb.uploadResponses = kb.uploadResponses[1:]
	}
	kb.inFlight++
	if kb.inFlight > kb.maxInFlight {
		kb.maxInFlight = kb.inFlight
	}
	kb.mu.Unlock()

	defer func() {
		kb.mu.Lock()
		kb.inFlight--
		kb.mu.Unlock()
	}()

	kb.respond(w, r, resp)
}

func (kb *FakeKB) handleQueries(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"detail":"invalid body"}`, http.StatusUnprocessableEntity)
		return
	}

	kb.mu.Lock()
	kb.queries = append(kb.queries, req)
	resp := kb.queryResponse
	kb.mu.Unlock()

	kb.respond(w, r, resp)
}

func (kb *FakeKB) handleHealth(w http.ResponseWriter, r *http.Request) {
	kb.mu.Lock()
	resp := kb.healthResponse
	kb.mu.Unlock()

	kb.respond(w, r, resp)
}

func (kb *FakeKB) respond(w http.ResponseWriter, r *http.Request, resp Response) {
	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprint(w, resp.Body)
}
