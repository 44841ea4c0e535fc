// mock_storage.go - Mock staging store for testing
package testutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/kb-console/backend/internal/models"
)

// MockStorage implements storage.Store in memory.
type MockStorage struct {
	files    map[string]*models.SelectedFile
	fileData map[string][]byte
	openErr  map[string]error
	deleted  []string
	nextID   int
	mu       sync.RWMutex
}

// NewMockStorage creates an empty mock store.
func NewMockStorage() *MockStorage {
	return &MockStorage{
		files:    make(map[string]*models.SelectedFile),
		fileData: make(map[string][]byte),
		openErr:  make(map[string]error),
	}
}

func (m *MockStorage) Save(name, mediaType string, r io.Reader) (*models.SelectedFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	file := m.AddFile(name, mediaType, data)
	return &file, nil
}

// AddFile stages data directly and returns the record.
func (m *MockStorage) AddFile(name, mediaType string, data []byte) models.SelectedFile {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := fmt.Sprintf("file-%d", m.nextID)
	file := &models.SelectedFile{
		ID:        id,
		Name:      name,
		Size:      int64(len(data)),
		MediaType: mediaType,
		AddedAt:   time.Now(),
	}
	m.files[id] = file
	m.fileData[id] = data
	return *file
}

// FailOpen makes Open(id) return err.
func (m *MockStorage) FailOpen(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErr[id] = err
}

func (m *MockStorage) Open(id string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err, ok := m.openErr[id]; ok {
		return nil, err
	}
	data, ok := m.fileData[id]
	if !ok {
		return nil, errors.New("file not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MockStorage) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[id]; !ok {
		return errors.New("file not found")
	}
	delete(m.files, id)
	delete(m.fileData, id)
	m.deleted = append(m.deleted, id)
	return nil
}

// Deleted returns the ids removed so far, in order.
func (m *MockStorage) Deleted() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.deleted...)
}

// Count returns the number of staged files.
func (m *MockStorage) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}
