package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kb-console/backend/internal/models"
)

// Store defines the interface for staged file storage.
type Store interface {
	Save(name, mediaType string, r io.Reader) (*models.SelectedFile, error)
	Open(id string) (io.ReadCloser, error)
	Delete(id string) error
}

// LocalStore implements Store using the local filesystem.
type LocalStore struct {
	mu         sync.RWMutex
	stagingDir string
	files      map[string]*models.SelectedFile
}

// NewLocalStore creates a new LocalStore. Anything already in the staging
// directory belongs to a previous run and is removed.
func NewLocalStore(stagingDir string) (*LocalStore, error) {
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	if err := sweep(stagingDir); err != nil {
		return nil, err
	}

	return &LocalStore{
		stagingDir: stagingDir,
		files:      make(map[string]*models.SelectedFile),
	}, nil
}

// Save copies r into the staging directory and returns the file record.
func (s *LocalStore) Save(name, mediaType string, r io.Reader) (*models.SelectedFile, error) {
	id := uuid.New().String()
	path := filepath.Join(s.stagingDir, id)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	file := &models.SelectedFile{
		ID:        id,
		Name:      name,
		Size:      size,
		MediaType: mediaType,
		AddedAt:   time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = file

	return file, nil
}

// Open returns a reader over the staged bytes. The caller closes it.
func (s *LocalStore) Open(id string) (io.ReadCloser, error) {
	s.mu.RLock()
	_, ok := s.files[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("file not found: %s", id)
	}

	f, err := os.Open(filepath.Join(s.stagingDir, id))
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	return f, nil
}

// Delete removes a staged file.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return fmt.Errorf("file not found: %s", id)
	}

	path := filepath.Join(s.stagingDir, id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}

	delete(s.files, id)
	return nil
}

// Count returns the number of staged files.
func (s *LocalStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

func sweep(stagingDir string) error {
	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		return fmt.Errorf("reading staging directory: %w", err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(stagingDir, entry.Name())); err != nil {
			return fmt.Errorf("removing stale staged file: %w", err)
		}
	}
	return nil
}
