package simulation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists the record array as one JSON blob at a well-known
// path, the durable analogue of the browser-profile storage the store
// replaces. Writes go through a temp file and rename so a failed write
// leaves the previous blob intact.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a file-backed store at path. The file is created
// on first save; its directory must exist or be creatable.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, &StorageError{Op: "open", Err: errors.New("empty store path")}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) load() ([]*SimulationResult, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "read", Err: err}
	}
	var records []*SimulationResult
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, &StorageError{Op: "read", Err: fmt.Errorf("corrupt store file: %w", err)}
	}
	return records, nil
}

func (s *FileStore) persist(records []*SimulationResult) error {
	if records == nil {
		records = []*SimulationResult{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return &StorageError{Op: "write", Err: err}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &StorageError{Op: "write", Err: err}
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return &StorageError{Op: "write", Err: err}
	}
	return nil
}

func (s *FileStore) Save(result *SimulationResult) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return "", err
	}
	rec := stamp(result)
	records = append(records, rec)
	if err := s.persist(records); err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (s *FileStore) List() ([]*SimulationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}
	kept := records[:0]
	for _, rec := range records {
		if rec.ID != id {
			kept = append(kept, rec)
		}
	}
	if len(kept) == len(records) {
		return nil
	}
	return s.persist(kept)
}

func (s *FileStore) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist(nil)
}
