package simulation

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence port for the comparison collection. Records
// are appended in order and never mutated in place; each operation is a
// single synchronous step that appears atomic to concurrent readers in
// the same process.
type Store interface {
	// Save appends a record and returns its identifier. A blank ID or
	// zero timestamp is filled in; values assigned by the normalizer are
	// preserved. Existing records are never touched.
	Save(result *SimulationResult) (string, error)

	// List returns all records in storage insertion order. The canonical
	// sort key for display is the stored timestamp, not slice position.
	List() ([]*SimulationResult, error)

	// Remove deletes exactly one record by ID. Removing an absent ID is
	// a no-op, not an error.
	Remove(id string) error

	// ClearAll deletes every record. Confirmation of intent is the
	// caller's job; the store deletes unconditionally once called.
	ClearAll() error
}

// stamp fills identity fields on a copy of the record so stored data is
// never shared with the caller's pointer.
func stamp(result *SimulationResult) *SimulationResult {
	rec := *result
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	return &rec
}

// InMemoryStore keeps records in process memory. It backs tests and
// sessions that opt out of persistence.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []*SimulationResult
	index   map[string]int
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{index: make(map[string]int)}
}

func (s *InMemoryStore) Save(result *SimulationResult) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := stamp(result)
	for {
		if _, exists := s.index[rec.ID]; !exists {
			break
		}
		// ID collision; regenerate rather than overwrite.
		rec.ID = uuid.NewString()
	}
	s.index[rec.ID] = len(s.records)
	s.records = append(s.records, rec)
	return rec.ID, nil
}

func (s *InMemoryStore) List() ([]*SimulationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*SimulationResult, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *InMemoryStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, exists := s.index[id]
	if !exists {
		return nil
	}
	s.records = append(s.records[:pos], s.records[pos+1:]...)
	delete(s.index, id)
	for i := pos; i < len(s.records); i++ {
		s.index[s.records[i].ID] = i
	}
	return nil
}

func (s *InMemoryStore) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.index = make(map[string]int)
	return nil
}
