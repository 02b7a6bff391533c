// Package registry tracks generation records in memory.
//
// Records live for the process lifetime only; the backing artifact file may
// be deleted by the delivery cleanup step while the record remains.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a generation record.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Record is one tracked generation.
type Record struct {
	ID               string    `json:"model_id"`
	Prompt           string    `json:"prompt"`
	CreatedAt        time.Time `json:"created_at"`
	Status           Status    `json:"status"`
	FilePath         string    `json:"file_path,omitempty"`
	AvailableFormats []string  `json:"available_formats,omitempty"`
}

// Store is a thread-safe in-memory record registry.
type Store struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{records: make(map[string]*Record)}
}

// Create allocates a new record in processing state and returns its id.
func (s *Store) Create(prompt string) string {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[id] = &Record{
		ID:        id,
		Prompt:    prompt,
		CreatedAt: time.Now().UTC(),
		Status:    StatusProcessing,
	}
	return id
}

// AttachFile sets the artifact path and records its format.
// No-op for unknown ids.
func (s *Store) AttachFile(id, path, format string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return
	}
	rec.FilePath = path
	for _, f := range rec.AvailableFormats {
		if f == format {
			return
		}
	}
	rec.AvailableFormats = append(rec.AvailableFormats, format)
}

// SetStatus moves a record to a terminal state. Transitions only run
// forward: terminal records and unknown statuses are left untouched, and
// unknown ids are a no-op.
func (s *Store) SetStatus(id string, status Status) {
	if status != StatusCompleted && status != StatusFailed {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return
	}
	if rec.Status != StatusProcessing {
		return
	}
	rec.Status = status
}

// Get returns a copy of a record, or false if the id is unknown.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return cloneRecord(rec), true
}

// List returns a snapshot of all records keyed by id. Mutating the result
// does not affect the store.
func (s *Store) List() map[string]Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Record, len(s.records))
	for id, rec := range s.records {
		out[id] = cloneRecord(rec)
	}
	return out
}

// Count returns the number of records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func cloneRecord(rec *Record) Record {
	out := *rec
	if rec.AvailableFormats != nil {
		out.AvailableFormats = append([]string(nil), rec.AvailableFormats...)
	}
	return out
}
