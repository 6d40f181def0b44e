// Package memory provides process-local stores for tests and ephemeral sessions.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/findirfin/ringil/internal/domain/apperr"
	"github.com/findirfin/ringil/internal/domain/entities"
	"github.com/findirfin/ringil/internal/domain/ports"
)

// PrimaryStore keeps blobs in a map
type PrimaryStore struct {
	mu     sync.RWMutex
	blobs  map[string][]byte
	writes int
	err    error
}

var _ ports.PrimaryStore = (*PrimaryStore)(nil)

// NewPrimaryStore creates an empty primary store
func NewPrimaryStore() *PrimaryStore {
	return &PrimaryStore{blobs: make(map[string][]byte)}
}

// Write stores a copy of blob under key
func (s *PrimaryStore) Write(_ context.Context, key string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.blobs[key] = slices.Clone(blob)
	s.writes++
	return nil
}

// Read returns a copy of the blob under key
func (s *PrimaryStore) Read(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.blobs[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(blob), true, nil
}

// Writes returns how many successful writes the store has seen
func (s *PrimaryStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// FailWith makes subsequent writes return err; nil restores normal behavior
func (s *PrimaryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// SecondaryStore keeps export records in a map
type SecondaryStore struct {
	mu      sync.RWMutex
	records map[int64]*entities.ExportRecord
	err     error
}

var (
	_ ports.SecondaryStore = (*SecondaryStore)(nil)
	_ ports.ExportReader   = (*SecondaryStore)(nil)
)

// NewSecondaryStore creates an empty secondary store
func NewSecondaryStore() *SecondaryStore {
	return &SecondaryStore{records: make(map[int64]*entities.ExportRecord)}
}

// Put inserts or replaces the record for record.ID
func (s *SecondaryStore) Put(_ context.Context, record *entities.ExportRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	cp := *record
	s.records[record.ID] = &cp
	return nil
}

// Delete removes the record for id
func (s *SecondaryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	delete(s.records, id)
	return nil
}

// Get returns the record for id
func (s *SecondaryStore) Get(_ context.Context, id int64) (*entities.ExportRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, apperr.NotFound("export", id)
	}
	cp := *rec
	return &cp, nil
}

// List returns all records, newest first
func (s *SecondaryStore) List(_ context.Context) ([]*entities.ExportRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entities.ExportRecord, 0, len(s.records))
	for _, rec := range s.records {
		cp := *rec
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *entities.ExportRecord) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

// Len returns the number of stored records
func (s *SecondaryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// FailWith makes subsequent operations return err; nil restores normal behavior
func (s *SecondaryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}
