package artifact

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/analystmesh/core"
)

type entry struct {
	meta core.DataFile
	data []byte
}

// InMemoryStore is an in-process DataFileStore guarded by an RWMutex. Data
// is copied on save and retrieval.
type InMemoryStore struct {
	mu      sync.RWMutex
	files   map[string]entry
	maxSize int
}

// InMemoryOptions configures NewInMemoryStore.
type InMemoryOptions struct {
	// MaxSize rejects uploads larger than this many bytes. Zero disables the check.
	MaxSize int
}

// NewInMemoryStore returns an empty in-memory data-file store.
func NewInMemoryStore(optFns ...func(o *InMemoryOptions)) *InMemoryStore {
	opts := InMemoryOptions{MaxSize: 32 << 20}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &InMemoryStore{files: make(map[string]entry), maxSize: opts.MaxSize}
}

// Put stores data under a fresh id.
func (s *InMemoryStore) Put(_ context.Context, name string, data []byte) (core.DataFile, error) {
	if s.maxSize > 0 && len(data) > s.maxSize {
		return core.DataFile{}, ErrTooLarge
	}
	cp := make([]byte, len(data))
	copy(cp, data)

	meta := core.DataFile{
		ID:         uuid.NewString(),
		Name:       name,
		Size:       len(data),
		UploadedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[meta.ID] = entry{meta: meta, data: cp}
	return meta, nil
}

// Get returns a copy of the stored bytes or ErrNotFound.
func (s *InMemoryStore) Get(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(e.data))
	copy(cp, e.data)
	return cp, nil
}

// List returns the stored files ordered by upload time.
func (s *InMemoryStore) List(_ context.Context) ([]core.DataFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.DataFile, 0, len(s.files))
	for _, e := range s.files {
		out = append(out, e.meta)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UploadedAt.Before(out[j].UploadedAt)
	})
	return out, nil
}

// Delete removes the file or returns ErrNotFound.
func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[id]; !ok {
		return ErrNotFound
	}
	delete(s.files, id)
	return nil
}
