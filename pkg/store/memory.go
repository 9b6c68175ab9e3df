package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/boneforge/boneforge/pkg/errors"
)

// MemoryStore is an in-process Store for tests and single-shot CLI runs.
// Safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	clips map[string]*Clip
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{clips: map[string]*Clip{}}
}

// Put stores or replaces a clip under its name.
func (s *MemoryStore) Put(ctx context.Context, clip *Clip) error {
	if err := errors.ValidateClipName(clip.Name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *clip
	cp.UpdatedAt = time.Now().UTC()
	if prev, ok := s.clips[clip.Name]; ok {
		cp.CreatedAt = prev.CreatedAt
	}
	s.clips[clip.Name] = &cp
	return nil
}

// Get retrieves a clip by name.
func (s *MemoryStore) Get(ctx context.Context, name string) (*Clip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clips[name]
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "clip %q not found", name)
	}
	cp := *c
	return &cp, nil
}

// List returns summaries of all clips, sorted by name.
func (s *MemoryStore) List(ctx context.Context) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Info, 0, len(s.clips))
	for _, c := range s.clips {
		out = append(out, infoOf(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes a clip by name.
func (s *MemoryStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clips[name]; !ok {
		return errors.New(errors.ErrCodeNotFound, "clip %q not found", name)
	}
	delete(s.clips, name)
	return nil
}

// Close does nothing for the in-memory store.
func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
