package store

import (
	"context"
	"sort"
	"sync"

	"github.com/lexfuse/lexfuse/pkg/models"
)

// MemoryStore is a thread-safe in-memory Store. Profiles and document
// types are upserted on Put; traces are capped to the most recent
// maxTraces entries.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]models.BackendProfile
	docTypes map[string]models.DocTypeConfig
	traces   []models.GenerationTrace

	maxTraces int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles:  make(map[string]models.BackendProfile),
		docTypes:  make(map[string]models.DocTypeConfig),
		maxTraces: 500,
	}
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// ── Profiles ─────────────────────────────────────────────────

func (s *MemoryStore) ListProfiles(ctx context.Context) ([]models.BackendProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.BackendProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetProfile(ctx context.Context, id string) (*models.BackendProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := p
	return &cp, nil
}

func (s *MemoryStore) PutProfile(ctx context.Context, p *models.BackendProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = *p
	return nil
}

func (s *MemoryStore) DeleteProfile(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[id]; !ok {
		return ErrNotFound
	}
	delete(s.profiles, id)
	return nil
}

// ── Document Types ───────────────────────────────────────────

func (s *MemoryStore) ListDocTypes(ctx context.Context) ([]models.DocTypeConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.DocTypeConfig, 0, len(s.docTypes))
	for _, c := range s.docTypes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetDocType(ctx context.Context, id string) (*models.DocTypeConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.docTypes[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := c
	return &cp, nil
}

func (s *MemoryStore) PutDocType(ctx context.Context, c *models.DocTypeConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docTypes[c.ID] = *c
	return nil
}

// ── Traces ───────────────────────────────────────────────────

func (s *MemoryStore) CreateTrace(ctx context.Context, t *models.GenerationTrace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.traces = append(s.traces, *t)
	if len(s.traces) > s.maxTraces {
		s.traces = s.traces[len(s.traces)-s.maxTraces:]
	}
	return nil
}

func (s *MemoryStore) GetTrace(ctx context.Context, id string) (*models.GenerationTrace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.traces {
		if s.traces[i].ID == id {
			cp := s.traces[i]
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListTraces(ctx context.Context, limit int) ([]models.GenerationTrace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.traces) {
		limit = len(s.traces)
	}
	// Most recent first
	out := make([]models.GenerationTrace, 0, limit)
	for i := len(s.traces) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.traces[i])
	}
	return out, nil
}
