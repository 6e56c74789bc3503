package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process store for local/dev use and tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []Memory
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Create(_ context.Context, text string, tags []string, source *string, embedding []float32) (Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	m := Memory{
		ID:        uuid.NewString(),
		Text:      text,
		Tags:      tags,
		Source:    source,
		Embedding: embedding,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if m.Tags == nil {
		m.Tags = []string{}
	}
	s.records = append(s.records, cloneMemory(m))
	return m, nil
}

func (s *InMemoryStore) All(_ context.Context) ([]Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Memory, 0, len(s.records))
	for _, m := range s.records {
		out = append(out, cloneMemory(m))
	}
	return out, nil
}

func (s *InMemoryStore) List(_ context.Context, opts ListOptions) ([]Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]Memory, 0, len(s.records))
	for _, m := range s.records {
		if opts.Tag != "" && !hasTag(m, opts.Tag) {
			continue
		}
		if opts.Source != "" && (m.Source == nil || *m.Source != opts.Source) {
			continue
		}
		matched = append(matched, m)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	page := opts.Page
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * opts.PerPage
	if offset >= len(matched) || opts.PerPage <= 0 {
		return []Memory{}, nil
	}
	end := offset + opts.PerPage
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]Memory, 0, end-offset)
	for _, m := range matched[offset:end] {
		out = append(out, cloneMemory(m))
	}
	return out, nil
}

func (s *InMemoryStore) UpdateFacets(_ context.Context, id string, tags []string, source *string) (Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].ID != id {
			continue
		}
		if tags == nil {
			tags = []string{}
		}
		s.records[i].Tags = append([]string(nil), tags...)
		if source != nil {
			src := *source
			s.records[i].Source = &src
		} else {
			s.records[i].Source = nil
		}
		s.records[i].UpdatedAt = time.Now().UTC()
		return cloneMemory(s.records[i]), nil
	}
	return Memory{}, ErrNotFound
}

func (s *InMemoryStore) Delete(_ context.Context, id string) (Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].ID == id {
			removed := s.records[i]
			s.records = append(s.records[:i], s.records[i+1:]...)
			return removed, nil
		}
	}
	return Memory{}, ErrNotFound
}

func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *InMemoryStore) TagCounts(ctx context.Context) ([]LabelCount, error) {
	memories, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return aggregateTags(memories), nil
}

func (s *InMemoryStore) SourceCounts(ctx context.Context) ([]LabelCount, error) {
	memories, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return aggregateSources(memories), nil
}

func (s *InMemoryStore) RecentTexts(_ context.Context, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	ordered := make([]Memory, len(s.records))
	copy(ordered, s.records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
	})
	if limit > len(ordered) {
		limit = len(ordered)
	}

	texts := make([]string, 0, limit)
	for _, m := range ordered[:limit] {
		texts = append(texts, m.Text)
	}
	return texts, nil
}

func (s *InMemoryStore) Close() error { return nil }

func hasTag(m Memory, tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
