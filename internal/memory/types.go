package memory

import (
	"context"
	"errors"
	"sort"
	"time"
)

// ErrNotFound is returned when no record exists for the requested id.
// Deleting a missing record is a normal outcome, not a store failure.
var ErrNotFound = errors.New("memory not found")

// Memory is a single stored note with its embedding vector.
type Memory struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Tags      []string  `json:"tags"`
	Source    *string   `json:"source,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LabelCount pairs a tag or source label with its record frequency.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// ListOptions selects a page of records. Page is 1-indexed. Tag and Source
// filters are conjunctive; empty strings mean "no filter".
type ListOptions struct {
	Page    int
	PerPage int
	Tag     string
	Source  string
}

// Store persists and retrieves memories. Implementations hand out copies;
// callers never hold live references into store state.
type Store interface {
	Create(ctx context.Context, text string, tags []string, source *string, embedding []float32) (Memory, error)
	All(ctx context.Context) ([]Memory, error)
	List(ctx context.Context, opts ListOptions) ([]Memory, error)
	UpdateFacets(ctx context.Context, id string, tags []string, source *string) (Memory, error)
	Delete(ctx context.Context, id string) (Memory, error)
	Count(ctx context.Context) (int, error)
	TagCounts(ctx context.Context) ([]LabelCount, error)
	SourceCounts(ctx context.Context) ([]LabelCount, error)
	RecentTexts(ctx context.Context, limit int) ([]string, error)
	Close() error
}

// aggregateTags walks each record's raw tag list, so a tag repeated on one
// record counts once per occurrence. Sorted by count descending; ties carry
// no secondary order.
func aggregateTags(memories []Memory) []LabelCount {
	freq := make(map[string]int)
	for _, m := range memories {
		for _, tag := range m.Tags {
			freq[tag]++
		}
	}
	return sortedCounts(freq)
}

// aggregateSources counts records per source; records without a source
// contribute to no bucket.
func aggregateSources(memories []Memory) []LabelCount {
	freq := make(map[string]int)
	for _, m := range memories {
		if m.Source != nil && *m.Source != "" {
			freq[*m.Source]++
		}
	}
	return sortedCounts(freq)
}

func sortedCounts(freq map[string]int) []LabelCount {
	counts := make([]LabelCount, 0, len(freq))
	for label, n := range freq {
		counts = append(counts, LabelCount{Label: label, Count: n})
	}
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
	return counts
}

func cloneMemory(m Memory) Memory {
	out := m
	if m.Tags != nil {
		out.Tags = append([]string(nil), m.Tags...)
	}
	if m.Embedding != nil {
		out.Embedding = append([]float32(nil), m.Embedding...)
	}
	if m.Source != nil {
		src := *m.Source
		out.Source = &src
	}
	return out
}
