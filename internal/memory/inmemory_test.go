package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestCreateAssignsIDAndTimestamps(t *testing.T) {
	s := NewInMemoryStore()
	src := "cli"

	m, err := s.Create(context.Background(), "note", []string{"go"}, &src, []float32{1, 2})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if m.ID == "" {
		t.Fatalf("ID not assigned")
	}
	if m.CreatedAt.IsZero() || !m.CreatedAt.Equal(m.UpdatedAt) {
		t.Fatalf("timestamps = %v / %v, want equal non-zero", m.CreatedAt, m.UpdatedAt)
	}
	if m.Source == nil || *m.Source != "cli" {
		t.Fatalf("Source = %v, want cli", m.Source)
	}
}

func TestCreateNilTagsBecomeEmpty(t *testing.T) {
	s := NewInMemoryStore()
	m, err := s.Create(context.Background(), "note", nil, nil, []float32{1})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if m.Tags == nil || len(m.Tags) != 0 {
		t.Fatalf("Tags = %v, want empty non-nil slice", m.Tags)
	}
}

func TestListPaginationOrdersByCreatedAtDesc(t *testing.T) {
	s := NewInMemoryStore()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 1; i <= 25; i++ {
		seed(t, s, Memory{
			Text:      fmt.Sprintf("memory %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	page, err := s.List(context.Background(), ListOptions{Page: 2, PerPage: 10})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(page) != 10 {
		t.Fatalf("len(page) = %d, want 10", len(page))
	}
	// Descending order: page 2 holds memories 15..6.
	if page[0].Text != "memory 15" || page[9].Text != "memory 6" {
		t.Fatalf("page bounds = %q..%q, want memory 15..memory 6", page[0].Text, page[9].Text)
	}
}

func TestListFiltersAreConjunctive(t *testing.T) {
	s := NewInMemoryStore()
	chat := "chat"
	mail := "mail"
	seed(t, s, Memory{Text: "a", Tags: []string{"go"}, Source: &chat})
	seed(t, s, Memory{Text: "b", Tags: []string{"go"}, Source: &mail})
	seed(t, s, Memory{Text: "c", Tags: []string{"rust"}, Source: &chat})
	seed(t, s, Memory{Text: "d", Tags: []string{"go", "db"}, Source: &chat})

	got, err := s.List(context.Background(), ListOptions{Page: 1, PerPage: 20, Tag: "go", Source: "chat"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (tag AND source)", len(got))
	}
	for _, m := range got {
		if m.Text != "a" && m.Text != "d" {
			t.Fatalf("unexpected record %q", m.Text)
		}
	}

	// Absent filters are omitted from the predicate, not "match nothing".
	all, err := s.List(context.Background(), ListOptions{Page: 1, PerPage: 20})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("unfiltered len = %d, want 4", len(all))
	}
}

func TestDeleteReturnsRecordOnceThenNotFound(t *testing.T) {
	s := NewInMemoryStore()
	m, err := s.Create(context.Background(), "ephemeral", nil, nil, []float32{1})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	removed, err := s.Delete(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if removed.Text != "ephemeral" {
		t.Fatalf("removed.Text = %q, want the stored record", removed.Text)
	}

	if _, err := s.Delete(context.Background(), m.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete() error = %v, want ErrNotFound", err)
	}
	if _, err := s.Delete(context.Background(), "never-existed"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete(missing) error = %v, want ErrNotFound", err)
	}
}

func TestTagCountsCountEachOccurrence(t *testing.T) {
	s := NewInMemoryStore()
	seed(t, s, Memory{Text: "1", Tags: []string{"a", "b"}})
	seed(t, s, Memory{Text: "2", Tags: []string{"a"}})
	seed(t, s, Memory{Text: "3", Tags: []string{"b", "b"}})

	counts, err := s.TagCounts(context.Background())
	if err != nil {
		t.Fatalf("TagCounts() error = %v", err)
	}
	got := map[string]int{}
	for _, c := range counts {
		got[c.Label] = c.Count
	}
	// Raw tag lists: a duplicated tag on one record counts per occurrence.
	if got["a"] != 2 || got["b"] != 3 {
		t.Fatalf("counts = %v, want a:2 b:3", got)
	}
	if counts[0].Label != "b" {
		t.Fatalf("first label = %q, want highest count first", counts[0].Label)
	}
}

func TestSourceCountsSkipAbsentSource(t *testing.T) {
	s := NewInMemoryStore()
	chat := "chat"
	mail := "mail"
	seed(t, s, Memory{Text: "1", Source: &chat})
	seed(t, s, Memory{Text: "2", Source: &chat})
	seed(t, s, Memory{Text: "3", Source: &mail})
	seed(t, s, Memory{Text: "4"})

	counts, err := s.SourceCounts(context.Background())
	if err != nil {
		t.Fatalf("SourceCounts() error = %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("len(counts) = %d, want 2 (no bucket for absent source)", len(counts))
	}
	if counts[0].Label != "chat" || counts[0].Count != 2 {
		t.Fatalf("counts[0] = %+v, want chat:2", counts[0])
	}
}

func TestRecentTextsNewestFirstWithLimit(t *testing.T) {
	s := NewInMemoryStore()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 1; i <= 5; i++ {
		seed(t, s, Memory{
			Text:      fmt.Sprintf("t%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	texts, err := s.RecentTexts(context.Background(), 3)
	if err != nil {
		t.Fatalf("RecentTexts() error = %v", err)
	}
	want := []string{"t5", "t4", "t3"}
	if len(texts) != len(want) {
		t.Fatalf("len(texts) = %d, want %d", len(texts), len(want))
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Fatalf("texts[%d] = %q, want %q", i, texts[i], want[i])
		}
	}
}

func TestUpdateFacetsBumpsUpdatedAtOnly(t *testing.T) {
	s := NewInMemoryStore()
	m, err := s.Create(context.Background(), "immutable text", []string{"old"}, nil, []float32{1, 2})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	time.Sleep(2 * time.Millisecond)
	src := "import"
	updated, err := s.UpdateFacets(context.Background(), m.ID, []string{"new"}, &src)
	if err != nil {
		t.Fatalf("UpdateFacets() error = %v", err)
	}
	if updated.Text != "immutable text" {
		t.Fatalf("Text changed to %q", updated.Text)
	}
	if len(updated.Embedding) != 2 {
		t.Fatalf("Embedding changed: %v", updated.Embedding)
	}
	if len(updated.Tags) != 1 || updated.Tags[0] != "new" {
		t.Fatalf("Tags = %v, want [new]", updated.Tags)
	}
	if updated.Source == nil || *updated.Source != "import" {
		t.Fatalf("Source = %v, want import", updated.Source)
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) {
		t.Fatalf("UpdatedAt = %v, want after CreatedAt %v", updated.UpdatedAt, updated.CreatedAt)
	}

	if _, err := s.UpdateFacets(context.Background(), "missing", nil, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateFacets(missing) error = %v, want ErrNotFound", err)
	}
}

func TestCountTracksCreateAndDelete(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	m, _ := s.Create(ctx, "one", nil, nil, []float32{1})
	_, _ = s.Create(ctx, "two", nil, nil, []float32{1})

	if n, _ := s.Count(ctx); n != 2 {
		t.Fatalf("Count = %d, want 2", n)
	}
	if _, err := s.Delete(ctx, m.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if n, _ := s.Count(ctx); n != 1 {
		t.Fatalf("Count = %d, want 1", n)
	}
}

func TestAllReturnsCopies(t *testing.T) {
	s := NewInMemoryStore()
	seed(t, s, Memory{Text: "x", Tags: []string{"a"}, Embedding: []float32{1}})

	first, _ := s.All(context.Background())
	first[0].Tags[0] = "mutated"
	first[0].Embedding[0] = 99

	second, _ := s.All(context.Background())
	if second[0].Tags[0] != "a" || second[0].Embedding[0] != 1 {
		t.Fatalf("store state mutated through returned slice: %+v", second[0])
	}
}

// seed inserts a record directly so tests control timestamps.
func seed(t *testing.T, s *InMemoryStore, m Memory) {
	t.Helper()
	if m.ID == "" {
		m.ID = fmt.Sprintf("seed-%d", len(s.records))
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}
	if m.Tags == nil {
		m.Tags = []string{}
	}
	s.mu.Lock()
	s.records = append(s.records, cloneMemory(m))
	s.mu.Unlock()
}
