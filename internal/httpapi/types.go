package httpapi

import (
	"time"

	"github.com/antoniostano/memorai/internal/memory"
)

type createMemoryRequest struct {
	Text   string   `json:"text"`
	Tags   []string `json:"tags"`
	Source *string  `json:"source"`
}

type bulkCreateRequest struct {
	Memories []createMemoryRequest `json:"memories"`
}

type bulkCreateResponse struct {
	Created int      `json:"created"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}

type updateFacetsRequest struct {
	Tags   []string `json:"tags"`
	Source *string  `json:"source"`
}

// memoryPayload is the presentation form of a record; the embedding vector
// never leaves the service.
type memoryPayload struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Tags      []string  `json:"tags"`
	Source    *string   `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type searchResultPayload struct {
	Memory memoryPayload `json:"memory"`
	Score  float32       `json:"score"`
}

type labelCountPayload struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

type statsResponse struct {
	TotalMemories int                 `json:"total_memories"`
	Tags          []labelCountPayload `json:"tags"`
	Sources       []labelCountPayload `json:"sources"`
}

type profileResponse struct {
	Profile     string `json:"profile"`
	MemoryCount int    `json:"memory_count"`
}

func toPayload(m memory.Memory) memoryPayload {
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	return memoryPayload{
		ID:        m.ID,
		Text:      m.Text,
		Tags:      tags,
		Source:    m.Source,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toPayloads(memories []memory.Memory) []memoryPayload {
	out := make([]memoryPayload, 0, len(memories))
	for _, m := range memories {
		out = append(out, toPayload(m))
	}
	return out
}

func toLabelCounts(counts []memory.LabelCount) []labelCountPayload {
	out := make([]labelCountPayload, 0, len(counts))
	for _, c := range counts {
		out = append(out, labelCountPayload{Label: c.Label, Count: c.Count})
	}
	return out
}
