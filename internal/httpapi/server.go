package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/antoniostano/memorai/internal/config"
	"github.com/antoniostano/memorai/internal/memory"
	"github.com/antoniostano/memorai/internal/observability"
	"github.com/antoniostano/memorai/internal/ollama"
	"github.com/antoniostano/memorai/internal/profile"
	"github.com/antoniostano/memorai/internal/search"
)

const (
	defaultPerPage  = 20
	maxPerPage      = 100
	profileTextCap  = 100
	profileDeadline = 2 * time.Minute
)

// Embedder converts text to a vector via the inference service.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Server struct {
	cfg      config.Config
	store    memory.Store
	embedder Embedder
	synth    *profile.Synthesizer
	metrics  *observability.Metrics
}

func New(cfg config.Config, store memory.Store, embedder Embedder, synth *profile.Synthesizer, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		embedder: embedder,
		synth:    synth,
		metrics:  metrics,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/memories", s.handleCreateMemory)
	r.Get("/v1/memories", s.handleListMemories)
	r.Post("/v1/memories/bulk", s.handleBulkCreate)
	r.Patch("/v1/memories/{id}", s.handleUpdateFacets)
	r.Delete("/v1/memories/{id}", s.handleDeleteMemory)
	r.Get("/v1/search", s.handleSearch)
	r.Get("/v1/stats", s.handleStats)
	r.Get("/v1/profile", s.handleProfile)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"service":    "memorai",
		"store_mode": memory.StoreMode(s.cfg.DatabaseURL),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ready",
		"store_mode": memory.StoreMode(s.cfg.DatabaseURL),
	})
}

func (s *Server) handleCreateMemory(w http.ResponseWriter, r *http.Request) {
	var req createMemoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "invalid_text", "text cannot be empty")
		return
	}

	m, err := s.createOne(r.Context(), req)
	if err != nil {
		s.metrics.MemoryOps.WithLabelValues("create", "error").Inc()
		log.Printf("create memory failed: %v", err)
		status, code := errorStatus(err)
		respondError(w, status, code, err.Error())
		return
	}

	s.metrics.MemoryOps.WithLabelValues("create", "ok").Inc()
	s.refreshStoredGauge(r.Context())
	respondJSON(w, http.StatusCreated, toPayload(m))
}

// createOne embeds and persists a single note; shared by create and bulk.
func (s *Server) createOne(ctx context.Context, req createMemoryRequest) (memory.Memory, error) {
	start := time.Now()
	embedding, err := s.embedder.Embed(ctx, req.Text)
	if err != nil {
		s.countUpstreamError("embed", err)
		return memory.Memory{}, &upstreamError{op: "embedding", err: err}
	}
	s.metrics.ObserveEmbedLatency(time.Since(start))

	m, err := s.store.Create(ctx, req.Text, req.Tags, req.Source, embedding)
	if err != nil {
		return memory.Memory{}, fmt.Errorf("store memory: %w", err)
	}
	return m, nil
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := intParam(q.Get("page"), 1)
	perPage := intParam(q.Get("per_page"), defaultPerPage)
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	memories, err := s.store.List(r.Context(), memory.ListOptions{
		Page:    page,
		PerPage: perPage,
		Tag:     strings.TrimSpace(q.Get("tag")),
		Source:  strings.TrimSpace(q.Get("source")),
	})
	if err != nil {
		log.Printf("list memories failed: %v", err)
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, toPayloads(memories))
}

func (s *Server) handleBulkCreate(w http.ResponseWriter, r *http.Request) {
	var req bulkCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	// Each item embeds and persists independently; one failure never aborts
	// the batch.
	res := bulkCreateResponse{Errors: []string{}}
	for i, item := range req.Memories {
		if strings.TrimSpace(item.Text) == "" {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("item %d: empty text", i))
			continue
		}
		if _, err := s.createOne(r.Context(), item); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("item %d: %v", i, err))
			continue
		}
		res.Created++
	}

	s.metrics.MemoryOps.WithLabelValues("bulk_create", "ok").Inc()
	s.refreshStoredGauge(r.Context())
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleUpdateFacets(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_id", "missing memory id")
		return
	}
	var req updateFacetsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	m, err := s.store.UpdateFacets(r.Context(), id, req.Tags, req.Source)
	if err != nil {
		if errors.Is(err, memory.ErrNotFound) {
			respondError(w, http.StatusNotFound, "memory_not_found", "no memory with id "+id)
			return
		}
		s.metrics.MemoryOps.WithLabelValues("update_facets", "error").Inc()
		log.Printf("update facets failed: %v", err)
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	s.metrics.MemoryOps.WithLabelValues("update_facets", "ok").Inc()
	respondJSON(w, http.StatusOK, toPayload(m))
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_id", "missing memory id")
		return
	}

	m, err := s.store.Delete(r.Context(), id)
	if err != nil {
		if errors.Is(err, memory.ErrNotFound) {
			respondError(w, http.StatusNotFound, "memory_not_found", "no memory with id "+id)
			return
		}
		s.metrics.MemoryOps.WithLabelValues("delete", "error").Inc()
		log.Printf("delete memory failed: %v", err)
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	s.metrics.MemoryOps.WithLabelValues("delete", "ok").Inc()
	s.refreshStoredGauge(r.Context())
	respondJSON(w, http.StatusOK, toPayload(m))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		respondError(w, http.StatusBadRequest, "invalid_query", "query cannot be empty")
		return
	}
	limit := search.ClampLimit(intParam(r.URL.Query().Get("limit"), 0))

	start := time.Now()
	queryVec, err := s.embedder.Embed(r.Context(), q)
	if err != nil {
		s.countUpstreamError("embed", err)
		log.Printf("query embedding failed: %v", err)
		respondError(w, http.StatusBadGateway, "upstream_error", "embedding failed: "+err.Error())
		return
	}
	s.metrics.ObserveEmbedLatency(time.Since(start))

	candidates, err := s.store.All(r.Context())
	if err != nil {
		log.Printf("fetch candidates failed: %v", err)
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	s.metrics.SearchCandidates.Observe(float64(len(candidates)))

	results, mismatched := search.Rank(queryVec, candidates, limit)
	if mismatched > 0 {
		// Embedding-model drift: stored vectors no longer match the query
		// dimension. They score zero instead of failing, but must not stay
		// invisible.
		s.metrics.DimensionMismatches.Add(float64(mismatched))
		log.Printf("search: %d of %d candidates skipped for embedding dimension mismatch", mismatched, len(candidates))
	}

	payload := make([]searchResultPayload, 0, len(results))
	for _, res := range results {
		payload = append(payload, searchResultPayload{Memory: toPayload(res.Memory), Score: res.Score})
	}
	respondJSON(w, http.StatusOK, payload)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	total, err := s.store.Count(r.Context())
	if err != nil {
		log.Printf("count memories failed: %v", err)
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	// Aggregates degrade to empty rather than failing the stats request.
	tags, err := s.store.TagCounts(r.Context())
	if err != nil {
		log.Printf("tag counts failed: %v", err)
		tags = nil
	}
	sources, err := s.store.SourceCounts(r.Context())
	if err != nil {
		log.Printf("source counts failed: %v", err)
		sources = nil
	}

	respondJSON(w, http.StatusOK, statsResponse{
		TotalMemories: total,
		Tags:          toLabelCounts(tags),
		Sources:       toLabelCounts(sources),
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), profileDeadline)
	defer cancel()

	texts, err := s.store.RecentTexts(ctx, profileTextCap)
	if err != nil {
		log.Printf("fetch texts failed: %v", err)
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	start := time.Now()
	text, count, err := s.synth.Synthesize(ctx, texts)
	if err != nil {
		s.countUpstreamError("generate", err)
		log.Printf("profile synthesis failed: %v", err)
		respondError(w, http.StatusBadGateway, "upstream_error", "profile generation failed: "+err.Error())
		return
	}
	if count > 0 {
		s.metrics.ObserveGenerateLatency(time.Since(start))
	}

	respondJSON(w, http.StatusOK, profileResponse{Profile: text, MemoryCount: count})
}

func (s *Server) refreshStoredGauge(ctx context.Context) {
	if n, err := s.store.Count(ctx); err == nil {
		s.metrics.StoredMemories.Set(float64(n))
	}
}

func (s *Server) countUpstreamError(op string, err error) {
	s.metrics.UpstreamErrors.WithLabelValues(op, upstreamClass(err)).Inc()
}

// upstreamClass buckets inference failures for metrics: non-2xx status,
// missing embedding, or transport/protocol trouble.
func upstreamClass(err error) string {
	var statusErr *ollama.StatusError
	switch {
	case errors.As(err, &statusErr):
		return "status"
	case errors.Is(err, ollama.ErrNoEmbedding):
		return "no_embedding"
	default:
		return "transport"
	}
}

// upstreamError marks a failure as coming from the inference service rather
// than the store, so the boundary can map it to bad-gateway.
type upstreamError struct {
	op  string
	err error
}

func (e *upstreamError) Error() string { return e.op + " failed: " + e.err.Error() }
func (e *upstreamError) Unwrap() error { return e.err }

// errorStatus maps an error to the transport response: inference failures are
// bad-gateway, everything else is an internal store failure.
func errorStatus(err error) (int, string) {
	var ue *upstreamError
	if errors.As(err, &ue) {
		return http.StatusBadGateway, "upstream_error"
	}
	return http.StatusInternalServerError, "store_error"
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func intParam(v string, fallback int) int {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
