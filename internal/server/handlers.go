package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/memtier/memtier/internal/engine"
	"github.com/memtier/memtier/pkg/types"
)

// Indexer receives newly ingested content for background embedding indexing.
// Optional; nil means memories stay lexical-only.
type Indexer interface {
	IndexAsync(memoryID, content string)
}

// API holds the HTTP handlers over the consolidation engine.
type API struct {
	engine  *engine.Engine
	indexer Indexer
}

// NewAPI creates the handler set. indexer may be nil.
func NewAPI(eng *engine.Engine, indexer Indexer) *API {
	return &API{engine: eng, indexer: indexer}
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// CreateMemory handles POST /api/memories: ingest a short-term entry.
func (a *API) CreateMemory(w http.ResponseWriter, r *http.Request) {
	var req engine.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	id, err := a.engine.Ingest(req)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidInput) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if a.indexer != nil {
		a.indexer.IndexAsync(id, req.Content)
	}

	respondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// AccessMemory handles POST /api/memories/{id}/access: record a short-term
// access (reinforcement).
func (a *API) AccessMemory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.engine.Access(id); err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "accessed"})
}

// ReinforceMemory handles POST /api/longterm/{id}/reinforce: record an
// access on a long-term entry.
func (a *API) ReinforceMemory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.engine.Reinforce(id); err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "reinforced"})
}

// factRequest is the POST /api/facts body.
type factRequest struct {
	Statement  string  `json:"statement"`
	Confidence float64 `json:"confidence"`
}

// CreateFact handles POST /api/facts: store an externally detected fact.
func (a *API) CreateFact(w http.ResponseWriter, r *http.Request) {
	var req factRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	id, err := a.engine.RecordFact(req.Statement, req.Confidence)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidInput) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if a.indexer != nil {
		a.indexer.IndexAsync(id, req.Statement)
	}

	respondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// consolidateRequest is the POST /api/consolidate body. An empty trigger
// defaults to manual.
type consolidateRequest struct {
	Trigger       string `json:"trigger"`
	UserInitiated bool   `json:"user_initiated"`
}

// Consolidate handles POST /api/consolidate: run one consolidation cycle
// and return its event.
func (a *API) Consolidate(w http.ResponseWriter, r *http.Request) {
	var req consolidateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
	}
	trigger := types.TriggerReason(req.Trigger)
	if req.Trigger == "" {
		trigger = types.TriggerManual
		req.UserInitiated = true
	}

	event, err := a.engine.RunConsolidationCycle(r.Context(), trigger, req.UserInitiated)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrInvalidTrigger):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, engine.ErrCorruptState):
			respondError(w, http.StatusConflict, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, event)
}

// GetContext handles GET /api/context: aggregate matching memories across
// all tiers. Query parameters: q, entity (repeatable), limit.
func (a *API) GetContext(w http.ResponseWriter, r *http.Request) {
	opts := engine.SearchOptions{
		Query:     r.URL.Query().Get("q"),
		EntityIDs: r.URL.Query()["entity"],
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		opts.Limit = limit
	}

	snapshot, err := a.engine.SearchContext(r.Context(), opts)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

// statsResponse is the GET /api/stats payload.
type statsResponse struct {
	State           string `json:"state"`
	ShortTermCount  int    `json:"short_term_count"`
	LongTermCount   int    `json:"long_term_count"`
	CrossReferences int    `json:"cross_references"`
}

// GetStats handles GET /api/stats: engine state and store sizes. The
// snapshot is taken under the engine mutex; reading the stores directly
// would race concurrent ingestion and consolidation handlers.
func (a *API) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := a.engine.Stats()
	respondJSON(w, http.StatusOK, statsResponse{
		State:           string(stats.State),
		ShortTermCount:  stats.ShortTermEntries,
		LongTermCount:   stats.LongTermEntries,
		CrossReferences: stats.CrossReferences,
	})
}

// Health handles GET /api/health.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy","version":"1.0.0"}`))
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent; just log.
		log.Printf("failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{
		Error: message,
		Code:  strings.ReplaceAll(strings.ToUpper(http.StatusText(statusCode)), " ", "_"),
	})
}
