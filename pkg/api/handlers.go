package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/goran-ethernal/IndexSync/internal/logger"
	"github.com/goran-ethernal/IndexSync/pkg/chain"
	"github.com/goran-ethernal/IndexSync/pkg/index"
)

// IndexRegistry defines the interface for accessing running indexes.
type IndexRegistry interface {
	Get(name string) (*index.Engine, bool)
	List() []*index.Engine
}

// ChainTipProvider reports the tip of the active chain.
type ChainTipProvider interface {
	Tip() *chain.BlockIndex
}

// Handler handles HTTP requests for the API.
type Handler struct {
	registry IndexRegistry
	chain    ChainTipProvider
	log      *logger.Logger
	now      func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(registry IndexRegistry, tip ChainTipProvider, log *logger.Logger) *Handler {
	return &Handler{
		registry: registry,
		chain:    tip,
		log:      log,
		now:      time.Now,
	}
}

// ListIndexes returns all running indexes.
// @Summary List all indexes
// @Description Get the sync status of every running index and the endpoints it serves
// @Tags Indexes
// @Produce json
// @Success 200 {array} IndexInfo "List of indexes"
// @Router /indexes [get]
func (h *Handler) ListIndexes(w http.ResponseWriter, r *http.Request) {
	engines := h.registry.List()

	infos := make([]IndexInfo, 0, len(engines))
	for _, e := range engines {
		infos = append(infos, indexInfo(e))
	}

	respondJSON(w, http.StatusOK, infos)
}

// GetIndex returns the status of one index.
// @Summary Get index status
// @Description Retrieve the sync state and best block of a specific index
// @Tags Indexes
// @Produce json
// @Param name path string true "Index name"
// @Success 200 {object} IndexInfo "Index status"
// @Failure 404 {object} ErrorResponse "Index not found"
// @Router /indexes/{name} [get]
func (h *Handler) GetIndex(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, indexInfo(e))
}

// Lookup resolves a key in an index.
// @Summary Look up a key
// @Description Resolve a transaction hash, block hash or height in a specific index. With sync=true the
// @Description lookup first waits until the index has applied every block of the active chain.
// @Tags Indexes
// @Produce json
// @Param name path string true "Index name"
// @Param key path string true "Lookup key: 0x-prefixed hash or decimal height"
// @Param sync query boolean false "Wait for the index to reach the chain tip first"
// @Success 200 {object} LookupResponse "Lookup result"
// @Failure 400 {object} ErrorResponse "Invalid key or index does not support lookups"
// @Failure 404 {object} ErrorResponse "Index or key not found"
// @Failure 503 {object} ErrorResponse "Index is still catching up"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /indexes/{name}/lookup/{key} [get]
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}

	queryable, ok := e.Index().(index.Queryable)
	if !ok {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("index '%s' does not support lookups", e.Name()))
		return
	}

	key := r.PathValue("key")
	if key == "" {
		respondError(w, http.StatusBadRequest, "lookup key is required")
		return
	}

	if syncParam := r.URL.Query().Get("sync"); syncParam != "" {
		wait, err := strconv.ParseBool(syncParam)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid sync: must be a boolean")
			return
		}

		if wait {
			synced, err := e.BlockUntilSyncedToCurrentChain(r.Context())
			if err != nil {
				respondError(w, http.StatusServiceUnavailable, fmt.Sprintf("waiting for index '%s': %v", e.Name(), err))
				return
			}
			if !synced {
				respondError(w, http.StatusServiceUnavailable,
					fmt.Sprintf("index '%s' is still catching up", e.Name()))
				return
			}
		}
	}

	result, err := queryable.Lookup(r.Context(), key)
	switch {
	case errors.Is(err, index.ErrInvalidKey):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, index.ErrNotFound):
		respondError(w, http.StatusNotFound, fmt.Sprintf("key %s not found in index '%s'", key, e.Name()))
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		h.log.Errorf("lookup of %s in %s failed: %v", key, e.Name(), err)
		respondError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	respondJSON(w, http.StatusOK, LookupResponse{
		Index:  e.Name(),
		Key:    key,
		Result: result,
	})
}

// ChainTip returns the tip of the active chain.
// @Summary Get chain tip
// @Description Retrieve the tip of the active chain the indexes follow
// @Tags Chain
// @Produce json
// @Success 200 {object} BlockResponse "Chain tip"
// @Failure 503 {object} ErrorResponse "No block received yet"
// @Router /chain/tip [get]
func (h *Handler) ChainTip(w http.ResponseWriter, r *http.Request) {
	tip := h.tip()
	if tip == nil {
		respondError(w, http.StatusServiceUnavailable, "no block received yet")
		return
	}

	respondJSON(w, http.StatusOK, tip)
}

// Health returns the health status of the API and all indexes.
// @Summary Health check
// @Description Check the health status of the API and the sync status of every index
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse "API and index health status"
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	engines := h.registry.List()

	response := HealthResponse{
		Status:    "ok",
		Timestamp: h.now(),
		ChainTip:  h.tip(),
		Indexes:   make([]index.Summary, 0, len(engines)),
	}
	for _, e := range engines {
		summary := e.Summary()
		if !summary.Ready {
			response.Status = "syncing"
		}
		response.Indexes = append(response.Indexes, summary)
	}

	respondJSON(w, http.StatusOK, response)
}

func (h *Handler) engine(w http.ResponseWriter, r *http.Request) (*index.Engine, bool) {
	name := r.PathValue("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "index name is required")
		return nil, false
	}

	e, ok := h.registry.Get(name)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Sprintf("index '%s' not found", name))
		return nil, false
	}
	return e, true
}

func (h *Handler) tip() *BlockResponse {
	if h.chain == nil {
		return nil
	}
	tip := h.chain.Tip()
	if tip == nil {
		return nil
	}

	return &BlockResponse{
		Number:     tip.Height,
		Hash:       tip.Hash,
		ParentHash: tip.Header.ParentHash,
		Timestamp:  tip.Header.Time,
	}
}

func indexInfo(e *index.Engine) IndexInfo {
	info := IndexInfo{
		Summary:   e.Summary(),
		Endpoints: []string{fmt.Sprintf("/api/v1/indexes/%s", e.Name())},
	}
	if _, ok := e.Index().(index.Queryable); ok {
		info.Queryable = true
		info.Endpoints = append(info.Endpoints, fmt.Sprintf("/api/v1/indexes/%s/lookup/{key}", e.Name()))
	}
	return info
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")

	// Encode first so an encoding failure can still change the status.
	encoded, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	_, _ = w.Write(encoded)
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	response := ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	}
	respondJSON(w, status, response)
}
