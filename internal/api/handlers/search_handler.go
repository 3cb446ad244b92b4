package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/SiegfredLorelle/iskobot-api/internal/models"
)

const (
	defaultSearchK = 4
	maxSearchK     = 50
)

// Searcher answers similarity queries over the ingested collection.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]models.SearchResult, error)
}

type SearchHandler struct {
	searcher Searcher
	logger   *zap.Logger
}

func NewSearchHandler(searcher Searcher, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{searcher: searcher, logger: logger.Named("search_handler")}
}

type SearchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type SearchResponse struct {
	Results []models.SearchResult `json:"results"`
}

// Search handles POST /api/search.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request")
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeDetail(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.K <= 0 {
		req.K = defaultSearchK
	}
	req.K = min(req.K, maxSearchK)

	results, err := h.searcher.Search(r.Context(), req.Query, req.K)
	if err != nil {
		h.logger.Error("search failed", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "search failed")
		return
	}
	if results == nil {
		results = []models.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
