package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noesis-ai/noesis/internal/api"
	"github.com/noesis-ai/noesis/internal/api/middleware"
	"github.com/noesis-ai/noesis/internal/domain"
	"github.com/noesis-ai/noesis/internal/service"
)

type QueryService interface {
	Search(ctx context.Context, scope domain.Scope, query string, filters service.SearchFilters, topK int) (*service.SearchResponse, error)
	Ask(ctx context.Context, scope domain.Scope, question string, filters service.SearchFilters, topK int) (*service.Answer, error)
	Similar(ctx context.Context, scope domain.Scope, itemID string, topK int) ([]*service.SearchResult, error)
	Feedback(ctx context.Context, scope domain.Scope, queryID string, helpful bool, comment, correction string) (*domain.QueryFeedback, error)
}

type QueryHandler struct {
	svc QueryService
}

func NewQueryHandler(svc QueryService) *QueryHandler {
	return &QueryHandler{svc: svc}
}

type SearchRequest struct {
	Query         string   `json:"query"`
	CategoryCode  string   `json:"category_code,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	MinConfidence float64  `json:"min_confidence,omitempty"`
	TopK          int      `json:"top_k,omitempty"`
}

type SearchHit struct {
	Item       *KnowledgeItemResponse `json:"item"`
	Similarity float64                `json:"similarity"`
}

type SearchResponseBody struct {
	QueryID string       `json:"query_id"`
	Results []*SearchHit `json:"results"`
}

type FeedbackRequest struct {
	QueryID    string `json:"query_id"`
	Helpful    bool   `json:"helpful"`
	Comment    string `json:"comment,omitempty"`
	Correction string `json:"correction,omitempty"`
}

func (h *QueryHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.svc.Search(r.Context(), middleware.GetScope(r.Context()), req.Query, searchFilters(req), req.TopK)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, &SearchResponseBody{
		QueryID: resp.QueryID,
		Results: searchHits(resp.Results),
	})
}

func (h *QueryHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	answer, err := h.svc.Ask(r.Context(), middleware.GetScope(r.Context()), req.Query, searchFilters(req), req.TopK)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, answer)
}

func (h *QueryHandler) Similar(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	var req struct {
		TopK int `json:"top_k,omitempty"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	results, err := h.svc.Similar(r.Context(), middleware.GetScope(r.Context()), itemID, req.TopK)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, searchHits(results))
}

func (h *QueryHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.QueryID == "" {
		api.Error(w, http.StatusBadRequest, "query_id is required")
		return
	}

	feedback, err := h.svc.Feedback(r.Context(), middleware.GetScope(r.Context()), req.QueryID, req.Helpful, req.Comment, req.Correction)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, feedback)
}

func searchFilters(req SearchRequest) service.SearchFilters {
	return service.SearchFilters{
		CategoryCode:  req.CategoryCode,
		Tags:          req.Tags,
		MinConfidence: req.MinConfidence,
	}
}

func searchHits(results []*service.SearchResult) []*SearchHit {
	hits := make([]*SearchHit, len(results))
	for i, result := range results {
		hits[i] = &SearchHit{
			Item:       knowledgeItemToResponse(result.Item),
			Similarity: result.Similarity,
		}
	}
	return hits
}
