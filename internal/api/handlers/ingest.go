package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/noesis-ai/noesis/internal/api"
	"github.com/noesis-ai/noesis/internal/api/middleware"
	"github.com/noesis-ai/noesis/internal/domain"
	"github.com/noesis-ai/noesis/internal/service"
)

type IngestService interface {
	Ingest(ctx context.Context, sub service.IngestSubmission) (*service.IngestResult, error)
	IngestBatch(ctx context.Context, subs []service.IngestSubmission) ([]*service.IngestResult, error)
}

type IngestHandler struct {
	svc IngestService
}

func NewIngestHandler(svc IngestService) *IngestHandler {
	return &IngestHandler{svc: svc}
}

type IngestRequest struct {
	CategoryCode string            `json:"category_code"`
	Title        string            `json:"title"`
	Body         string            `json:"body"`
	Tags         []string          `json:"tags,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Source       string            `json:"source,omitempty"`
	SourceRef    string            `json:"source_ref,omitempty"`
	Confidence   float64           `json:"confidence,omitempty"`
	Tier         int               `json:"tier,omitempty"`
}

type IngestBatchRequest struct {
	Items []IngestRequest `json:"items"`
}

type IngestResultResponse struct {
	Status  string   `json:"status"`
	ItemIDs []string `json:"item_ids,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func ingestResultToResponse(r *service.IngestResult) *IngestResultResponse {
	return &IngestResultResponse{
		Status:  string(r.Status),
		ItemIDs: r.ItemIDs,
		Error:   r.Error,
	}
}

func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if err := service.RequireRole(principal, domain.RoleContributor); err != nil {
		api.HandleError(w, err)
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.Ingest(r.Context(), submissionFromRequest(r, req))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Status == service.IngestDuplicate {
		status = http.StatusOK
	}
	api.Success(w, status, ingestResultToResponse(result))
}

func (h *IngestHandler) IngestBatch(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if err := service.RequireRole(principal, domain.RoleContributor); err != nil {
		api.HandleError(w, err)
		return
	}

	var req IngestBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Items) == 0 {
		api.Error(w, http.StatusBadRequest, "items are required")
		return
	}

	subs := make([]service.IngestSubmission, len(req.Items))
	for i, item := range req.Items {
		subs[i] = submissionFromRequest(r, item)
	}

	results, err := h.svc.IngestBatch(r.Context(), subs)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	out := make([]*IngestResultResponse, len(results))
	for i, result := range results {
		out[i] = ingestResultToResponse(result)
	}
	api.Success(w, http.StatusOK, out)
}

func submissionFromRequest(r *http.Request, req IngestRequest) service.IngestSubmission {
	return service.IngestSubmission{
		Scope:        middleware.GetScope(r.Context()),
		CategoryCode: req.CategoryCode,
		Title:        req.Title,
		Body:         req.Body,
		Tags:         req.Tags,
		Metadata:     req.Metadata,
		Source:       domain.SourceType(req.Source),
		SourceRef:    req.SourceRef,
		Confidence:   req.Confidence,
		Tier:         req.Tier,
	}
}
