package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noesis-ai/noesis/internal/api"
	"github.com/noesis-ai/noesis/internal/api/middleware"
	"github.com/noesis-ai/noesis/internal/domain"
	"github.com/noesis-ai/noesis/internal/service"
)

type KnowledgeService interface {
	Get(ctx context.Context, scope domain.Scope, id string) (*domain.KnowledgeItem, error)
	History(ctx context.Context, scope domain.Scope, id string) ([]*domain.KnowledgeItem, error)
	List(ctx context.Context, scope domain.Scope, cursor string, limit int) (*service.KnowledgePageResult, error)
}

type ValidationService interface {
	Validate(ctx context.Context, actor *domain.Principal, scope domain.Scope, itemID string, action domain.ValidationAction) (*domain.KnowledgeItem, error)
}

type PromotionService interface {
	Promote(ctx context.Context, actor *domain.Principal, scope domain.Scope, req service.PromoteRequest) (*domain.KnowledgePromotion, *domain.KnowledgeItem, error)
	Resolve(ctx context.Context, actor *domain.Principal, promotionID string, approve bool) (*domain.KnowledgePromotion, error)
	Provenance(ctx context.Context, actor *domain.Principal, itemID string) (*domain.KnowledgePromotion, error)
}

type KnowledgeHandler struct {
	svc        KnowledgeService
	validation ValidationService
	promotion  PromotionService
}

func NewKnowledgeHandler(svc KnowledgeService, validation ValidationService, promotion PromotionService) *KnowledgeHandler {
	return &KnowledgeHandler{svc: svc, validation: validation, promotion: promotion}
}

type KnowledgeItemResponse struct {
	ID                string            `json:"id"`
	OrgID             string            `json:"org_id"`
	ProductID         string            `json:"product_id,omitempty"`
	ClientID          string            `json:"client_id,omitempty"`
	EngagementID      string            `json:"engagement_id,omitempty"`
	CategoryCode      string            `json:"category_code"`
	Title             string            `json:"title"`
	Body              string            `json:"body"`
	Tags              []string          `json:"tags,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	EmbeddingModel    string            `json:"embedding_model,omitempty"`
	Source            string            `json:"source"`
	Confidence        float64           `json:"confidence"`
	Tier              int               `json:"tier"`
	ConfidenceFlagged bool              `json:"confidence_flagged,omitempty"`
	ValidationState   string            `json:"validation_state"`
	ValidatedBy       string            `json:"validated_by,omitempty"`
	ValidatedAt       string            `json:"validated_at,omitempty"`
	SourceRef         string            `json:"source_ref,omitempty"`
	SupersedesID      string            `json:"supersedes_id,omitempty"`
	SupersededByID    string            `json:"superseded_by_id,omitempty"`
	PromotedFromID    string            `json:"promoted_from_id,omitempty"`
	CreatedAt         string            `json:"created_at"`
	UpdatedAt         string            `json:"updated_at"`
}

func knowledgeItemToResponse(k *domain.KnowledgeItem) *KnowledgeItemResponse {
	resp := &KnowledgeItemResponse{
		ID:                k.ID,
		OrgID:             k.Scope.OrgID,
		ProductID:         k.Scope.ProductID,
		ClientID:          k.Scope.ClientID,
		EngagementID:      k.Scope.EngagementID,
		CategoryCode:      k.CategoryCode,
		Title:             k.Title,
		Body:              k.Body,
		Tags:              k.Tags,
		Metadata:          k.Metadata,
		EmbeddingModel:    k.EmbeddingModel,
		Source:            string(k.Source),
		Confidence:        k.Confidence,
		Tier:              k.Tier,
		ConfidenceFlagged: k.ConfidenceFlagged,
		ValidationState:   string(k.ValidationState),
		ValidatedBy:       k.ValidatedBy,
		SourceRef:         k.SourceRef,
		SupersedesID:      k.SupersedesID,
		SupersededByID:    k.SupersededByID,
		PromotedFromID:    k.PromotedFromID,
		CreatedAt:         k.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         k.UpdatedAt.Format(time.RFC3339),
	}
	if k.ValidatedAt != nil {
		resp.ValidatedAt = k.ValidatedAt.Format(time.RFC3339)
	}
	return resp
}

func (h *KnowledgeHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.Get(r.Context(), middleware.GetScope(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := knowledgeItemToResponse(item)

	// Promotion provenance is visible to approvers and admins only.
	principal := middleware.GetPrincipal(r.Context())
	if resp.PromotedFromID != "" && (principal == nil || !principal.Role.AtLeast(domain.RoleApprover)) {
		resp.PromotedFromID = ""
	}

	api.Success(w, http.StatusOK, resp)
}

func (h *KnowledgeHandler) History(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.History(r.Context(), middleware.GetScope(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	out := make([]*KnowledgeItemResponse, len(items))
	for i, item := range items {
		out[i] = knowledgeItemToResponse(item)
	}
	api.Success(w, http.StatusOK, out)
}

type KnowledgeListResponse struct {
	Items      []*KnowledgeItemResponse `json:"items"`
	NextCursor string                   `json:"next_cursor,omitempty"`
	HasMore    bool                     `json:"has_more"`
}

func (h *KnowledgeHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 100 {
			api.Error(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	page, err := h.svc.List(r.Context(), middleware.GetScope(r.Context()), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*KnowledgeItemResponse, len(page.Items))
	for i, item := range page.Items {
		items[i] = knowledgeItemToResponse(item)
	}
	api.Success(w, http.StatusOK, &KnowledgeListResponse{
		Items:      items,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	})
}

type ValidateRequest struct {
	Action string `json:"action"`
}

func (h *KnowledgeHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !domain.IsValidAction(req.Action) {
		api.Error(w, http.StatusBadRequest, "action must be approve, reject or flag")
		return
	}

	item, err := h.validation.Validate(
		r.Context(),
		middleware.GetPrincipal(r.Context()),
		middleware.GetScope(r.Context()),
		chi.URLParam(r, "id"),
		domain.ValidationAction(req.Action),
	)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, knowledgeItemToResponse(item))
}

type PromoteRequestBody struct {
	TargetLevel string   `json:"target_level"`
	Title       string   `json:"title,omitempty"`
	Body        string   `json:"body,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

type PromotionResponse struct {
	ID           string                 `json:"id"`
	SourceItemID string                 `json:"source_item_id"`
	ResultItemID string                 `json:"result_item_id"`
	TargetLevel  string                 `json:"target_level"`
	State        string                 `json:"state"`
	Notes        string                 `json:"notes,omitempty"`
	ResolvedBy   string                 `json:"resolved_by,omitempty"`
	ResolvedAt   string                 `json:"resolved_at,omitempty"`
	CreatedAt    string                 `json:"created_at"`
	ResultItem   *KnowledgeItemResponse `json:"result_item,omitempty"`
}

func promotionToResponse(p *domain.KnowledgePromotion, result *domain.KnowledgeItem) *PromotionResponse {
	resp := &PromotionResponse{
		ID:           p.ID,
		SourceItemID: p.SourceItemID,
		ResultItemID: p.ResultItemID,
		TargetLevel:  string(p.TargetLevel),
		State:        string(p.State),
		Notes:        p.Notes,
		ResolvedBy:   p.ResolvedBy,
		CreatedAt:    p.CreatedAt.Format(time.RFC3339),
	}
	if p.ResolvedAt != nil {
		resp.ResolvedAt = p.ResolvedAt.Format(time.RFC3339)
	}
	if result != nil {
		resp.ResultItem = knowledgeItemToResponse(result)
	}
	return resp
}

func (h *KnowledgeHandler) Promote(w http.ResponseWriter, r *http.Request) {
	var req PromoteRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	level, err := domain.ScopeLevelFromString(req.TargetLevel)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid target_level")
		return
	}

	promotion, result, err := h.promotion.Promote(
		r.Context(),
		middleware.GetPrincipal(r.Context()),
		middleware.GetScope(r.Context()),
		service.PromoteRequest{
			SourceItemID: chi.URLParam(r, "id"),
			TargetLevel:  level,
			Title:        req.Title,
			Body:         req.Body,
			Tags:         req.Tags,
			Notes:        req.Notes,
		},
	)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, promotionToResponse(promotion, result))
}

type ResolvePromotionRequest struct {
	Approve bool   `json:"approve"`
	Notes   string `json:"notes,omitempty"`
}

func (h *KnowledgeHandler) ResolvePromotion(w http.ResponseWriter, r *http.Request) {
	var req ResolvePromotionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	promotion, err := h.promotion.Resolve(r.Context(), middleware.GetPrincipal(r.Context()), chi.URLParam(r, "id"), req.Approve)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, promotionToResponse(promotion, nil))
}
