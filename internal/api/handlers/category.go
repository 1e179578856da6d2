package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/noesis-ai/noesis/internal/api"
	"github.com/noesis-ai/noesis/internal/api/middleware"
	"github.com/noesis-ai/noesis/internal/domain"
)

type CategoryService interface {
	CreateCategory(ctx context.Context, c *domain.KnowledgeCategory) (*domain.KnowledgeCategory, error)
	ListCategories(ctx context.Context, orgID string) ([]*domain.KnowledgeCategory, error)
}

type CategoryHandler struct {
	svc CategoryService
}

func NewCategoryHandler(svc CategoryService) *CategoryHandler {
	return &CategoryHandler{svc: svc}
}

type CreateCategoryRequest struct {
	Code              string `json:"code"`
	Name              string `json:"name"`
	ParentCode        string `json:"parent_code,omitempty"`
	DefaultScopeLevel string `json:"default_scope_level,omitempty"`
	DefaultTier       int    `json:"default_tier,omitempty"`
}

type CategoryResponse struct {
	Code              string `json:"code"`
	Name              string `json:"name"`
	ParentCode        string `json:"parent_code,omitempty"`
	DefaultScopeLevel string `json:"default_scope_level"`
	DefaultTier       int    `json:"default_tier"`
	System            bool   `json:"system"`
	CreatedAt         string `json:"created_at"`
}

func categoryToResponse(c *domain.KnowledgeCategory) *CategoryResponse {
	return &CategoryResponse{
		Code:              c.Code,
		Name:              c.Name,
		ParentCode:        c.ParentCode,
		DefaultScopeLevel: string(c.DefaultScopeLevel),
		DefaultTier:       c.DefaultTier,
		System:            c.System,
		CreatedAt:         c.CreatedAt.Format(time.RFC3339),
	}
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil || !principal.Role.AtLeast(domain.RoleAdmin) {
		api.HandleError(w, domain.ErrInsufficientRole)
		return
	}

	var req CreateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	category, err := h.svc.CreateCategory(r.Context(), &domain.KnowledgeCategory{
		Code:              req.Code,
		OrgID:             principal.OrgID,
		Name:              req.Name,
		ParentCode:        req.ParentCode,
		DefaultScopeLevel: domain.ScopeLevel(req.DefaultScopeLevel),
		DefaultTier:       req.DefaultTier,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, categoryToResponse(category))
}

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.svc.ListCategories(r.Context(), middleware.GetOrgID(r.Context()))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	out := make([]*CategoryResponse, len(categories))
	for i, c := range categories {
		out[i] = categoryToResponse(c)
	}
	api.Success(w, http.StatusOK, out)
}
