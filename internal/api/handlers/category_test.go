package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/noesis-ai/noesis/internal/domain"
)

// MockCategoryService is a mock implementation of CategoryService
type MockCategoryService struct {
	mock.Mock
}

func (m *MockCategoryService) CreateCategory(ctx context.Context, c *domain.KnowledgeCategory) (*domain.KnowledgeCategory, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeCategory), args.Error(1)
}

func (m *MockCategoryService) ListCategories(ctx context.Context, orgID string) ([]*domain.KnowledgeCategory, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeCategory), args.Error(1)
}

func admin(orgID string) *domain.Principal {
	return &domain.Principal{KeyID: "key-adm", OrgID: orgID, Role: domain.RoleAdmin}
}

func TestCategoryHandler_Create(t *testing.T) {
	scope := domain.Scope{OrgID: "org-1"}

	t.Run("creates a custom category", func(t *testing.T) {
		mockSvc := new(MockCategoryService)
		handler := NewCategoryHandler(mockSvc)

		mockSvc.On("CreateCategory", mock.Anything, mock.MatchedBy(func(c *domain.KnowledgeCategory) bool {
			return c.Code == "runbook" && c.OrgID == "org-1" && c.DefaultTier == 2
		})).Return(&domain.KnowledgeCategory{
			Code:              "runbook",
			OrgID:             "org-1",
			Name:              "Runbooks",
			DefaultScopeLevel: domain.ScopeLevelProduct,
			DefaultTier:       2,
			CreatedAt:         time.Now().UTC(),
		}, nil)

		req := authedRequest(http.MethodPost, "/categories", jsonBody(t, CreateCategoryRequest{
			Code:              "runbook",
			Name:              "Runbooks",
			DefaultScopeLevel: "product",
			DefaultTier:       2,
		}), admin("org-1"), scope)
		w := httptest.NewRecorder()

		handler.Create(w, req)

		require.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), `"code":"runbook"`)
		mockSvc.AssertExpectations(t)
	})

	t.Run("requires the admin role", func(t *testing.T) {
		mockSvc := new(MockCategoryService)
		handler := NewCategoryHandler(mockSvc)

		req := authedRequest(http.MethodPost, "/categories", jsonBody(t, CreateCategoryRequest{
			Code: "runbook",
			Name: "Runbooks",
		}), approver("org-1"), scope)
		w := httptest.NewRecorder()

		handler.Create(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		mockSvc.AssertNotCalled(t, "CreateCategory", mock.Anything, mock.Anything)
	})

	t.Run("maps a duplicate code to 409", func(t *testing.T) {
		mockSvc := new(MockCategoryService)
		handler := NewCategoryHandler(mockSvc)

		mockSvc.On("CreateCategory", mock.Anything, mock.Anything).Return(nil, domain.ErrCategoryAlreadyExists)

		req := authedRequest(http.MethodPost, "/categories", jsonBody(t, CreateCategoryRequest{
			Code: "decision",
			Name: "Decisions",
		}), admin("org-1"), scope)
		w := httptest.NewRecorder()

		handler.Create(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestCategoryHandler_List(t *testing.T) {
	scope := domain.Scope{OrgID: "org-1"}

	mockSvc := new(MockCategoryService)
	handler := NewCategoryHandler(mockSvc)

	mockSvc.On("ListCategories", mock.Anything, "org-1").Return([]*domain.KnowledgeCategory{
		{Code: domain.CategoryDecision, Name: "Decisions", System: true, DefaultScopeLevel: domain.ScopeLevelEngagement, DefaultTier: domain.TierReviewRequired, CreatedAt: time.Now().UTC()},
		{Code: "runbook", OrgID: "org-1", Name: "Runbooks", DefaultScopeLevel: domain.ScopeLevelProduct, DefaultTier: 2, CreatedAt: time.Now().UTC()},
	}, nil)

	req := authedRequest(http.MethodGet, "/categories", nil, contributor("org-1"), scope)
	w := httptest.NewRecorder()

	handler.List(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"system":true`)
	assert.Contains(t, w.Body.String(), `"code":"runbook"`)
	mockSvc.AssertExpectations(t)
}
