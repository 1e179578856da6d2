package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/noesis-ai/noesis/internal/domain"
	"github.com/noesis-ai/noesis/internal/pagination"
)

func TestKnowledgeService_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("returns an item visible to the query scope", func(t *testing.T) {
		repo := new(MockKnowledgeRepository)
		svc := NewKnowledgeService(repo, new(MockCategoryRepository))

		item := &domain.KnowledgeItem{ID: "item-1", Scope: domain.Scope{OrgID: "org-1"}}
		repo.On("GetByID", mock.Anything, "item-1").Return(item, nil)

		got, err := svc.Get(ctx, domain.Scope{OrgID: "org-1", ProductID: "prod-1"}, "item-1")

		require.NoError(t, err)
		assert.Equal(t, "item-1", got.ID)
	})

	t.Run("org-level items are visible from narrower scopes, not the reverse", func(t *testing.T) {
		repo := new(MockKnowledgeRepository)
		svc := NewKnowledgeService(repo, new(MockCategoryRepository))

		clientItem := &domain.KnowledgeItem{
			ID:    "item-1",
			Scope: domain.Scope{OrgID: "org-1", ProductID: "prod-1", ClientID: "client-1"},
		}
		repo.On("GetByID", mock.Anything, "item-1").Return(clientItem, nil)

		_, err := svc.Get(ctx, domain.Scope{OrgID: "org-1"}, "item-1")
		require.ErrorIs(t, err, domain.ErrKnowledgeNotFound)
	})

	t.Run("requires an item ID and a valid scope", func(t *testing.T) {
		repo := new(MockKnowledgeRepository)
		svc := NewKnowledgeService(repo, new(MockCategoryRepository))

		_, err := svc.Get(ctx, domain.Scope{OrgID: "org-1"}, "")
		require.Error(t, err)

		_, err = svc.Get(ctx, domain.Scope{}, "item-1")
		require.ErrorIs(t, err, domain.ErrScopeOrgRequired)
		repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})
}

func TestKnowledgeService_History(t *testing.T) {
	ctx := context.Background()
	scope := domain.Scope{OrgID: "org-1"}

	repo := new(MockKnowledgeRepository)
	svc := NewKnowledgeService(repo, new(MockCategoryRepository))

	head := &domain.KnowledgeItem{ID: "item-2", Scope: scope}
	chain := []*domain.KnowledgeItem{
		{ID: "item-1", Scope: scope, SupersededByID: "item-2"},
		head,
	}
	repo.On("GetByID", mock.Anything, "item-2").Return(head, nil)
	repo.On("History", mock.Anything, "item-2").Return(chain, nil)

	items, err := svc.History(ctx, scope, "item-2")

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "item-1", items[0].ID)
}

func TestKnowledgeService_List(t *testing.T) {
	ctx := context.Background()
	scope := domain.Scope{OrgID: "org-1"}

	t.Run("passes a decoded cursor through to the repository", func(t *testing.T) {
		repo := new(MockKnowledgeRepository)
		svc := NewKnowledgeService(repo, new(MockCategoryRepository))

		page := &KnowledgePageResult{
			Items:      []*domain.KnowledgeItem{{ID: "item-1", Scope: scope}},
			NextCursor: "next",
			HasMore:    true,
		}
		repo.On("ListByScope", mock.Anything, scope, mock.MatchedBy(func(c *pagination.Cursor) bool {
			return c != nil && c.LastID == "item-0"
		}), 20).Return(page, nil)

		cursor := pagination.EncodeCursor("item-0", page.Items[0].CreatedAt)
		result, err := svc.List(ctx, scope, cursor, 20)

		require.NoError(t, err)
		assert.True(t, result.HasMore)
		repo.AssertExpectations(t)
	})

	t.Run("rejects a malformed cursor", func(t *testing.T) {
		repo := new(MockKnowledgeRepository)
		svc := NewKnowledgeService(repo, new(MockCategoryRepository))

		_, err := svc.List(ctx, scope, "not base64!!", 20)
		require.Error(t, err)
		repo.AssertNotCalled(t, "ListByScope", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestKnowledgeService_CreateCategory(t *testing.T) {
	ctx := context.Background()

	t.Run("applies tier and scope defaults", func(t *testing.T) {
		categoryRepo := new(MockCategoryRepository)
		svc := NewKnowledgeService(new(MockKnowledgeRepository), categoryRepo)

		categoryRepo.On("Create", mock.Anything, mock.MatchedBy(func(c *domain.KnowledgeCategory) bool {
			return c.DefaultTier == domain.TierReviewRequired &&
				c.DefaultScopeLevel == domain.ScopeLevelOrganization
		})).Return(nil)

		created, err := svc.CreateCategory(ctx, &domain.KnowledgeCategory{
			Code:  "playbook",
			OrgID: "org-1",
			Name:  "Playbook",
		})

		require.NoError(t, err)
		assert.Equal(t, domain.TierReviewRequired, created.DefaultTier)
		categoryRepo.AssertExpectations(t)
	})

	t.Run("requires an existing parent", func(t *testing.T) {
		categoryRepo := new(MockCategoryRepository)
		svc := NewKnowledgeService(new(MockKnowledgeRepository), categoryRepo)

		categoryRepo.On("GetByCode", mock.Anything, "org-1", "missing-parent").Return(nil, domain.ErrCategoryNotFound)

		_, err := svc.CreateCategory(ctx, &domain.KnowledgeCategory{
			Code:       "child",
			OrgID:      "org-1",
			Name:       "Child",
			ParentCode: "missing-parent",
		})

		require.ErrorIs(t, err, domain.ErrCategoryNotFound)
		categoryRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestKnowledgeService_SeedSystemCategories(t *testing.T) {
	ctx := context.Background()

	t.Run("seeds the built-in taxonomy", func(t *testing.T) {
		categoryRepo := new(MockCategoryRepository)
		svc := NewKnowledgeService(new(MockKnowledgeRepository), categoryRepo)

		var seeded []string
		categoryRepo.On("Create", mock.Anything, mock.MatchedBy(func(c *domain.KnowledgeCategory) bool {
			return c.System && c.OrgID == "org-1"
		})).Run(func(args mock.Arguments) {
			seeded = append(seeded, args.Get(1).(*domain.KnowledgeCategory).Code)
		}).Return(nil)

		require.NoError(t, svc.SeedSystemCategories(ctx, "org-1"))
		assert.ElementsMatch(t, []string{
			domain.CategoryMethodology,
			domain.CategoryBestPractice,
			domain.CategoryDecision,
			domain.CategoryRequirement,
			domain.CategoryRetrospective,
			domain.CategoryFeedback,
		}, seeded)
	})

	t.Run("is idempotent over already-seeded categories", func(t *testing.T) {
		categoryRepo := new(MockCategoryRepository)
		svc := NewKnowledgeService(new(MockKnowledgeRepository), categoryRepo)

		categoryRepo.On("Create", mock.Anything, mock.Anything).Return(domain.ErrCategoryAlreadyExists)

		require.NoError(t, svc.SeedSystemCategories(ctx, "org-1"))
	})
}
