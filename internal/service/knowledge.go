package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/noesis-ai/noesis/internal/domain"
	"github.com/noesis-ai/noesis/internal/pagination"
)

// KnowledgeRepositoryInterface defines the repository interface for
// knowledge item persistence.
type KnowledgeRepositoryInterface interface {
	Create(ctx context.Context, k *domain.KnowledgeItem) error
	GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error)
	GetHeadBySourceKey(ctx context.Context, sourceKey string) (*domain.KnowledgeItem, error)
	ListHeadsBySourceKey(ctx context.Context, sourceKey string) ([]*domain.KnowledgeItem, error)
	History(ctx context.Context, id string) ([]*domain.KnowledgeItem, error)
	MarkSuperseded(ctx context.Context, oldID, newID string) error
	UpdateValidation(ctx context.Context, id string, state domain.ValidationState, validatedBy string, validatedAt time.Time) error
	UpdateEmbedding(ctx context.Context, id string, embedding []float32, model string, dims int) error
	GetEmbedding(ctx context.Context, id string) ([]float32, string, int, error)
	TouchForPromotion(ctx context.Context, id string, expectedVersion int64) error
	SearchSimilar(ctx context.Context, p SearchParams) ([]*SearchResult, error)
	ListByScope(ctx context.Context, scope domain.Scope, cursor *pagination.Cursor, limit int) (*KnowledgePageResult, error)
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*domain.KnowledgeItem, error)
	IterateForReembed(ctx context.Context, model string, afterID string, limit int) ([]*domain.KnowledgeItem, error)
	CountByState(ctx context.Context, orgID string) (map[domain.ValidationState]int64, error)
	CountByCategory(ctx context.Context, orgID string) (map[string]int64, error)
	CountStalePending(ctx context.Context, orgID string, olderThan time.Time) (int64, error)
}

// CategoryRepositoryInterface defines the repository interface for the
// organization taxonomy.
type CategoryRepositoryInterface interface {
	Create(ctx context.Context, c *domain.KnowledgeCategory) error
	GetByCode(ctx context.Context, orgID, code string) (*domain.KnowledgeCategory, error)
	ListByOrg(ctx context.Context, orgID string) ([]*domain.KnowledgeCategory, error)
}

type KnowledgePageResult struct {
	Items      []*domain.KnowledgeItem
	NextCursor string
	HasMore    bool
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// KnowledgeService handles read access to knowledge items and the taxonomy.
type KnowledgeService struct {
	repo         KnowledgeRepositoryInterface
	categoryRepo CategoryRepositoryInterface
}

func NewKnowledgeService(repo KnowledgeRepositoryInterface, categoryRepo CategoryRepositoryInterface) *KnowledgeService {
	return &KnowledgeService{repo: repo, categoryRepo: categoryRepo}
}

// Get fetches an item and enforces the caller's scope: an item outside the
// query scope is reported as not found, never as forbidden.
func (s *KnowledgeService) Get(ctx context.Context, scope domain.Scope, id string) (*domain.KnowledgeItem, error) {
	if id == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "knowledge item ID is required")
	}
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visibleTo(item.Scope, scope) {
		return nil, domain.ErrKnowledgeNotFound
	}
	return item, nil
}

// History returns the full version chain for an item, oldest first.
func (s *KnowledgeService) History(ctx context.Context, scope domain.Scope, id string) ([]*domain.KnowledgeItem, error) {
	if _, err := s.Get(ctx, scope, id); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, id)
}

// List pages through items visible to the scope, newest first.
func (s *KnowledgeService) List(ctx context.Context, scope domain.Scope, cursorStr string, limit int) (*KnowledgePageResult, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	var cursor *pagination.Cursor
	if cursorStr != "" {
		decoded, err := pagination.DecodeCursor(cursorStr)
		if err != nil {
			return nil, domain.NewDomainError(domain.ErrCodeValidation, "invalid pagination cursor")
		}
		cursor = decoded
	}

	return s.repo.ListByScope(ctx, scope, cursor, limit)
}

// CreateCategory adds a taxonomy node for an organization.
func (s *KnowledgeService) CreateCategory(ctx context.Context, c *domain.KnowledgeCategory) (*domain.KnowledgeCategory, error) {
	if c.DefaultTier == 0 {
		c.DefaultTier = domain.TierReviewRequired
	}
	if c.DefaultScopeLevel == "" {
		c.DefaultScopeLevel = domain.ScopeLevelOrganization
	}
	c.CreatedAt = time.Now().UTC()

	if err := domain.ValidateCategory(c); err != nil {
		return nil, err
	}
	if c.ParentCode != "" {
		if _, err := s.categoryRepo.GetByCode(ctx, c.OrgID, c.ParentCode); err != nil {
			return nil, err
		}
	}

	if err := s.categoryRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// SeedSystemCategories creates the built-in taxonomy nodes for an
// organization. Already-seeded nodes are left untouched.
func (s *KnowledgeService) SeedSystemCategories(ctx context.Context, orgID string) error {
	if orgID == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "organization ID is required")
	}

	seed := []struct {
		code string
		name string
		tier int
	}{
		{domain.CategoryMethodology, "Methodology", domain.TierReviewRequired},
		{domain.CategoryBestPractice, "Best Practice", domain.TierReviewRequired},
		{domain.CategoryDecision, "Decision", domain.TierAutoApproved},
		{domain.CategoryRequirement, "Requirement", domain.TierAutoApproved},
		{domain.CategoryRetrospective, "Retrospective", domain.TierReviewRequired},
		{domain.CategoryFeedback, "Feedback", domain.TierAIGenerated},
	}

	now := time.Now().UTC()
	for _, c := range seed {
		err := s.categoryRepo.Create(ctx, &domain.KnowledgeCategory{
			Code:              c.code,
			OrgID:             orgID,
			Name:              c.name,
			DefaultScopeLevel: domain.ScopeLevelOrganization,
			DefaultTier:       c.tier,
			System:            true,
			CreatedAt:         now,
		})
		if err != nil && !errors.Is(err, domain.ErrCategoryAlreadyExists) {
			return err
		}
	}
	return nil
}

// ListCategories returns the organization's taxonomy, system nodes included.
func (s *KnowledgeService) ListCategories(ctx context.Context, orgID string) ([]*domain.KnowledgeCategory, error) {
	if orgID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "organization ID is required")
	}
	return s.categoryRepo.ListByOrg(ctx, orgID)
}

// visibleTo reports whether an item scope is visible from a query scope:
// every populated item field must match the query, and unpopulated item
// fields inherit downward.
func visibleTo(item, query domain.Scope) bool {
	if item.OrgID != query.OrgID {
		return false
	}
	if item.ProductID != "" && item.ProductID != query.ProductID {
		return false
	}
	if item.ClientID != "" && item.ClientID != query.ClientID {
		return false
	}
	if item.EngagementID != "" && item.EngagementID != query.EngagementID {
		return false
	}
	return true
}
