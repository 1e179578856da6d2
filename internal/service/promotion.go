package service

import (
	"context"
	"strings"
	"time"

	"github.com/noesis-ai/noesis/internal/domain"
	"github.com/noesis-ai/noesis/internal/provider"
)

type PromotionRepositoryInterface interface {
	Create(ctx context.Context, p *domain.KnowledgePromotion) error
	GetByID(ctx context.Context, id string) (*domain.KnowledgePromotion, error)
	ListBySourceItem(ctx context.Context, sourceItemID string) ([]*domain.KnowledgePromotion, error)
	GetByResultItem(ctx context.Context, resultItemID string) (*domain.KnowledgePromotion, error)
	Resolve(ctx context.Context, id string, state domain.PromotionState, resolvedBy string, resolvedAt time.Time) error
}

// PromoteRequest carries the generalized content for a promotion. The
// caller rewrites title and body so no client-identifying detail survives
// at the broader scope.
type PromoteRequest struct {
	SourceItemID string
	TargetLevel  domain.ScopeLevel
	Title        string
	Body         string
	Tags         []string
	Notes        string
}

// PromotionService republishes narrowly scoped knowledge at broader scope.
// The source item is never modified beyond its optimistic lock.
type PromotionService struct {
	txRunner      TxRunner
	knowledgeRepo KnowledgeRepositoryInterface
	promotionRepo PromotionRepositoryInterface
	embedder      provider.EmbeddingProvider
	uuidGen       UUIDGenerator
}

func NewPromotionService(
	txRunner TxRunner,
	knowledgeRepo KnowledgeRepositoryInterface,
	promotionRepo PromotionRepositoryInterface,
	embedder provider.EmbeddingProvider,
	uuidGen UUIDGenerator,
) *PromotionService {
	return &PromotionService{
		txRunner:      txRunner,
		knowledgeRepo: knowledgeRepo,
		promotionRepo: promotionRepo,
		embedder:      embedder,
		uuidGen:       uuidGen,
	}
}

// Promote creates a tier 2 pending copy of an approved client- or
// engagement-scoped item at a broader scope. A concurrent promotion of the
// same source loses the optimistic lock race and returns
// ErrPromotionConflict.
func (s *PromotionService) Promote(ctx context.Context, actor *domain.Principal, scope domain.Scope, req PromoteRequest) (*domain.KnowledgePromotion, *domain.KnowledgeItem, error) {
	if err := RequireRole(actor, domain.RoleApprover); err != nil {
		return nil, nil, err
	}

	source, err := s.knowledgeRepo.GetByID(ctx, req.SourceItemID)
	if err != nil {
		return nil, nil, err
	}
	if source.Scope.OrgID != actor.OrgID || !visibleTo(source.Scope, scope) {
		return nil, nil, domain.ErrKnowledgeNotFound
	}
	if source.ValidationState != domain.ValidationApproved {
		return nil, nil, domain.ErrPromoteSourceNotApproved
	}
	if source.SupersededByID != "" {
		return nil, nil, domain.ErrItemSuperseded
	}

	sourceLevel := source.Scope.Level()
	if sourceLevel != domain.ScopeLevelClient && sourceLevel != domain.ScopeLevelEngagement {
		return nil, nil, domain.ErrPromoteSourceTooBroad
	}

	targetScope, err := broadenScope(source.Scope, req.TargetLevel)
	if err != nil {
		return nil, nil, err
	}

	title := strings.TrimSpace(req.Title)
	body := strings.TrimSpace(req.Body)
	if title == "" {
		title = source.Title
	}
	if body == "" {
		body = source.Body
	}
	tags := req.Tags
	if len(tags) == 0 {
		tags = source.Tags
	}

	vector, err := s.embedder.Embed(ctx, title+"\n\n"+body)
	if err != nil {
		return nil, nil, domain.NewDomainErrorWithCause(domain.ErrCodeUnavailable, "embedding promoted content failed", err)
	}

	now := time.Now().UTC()
	result := &domain.KnowledgeItem{
		ID:           s.uuidGen.NewString(),
		Scope:        targetScope,
		CategoryCode: source.CategoryCode,
		Title:        title,
		Body:         body,
		Tags:         tags,
		Metadata:     map[string]string{"promoted_from": source.ID},

		Embedding:      vector,
		EmbeddingModel: s.embedder.ModelName(),
		EmbeddingDims:  s.embedder.Dimensions(),

		Source:     source.Source,
		Confidence: source.Confidence,
		Tier:       domain.TierReviewRequired,

		ValidationState: domain.ValidationPending,
		PromotedFromID:  source.ID,
		ContentHash:     domain.ContentHashFor(title, body, tags),

		CreatedAt: now,
		UpdatedAt: now,
	}
	result.SourceKey = domain.SourceKeyFor(targetScope, source.Source, "promotion:"+source.ID, title)

	promotion := &domain.KnowledgePromotion{
		ID:           s.uuidGen.NewString(),
		SourceItemID: source.ID,
		ResultItemID: result.ID,
		Actor:        actor.KeyID,
		TargetLevel:  req.TargetLevel,
		Notes:        req.Notes,
		State:        domain.PromotionPending,
		CreatedAt:    now,
	}

	if err := domain.ValidateKnowledgeItem(result); err != nil {
		return nil, nil, err
	}
	if err := domain.ValidatePromotion(promotion); err != nil {
		return nil, nil, err
	}

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		// Compare-and-bump on the source serializes concurrent promotions.
		if err := repos.Knowledge().TouchForPromotion(ctx, source.ID, source.LockVersion); err != nil {
			return err
		}
		if err := repos.Knowledge().Create(ctx, result); err != nil {
			return err
		}
		return repos.Promotions().Create(ctx, promotion)
	})
	if err != nil {
		return nil, nil, err
	}

	return promotion, result, nil
}

// Resolve records the approval decision on a promotion record. This is
// independent of the result item's own validation workflow.
func (s *PromotionService) Resolve(ctx context.Context, actor *domain.Principal, promotionID string, approve bool) (*domain.KnowledgePromotion, error) {
	if err := RequireRole(actor, domain.RoleApprover); err != nil {
		return nil, err
	}

	state := domain.PromotionRejected
	if approve {
		state = domain.PromotionApproved
	}

	now := time.Now().UTC()
	if err := s.promotionRepo.Resolve(ctx, promotionID, state, actor.KeyID, now); err != nil {
		return nil, err
	}
	return s.promotionRepo.GetByID(ctx, promotionID)
}

// Provenance returns the promotion record behind a result item, or nil when
// the item was not promoted. Restricted to approver and admin roles.
func (s *PromotionService) Provenance(ctx context.Context, actor *domain.Principal, itemID string) (*domain.KnowledgePromotion, error) {
	if err := RequireRole(actor, domain.RoleApprover); err != nil {
		return nil, err
	}
	return s.promotionRepo.GetByResultItem(ctx, itemID)
}

// broadenScope truncates a scope to the target level, which must be
// strictly broader than the source's own level.
func broadenScope(source domain.Scope, target domain.ScopeLevel) (domain.Scope, error) {
	out := domain.Scope{OrgID: source.OrgID}
	switch target {
	case domain.ScopeLevelOrganization:
	case domain.ScopeLevelProduct:
		if source.ProductID == "" {
			return domain.Scope{}, domain.ErrPromoteScopeNotBroader
		}
		out.ProductID = source.ProductID
	default:
		return domain.Scope{}, domain.ErrPromoteScopeNotBroader
	}
	if out.Depth() >= source.Depth() {
		return domain.Scope{}, domain.ErrPromoteScopeNotBroader
	}
	return out, nil
}
