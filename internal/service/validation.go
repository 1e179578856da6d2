package service

import (
	"context"
	"time"

	"github.com/noesis-ai/noesis/internal/domain"
)

// ValidationService applies reviewer actions to the item state machine.
type ValidationService struct {
	repo KnowledgeRepositoryInterface
}

func NewValidationService(repo KnowledgeRepositoryInterface) *ValidationService {
	return &ValidationService{repo: repo}
}

// Validate transitions an item through approve, reject or flag. The actor
// must hold the approver role; approving a tier 4 item additionally requires
// a human principal, though service keys may still reject or flag one.
// Superseded items are frozen.
func (s *ValidationService) Validate(ctx context.Context, actor *domain.Principal, scope domain.Scope, itemID string, action domain.ValidationAction) (*domain.KnowledgeItem, error) {
	if !domain.IsValidAction(string(action)) {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "unknown validation action")
	}
	if err := RequireRole(actor, domain.RoleApprover); err != nil {
		return nil, err
	}

	item, err := s.repo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Scope.OrgID != actor.OrgID || !visibleTo(item.Scope, scope) {
		return nil, domain.ErrKnowledgeNotFound
	}
	if item.SupersededByID != "" {
		return nil, domain.ErrItemSuperseded
	}
	if item.Tier == domain.TierAIGenerated && actor.Service && action == domain.ActionApprove {
		return nil, domain.ErrHumanActorRequired
	}

	next, err := domain.NextState(item.ValidationState, action)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateValidation(ctx, item.ID, next, actor.KeyID, now); err != nil {
		return nil, err
	}

	item.ValidationState = next
	item.ValidatedBy = actor.KeyID
	item.ValidatedAt = &now
	item.UpdatedAt = now
	return item, nil
}

// StalePending lists pending items older than the cutoff for review
// reporting. Nothing is transitioned automatically.
func (s *ValidationService) StalePending(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.KnowledgeItem, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	return s.repo.ListStalePending(ctx, cutoff, limit)
}
