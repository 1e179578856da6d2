package domain

import (
	"fmt"
	"time"
)

// PromotionState is the approval state of a promotion record. It is
// independent of the resulting item's own validation state: promotion
// approval and content validation are distinct concerns.
type PromotionState string

const (
	PromotionPending  PromotionState = "pending"
	PromotionApproved PromotionState = "approved"
	PromotionRejected PromotionState = "rejected"
)

// KnowledgePromotion records one promotion event: a narrowly scoped item
// republished at a broader scope with client-identifying content stripped.
type KnowledgePromotion struct {
	ID           string
	SourceItemID string
	ResultItemID string
	Actor        string
	TargetLevel  ScopeLevel
	Notes        string
	State        PromotionState
	ResolvedBy   string
	ResolvedAt   *time.Time
	CreatedAt    time.Time
}

// ValidatePromotion checks a promotion record before persistence.
func ValidatePromotion(p *KnowledgePromotion) error {
	if p == nil {
		return fmt.Errorf("promotion cannot be nil")
	}
	if p.ID == "" {
		return fmt.Errorf("promotion ID is required")
	}
	if p.SourceItemID == "" {
		return fmt.Errorf("promotion SourceItemID is required")
	}
	if p.ResultItemID == "" {
		return fmt.Errorf("promotion ResultItemID is required")
	}
	if p.Actor == "" {
		return fmt.Errorf("promotion Actor is required")
	}
	if p.TargetLevel != ScopeLevelOrganization && p.TargetLevel != ScopeLevelProduct {
		return ErrPromoteScopeNotBroader
	}
	return nil
}
