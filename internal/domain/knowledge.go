package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// SourceType classifies where a knowledge item came from.
type SourceType string

const (
	SourceSystemGenerated SourceType = "system_generated"
	SourceHumanAuthored   SourceType = "human_authored"
	SourceAIGenerated     SourceType = "ai_generated"
	SourceIngested        SourceType = "ingested"
)

// ValidationState is the lifecycle state gating retrieval visibility.
// Only approved items are ever returned by similarity search.
type ValidationState string

const (
	ValidationPending  ValidationState = "pending"
	ValidationApproved ValidationState = "approved"
	ValidationRejected ValidationState = "rejected"
	ValidationFlagged  ValidationState = "flagged"
)

// ValidationAction is a reviewer action against a pending or flagged item.
type ValidationAction string

const (
	ActionApprove ValidationAction = "approve"
	ActionReject  ValidationAction = "reject"
	ActionFlag    ValidationAction = "flag"
)

// Validation tiers. Tier 1 auto-approves, tier 2 requires review, tier 3
// auto-approves but stays confidence-flagged, tier 4 (AI-generated) always
// requires an explicit human approval.
const (
	TierAutoApproved   = 1
	TierReviewRequired = 2
	TierAutoTrusted    = 3
	TierAIGenerated    = 4
)

// KnowledgeItem is the central entity: one semantically coherent chunk of
// knowledge with its embedding, provenance and validation state.
type KnowledgeItem struct {
	ID    string
	Scope Scope

	CategoryCode string
	Title        string
	Body         string
	Tags         []string
	Metadata     map[string]string

	Embedding      []float32
	EmbeddingModel string
	EmbeddingDims  int

	Source            SourceType
	Confidence        float64
	Tier              int
	ConfidenceFlagged bool

	ValidationState ValidationState
	ValidatedBy     string
	ValidatedAt     *time.Time

	// SourceKey identifies the (content origin, scope, source) tuple for
	// idempotent ingestion; ContentHash detects changed content under the
	// same key. LockVersion backs the optimistic promotion check.
	SourceRef   string
	SourceKey   string
	ContentHash string
	LockVersion int64

	SupersedesID   string
	SupersededByID string
	PromotedFromID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidateKnowledgeItem checks structural invariants before persistence.
func ValidateKnowledgeItem(k *KnowledgeItem) error {
	if k == nil {
		return fmt.Errorf("knowledge item cannot be nil")
	}
	if k.ID == "" {
		return fmt.Errorf("knowledge item ID is required")
	}
	if err := k.Scope.Validate(); err != nil {
		return err
	}
	if k.Title == "" {
		return fmt.Errorf("knowledge item Title is required")
	}
	if k.Body == "" {
		return fmt.Errorf("knowledge item Body is required")
	}
	if k.CategoryCode == "" {
		return fmt.Errorf("knowledge item CategoryCode is required")
	}
	if !k.Source.Valid() {
		return ErrInvalidSourceType
	}
	if k.Tier < TierAutoApproved || k.Tier > TierAIGenerated {
		return ErrInvalidTier
	}
	if k.Confidence < 0 || k.Confidence > 1 {
		return ErrInvalidConfidence
	}
	if !isValidValidationState(k.ValidationState) {
		return ErrInvalidValidationState
	}
	if len(k.Embedding) > 0 && len(k.Embedding) != k.EmbeddingDims {
		return fmt.Errorf("embedding has %d dimensions, item declares %d", len(k.Embedding), k.EmbeddingDims)
	}
	return nil
}

// InitialValidationState returns the state a freshly created item starts in
// for the given tier. Tier 4 never starts approved.
func InitialValidationState(tier int) ValidationState {
	switch tier {
	case TierAutoApproved, TierAutoTrusted:
		return ValidationApproved
	default:
		return ValidationPending
	}
}

// CanTransition reports whether action is legal from the current state.
// Approved, rejected and superseded items accept no further actions; new
// content re-enters review as a new version instead.
func CanTransition(state ValidationState, action ValidationAction) bool {
	switch state {
	case ValidationPending:
		return action == ActionApprove || action == ActionReject || action == ActionFlag
	case ValidationFlagged:
		return action == ActionApprove || action == ActionReject
	default:
		return false
	}
}

// NextState maps a legal action onto its resulting state.
func NextState(state ValidationState, action ValidationAction) (ValidationState, error) {
	if !CanTransition(state, action) {
		return state, ErrInvalidTransition
	}
	switch action {
	case ActionApprove:
		return ValidationApproved, nil
	case ActionReject:
		return ValidationRejected, nil
	case ActionFlag:
		return ValidationFlagged, nil
	}
	return state, ErrInvalidTransition
}

// SourceKeyFor derives the idempotency key binding a submission to its
// scope and origin. Submissions without an explicit source ref fall back to
// the title as the stable identifier.
func SourceKeyFor(scope Scope, source SourceType, sourceRef, title string) string {
	ref := sourceRef
	if ref == "" {
		ref = strings.ToLower(strings.TrimSpace(title))
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s",
		scope.OrgID, scope.ProductID, scope.ClientID, scope.EngagementID, source, ref)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHashFor fingerprints the retrievable content of a submission.
func ContentHashFor(title, body string, tags []string) string {
	h := sha256.New()
	h.Write([]byte(title))
	h.Write([]byte{0})
	h.Write([]byte(body))
	for _, t := range tags {
		h.Write([]byte{0})
		h.Write([]byte(t))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Valid reports whether s names a known provenance classification.
func (s SourceType) Valid() bool {
	switch s {
	case SourceSystemGenerated, SourceHumanAuthored, SourceAIGenerated, SourceIngested:
		return true
	}
	return false
}

func isValidValidationState(s ValidationState) bool {
	switch s {
	case ValidationPending, ValidationApproved, ValidationRejected, ValidationFlagged:
		return true
	}
	return false
}

// IsValidAction reports whether v names a known validation action.
func IsValidAction(v string) bool {
	switch ValidationAction(v) {
	case ActionApprove, ActionReject, ActionFlag:
		return true
	}
	return false
}
