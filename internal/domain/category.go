package domain

import (
	"fmt"
	"time"
)

// Codes of the seeded system categories every organization starts with.
const (
	CategoryMethodology   = "methodology"
	CategoryBestPractice  = "best_practice"
	CategoryDecision      = "decision"
	CategoryRequirement   = "requirement"
	CategoryRetrospective = "retrospective"
	CategoryFeedback      = "feedback"
)

// KnowledgeCategory is an organization-scoped taxonomy node. Categories are
// data, not a closed enum: organizations extend the system-provided set
// without a schema change. ParentCode allows hierarchy.
type KnowledgeCategory struct {
	Code              string
	OrgID             string
	Name              string
	ParentCode        string
	DefaultScopeLevel ScopeLevel
	DefaultTier       int
	System            bool
	CreatedAt         time.Time
}

// ValidateCategory checks a taxonomy node before persistence.
func ValidateCategory(c *KnowledgeCategory) error {
	if c == nil {
		return fmt.Errorf("category cannot be nil")
	}
	if c.Code == "" {
		return fmt.Errorf("category Code is required")
	}
	if c.OrgID == "" {
		return fmt.Errorf("category OrgID is required")
	}
	if c.Name == "" {
		return fmt.Errorf("category Name is required")
	}
	if _, err := ScopeLevelFromString(string(c.DefaultScopeLevel)); err != nil {
		return err
	}
	if c.DefaultTier < TierAutoApproved || c.DefaultTier > TierAIGenerated {
		return ErrInvalidTier
	}
	if c.ParentCode == c.Code {
		return fmt.Errorf("category cannot be its own parent")
	}
	return nil
}
