package domain

import "fmt"

// ScopeLevel identifies one level of the tenancy hierarchy.
type ScopeLevel string

const (
	ScopeLevelOrganization ScopeLevel = "organization"
	ScopeLevelProduct      ScopeLevel = "product"
	ScopeLevelClient       ScopeLevel = "client"
	ScopeLevelEngagement   ScopeLevel = "engagement"
)

// Scope places an item or a query in the four-level tenancy hierarchy.
// OrgID is always required. Deeper fields are optional and narrowing: an
// item with an empty deeper field is visible to every entity below it.
type Scope struct {
	OrgID        string
	ProductID    string
	ClientID     string
	EngagementID string
}

// Level returns the deepest populated level of the scope.
func (s Scope) Level() ScopeLevel {
	switch {
	case s.EngagementID != "":
		return ScopeLevelEngagement
	case s.ClientID != "":
		return ScopeLevelClient
	case s.ProductID != "":
		return ScopeLevelProduct
	default:
		return ScopeLevelOrganization
	}
}

// Validate enforces scope integrity: an engagement requires a client, and a
// client requires a product or organization context. Orphaned deep scopes are
// never persisted.
func (s Scope) Validate() error {
	if s.OrgID == "" {
		return ErrScopeOrgRequired
	}
	if s.EngagementID != "" && s.ClientID == "" {
		return ErrScopeIntegrity
	}
	return nil
}

// Depth returns the numeric depth of the scope, organization being 0.
func (s Scope) Depth() int {
	switch s.Level() {
	case ScopeLevelEngagement:
		return 3
	case ScopeLevelClient:
		return 2
	case ScopeLevelProduct:
		return 1
	default:
		return 0
	}
}

// BroaderThan reports whether s sits strictly above other in the hierarchy.
func (s Scope) BroaderThan(other Scope) bool {
	return s.Depth() < other.Depth()
}

func (s Scope) String() string {
	out := "org=" + s.OrgID
	if s.ProductID != "" {
		out += " product=" + s.ProductID
	}
	if s.ClientID != "" {
		out += " client=" + s.ClientID
	}
	if s.EngagementID != "" {
		out += " engagement=" + s.EngagementID
	}
	return out
}

// ScopeLevelFromString parses a scope level name.
func ScopeLevelFromString(v string) (ScopeLevel, error) {
	switch ScopeLevel(v) {
	case ScopeLevelOrganization, ScopeLevelProduct, ScopeLevelClient, ScopeLevelEngagement:
		return ScopeLevel(v), nil
	}
	return "", fmt.Errorf("invalid scope level: %q", v)
}
