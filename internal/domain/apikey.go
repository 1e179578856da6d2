package domain

import (
	"fmt"
	"time"
)

// Role grants a capability level to an API key's principal.
type Role string

const (
	RoleReader      Role = "reader"
	RoleContributor Role = "contributor"
	RoleApprover    Role = "approver"
	RoleAdmin       Role = "admin"
)

var roleRank = map[Role]int{
	RoleReader:      0,
	RoleContributor: 1,
	RoleApprover:    2,
	RoleAdmin:       3,
}

// AtLeast reports whether r grants at least the capabilities of min.
func (r Role) AtLeast(min Role) bool {
	rr, ok := roleRank[r]
	mr, mok := roleRank[min]
	return ok && mok && rr >= mr
}

// Valid reports whether r names a known role.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// APIKey binds a bearer token hash to an organization and role. Plaintext
// tokens are never stored.
type APIKey struct {
	ID        string
	OrgID     string
	Name      string
	KeyHash   string
	Role      Role
	Service   bool // service principals cannot satisfy tier 4 human approval
	CreatedAt time.Time
	RevokedAt *time.Time
}

// Principal is the authenticated caller derived from an API key.
type Principal struct {
	KeyID   string
	OrgID   string
	Name    string
	Role    Role
	Service bool
}

// IsRevoked returns true if the API key has been revoked
func (a *APIKey) IsRevoked() bool {
	return a.RevokedAt != nil
}

// ValidateAPIKey validates an APIKey instance
func ValidateAPIKey(a *APIKey) error {
	if a == nil {
		return fmt.Errorf("api key cannot be nil")
	}
	if a.ID == "" {
		return fmt.Errorf("api key ID is required")
	}
	if a.OrgID == "" {
		return fmt.Errorf("api key OrgID is required")
	}
	if a.Name == "" {
		return fmt.Errorf("api key Name is required")
	}
	if a.KeyHash == "" {
		return fmt.Errorf("api key KeyHash is required")
	}
	if !a.Role.Valid() {
		return fmt.Errorf("api key Role is invalid: %s", a.Role)
	}
	return nil
}
