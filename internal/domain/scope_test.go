package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeLevel(t *testing.T) {
	tests := []struct {
		name     string
		scope    Scope
		expected ScopeLevel
	}{
		{"org only", Scope{OrgID: "org-1"}, ScopeLevelOrganization},
		{"product", Scope{OrgID: "org-1", ProductID: "prod-1"}, ScopeLevelProduct},
		{"client", Scope{OrgID: "org-1", ProductID: "prod-1", ClientID: "client-1"}, ScopeLevelClient},
		{"engagement", Scope{OrgID: "org-1", ProductID: "prod-1", ClientID: "client-1", EngagementID: "eng-1"}, ScopeLevelEngagement},
		{"client without product", Scope{OrgID: "org-1", ClientID: "client-1"}, ScopeLevelClient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.scope.Level())
		})
	}
}

func TestScopeValidate(t *testing.T) {
	t.Run("org is required", func(t *testing.T) {
		err := Scope{}.Validate()
		assert.ErrorIs(t, err, ErrScopeOrgRequired)
	})

	t.Run("engagement requires client", func(t *testing.T) {
		err := Scope{OrgID: "org-1", EngagementID: "eng-1"}.Validate()
		assert.ErrorIs(t, err, ErrScopeIntegrity)
	})

	t.Run("client without product is allowed", func(t *testing.T) {
		err := Scope{OrgID: "org-1", ClientID: "client-1"}.Validate()
		assert.NoError(t, err)
	})

	t.Run("fully populated scope is valid", func(t *testing.T) {
		err := Scope{OrgID: "org-1", ProductID: "p", ClientID: "c", EngagementID: "e"}.Validate()
		assert.NoError(t, err)
	})
}

func TestScopeDepthAndBroaderThan(t *testing.T) {
	org := Scope{OrgID: "org-1"}
	product := Scope{OrgID: "org-1", ProductID: "prod-1"}
	client := Scope{OrgID: "org-1", ProductID: "prod-1", ClientID: "client-1"}
	engagement := Scope{OrgID: "org-1", ProductID: "prod-1", ClientID: "client-1", EngagementID: "eng-1"}

	assert.Equal(t, 0, org.Depth())
	assert.Equal(t, 1, product.Depth())
	assert.Equal(t, 2, client.Depth())
	assert.Equal(t, 3, engagement.Depth())

	assert.True(t, org.BroaderThan(client))
	assert.True(t, product.BroaderThan(engagement))
	assert.False(t, client.BroaderThan(client))
	assert.False(t, engagement.BroaderThan(org))
}

func TestScopeLevelFromString(t *testing.T) {
	for _, valid := range []string{"organization", "product", "client", "engagement"} {
		level, err := ScopeLevelFromString(valid)
		require.NoError(t, err)
		assert.Equal(t, ScopeLevel(valid), level)
	}

	_, err := ScopeLevelFromString("project")
	assert.Error(t, err)
	_, err = ScopeLevelFromString("")
	assert.Error(t, err)
}
