package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/noesis-ai/noesis/internal/domain"
)

func TestAuthService_CreateAPIKey(t *testing.T) {
	ctx := context.Background()

	t.Run("mints a key and returns the plaintext token once", func(t *testing.T) {
		keyRepo := new(MockAPIKeyRepository)
		svc := NewAuthService(keyRepo, NewMockUUIDGenerator("key-1"))

		var storedHash string
		keyRepo.On("Create", mock.Anything, mock.MatchedBy(func(k *domain.APIKey) bool {
			storedHash = k.KeyHash
			return k.ID == "key-1" &&
				k.OrgID == "org-1" &&
				k.Name == "ci-bot" &&
				k.Role == domain.RoleContributor &&
				k.Service &&
				k.RevokedAt == nil
		})).Return(nil)

		token, key, err := svc.CreateAPIKey(ctx, "org-1", "ci-bot", domain.RoleContributor, true)

		require.NoError(t, err)
		assert.True(t, IsValidAPIToken(token))
		assert.Equal(t, "key-1", key.ID)
		assert.NotEqual(t, token, storedHash, "plaintext token must never be stored")
		assert.Len(t, storedHash, 64)
		keyRepo.AssertExpectations(t)
	})

	t.Run("rejects missing fields and unknown roles", func(t *testing.T) {
		keyRepo := new(MockAPIKeyRepository)
		svc := NewAuthService(keyRepo, NewMockUUIDGenerator())

		_, _, err := svc.CreateAPIKey(ctx, "", "name", domain.RoleReader, false)
		require.Error(t, err)

		_, _, err = svc.CreateAPIKey(ctx, "org-1", "", domain.RoleReader, false)
		require.Error(t, err)

		_, _, err = svc.CreateAPIKey(ctx, "org-1", "name", domain.Role("owner"), false)
		require.Error(t, err)

		keyRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestAuthService_CreateAPIKeyWithToken(t *testing.T) {
	ctx := context.Background()

	t.Run("stores an operator-supplied token", func(t *testing.T) {
		keyRepo := new(MockAPIKeyRepository)
		svc := NewAuthService(keyRepo, NewMockUUIDGenerator("key-1"))

		token := "nss_" + repeatHex(64)
		keyRepo.On("Create", mock.Anything, mock.MatchedBy(func(k *domain.APIKey) bool {
			return k.Role == domain.RoleAdmin && k.KeyHash != "" && k.KeyHash != token
		})).Return(nil)

		err := svc.CreateAPIKeyWithToken(ctx, "org-1", "bootstrap", token, domain.RoleAdmin)
		require.NoError(t, err)
		keyRepo.AssertExpectations(t)
	})

	t.Run("rejects malformed tokens", func(t *testing.T) {
		keyRepo := new(MockAPIKeyRepository)
		svc := NewAuthService(keyRepo, NewMockUUIDGenerator())

		err := svc.CreateAPIKeyWithToken(ctx, "org-1", "bootstrap", "not-a-token", domain.RoleAdmin)
		require.Error(t, err)
		keyRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestAuthService_Authenticate(t *testing.T) {
	ctx := context.Background()
	token := "nss_" + repeatHex(64)

	t.Run("resolves a valid token to its principal", func(t *testing.T) {
		keyRepo := new(MockAPIKeyRepository)
		svc := NewAuthService(keyRepo, NewMockUUIDGenerator())

		keyRepo.On("GetByHash", mock.Anything, mock.MatchedBy(func(hash string) bool {
			return len(hash) == 64 && hash != token
		})).Return(&domain.APIKey{
			ID:    "key-1",
			OrgID: "org-1",
			Name:  "reader-key",
			Role:  domain.RoleReader,
		}, nil)

		principal, err := svc.Authenticate(ctx, token)

		require.NoError(t, err)
		assert.Equal(t, "key-1", principal.KeyID)
		assert.Equal(t, "org-1", principal.OrgID)
		assert.Equal(t, domain.RoleReader, principal.Role)
		assert.False(t, principal.Service)
	})

	t.Run("rejects tokens without the prefix or with a short hex part", func(t *testing.T) {
		keyRepo := new(MockAPIKeyRepository)
		svc := NewAuthService(keyRepo, NewMockUUIDGenerator())

		for _, bad := range []string{"", "nss_", "nss_zz", "sk_" + repeatHex(64), "nss_" + repeatHex(32)} {
			_, err := svc.Authenticate(ctx, bad)
			require.ErrorIs(t, err, domain.ErrInvalidAPIKey, "token %q", bad)
		}
		keyRepo.AssertNotCalled(t, "GetByHash", mock.Anything, mock.Anything)
	})

	t.Run("maps an unknown hash to an invalid key error", func(t *testing.T) {
		keyRepo := new(MockAPIKeyRepository)
		svc := NewAuthService(keyRepo, NewMockUUIDGenerator())

		keyRepo.On("GetByHash", mock.Anything, mock.Anything).Return(nil, domain.ErrAPIKeyNotFound)

		_, err := svc.Authenticate(ctx, token)
		require.ErrorIs(t, err, domain.ErrInvalidAPIKey)
	})

	t.Run("rejects revoked keys", func(t *testing.T) {
		keyRepo := new(MockAPIKeyRepository)
		svc := NewAuthService(keyRepo, NewMockUUIDGenerator())

		revokedAt := time.Now().UTC()
		keyRepo.On("GetByHash", mock.Anything, mock.Anything).Return(&domain.APIKey{
			ID:        "key-1",
			OrgID:     "org-1",
			Role:      domain.RoleAdmin,
			RevokedAt: &revokedAt,
		}, nil)

		_, err := svc.Authenticate(ctx, token)
		require.ErrorIs(t, err, domain.ErrAPIKeyRevoked)
	})
}

func TestRequireRole(t *testing.T) {
	require.ErrorIs(t, RequireRole(nil, domain.RoleReader), domain.ErrInvalidAPIKey)

	reader := &domain.Principal{Role: domain.RoleReader}
	require.ErrorIs(t, RequireRole(reader, domain.RoleApprover), domain.ErrInsufficientRole)

	admin := &domain.Principal{Role: domain.RoleAdmin}
	require.NoError(t, RequireRole(admin, domain.RoleApprover))
}

func repeatHex(n int) string {
	out := make([]byte, n)
	for i := range out {
		out[i] = "0123456789abcdef"[i%16]
	}
	return string(out)
}
