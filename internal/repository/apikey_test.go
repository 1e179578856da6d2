//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noesis-ai/noesis/internal/domain"
	"github.com/noesis-ai/noesis/internal/testutil"
)

func testAPIKey(orgID, hash string) *domain.APIKey {
	return &domain.APIKey{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		Name:      "ci key",
		KeyHash:   hash,
		Role:      domain.RoleContributor,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestAPIKeyRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewAPIKeyRepository(pool)

	key := testAPIKey("org-1", "hash-1")
	require.NoError(t, repo.Create(ctx, key))

	byHash, err := repo.GetByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, key.ID, byHash.ID)
	assert.Equal(t, domain.RoleContributor, byHash.Role)
	assert.Nil(t, byHash.RevokedAt)

	byID, err := repo.GetByID(ctx, key.ID)
	require.NoError(t, err)
	assert.Equal(t, key.KeyHash, byID.KeyHash)

	_, err = repo.GetByHash(ctx, "hash-unknown")
	assert.ErrorIs(t, err, domain.ErrAPIKeyNotFound)
}

func TestAPIKeyRepository_DuplicateHash(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewAPIKeyRepository(pool)

	require.NoError(t, repo.Create(ctx, testAPIKey("org-1", "hash-1")))

	err := repo.Create(ctx, testAPIKey("org-2", "hash-1"))
	assert.ErrorIs(t, err, domain.ErrAPIKeyAlreadyExists)
}

func TestAPIKeyRepository_Revoke(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewAPIKeyRepository(pool)

	key := testAPIKey("org-1", "hash-1")
	require.NoError(t, repo.Create(ctx, key))
	require.NoError(t, repo.Revoke(ctx, key.ID))

	retrieved, err := repo.GetByID(ctx, key.ID)
	require.NoError(t, err)
	assert.NotNil(t, retrieved.RevokedAt)

	// Revoking twice is a no-op failure.
	err = repo.Revoke(ctx, key.ID)
	assert.ErrorIs(t, err, domain.ErrAPIKeyNotFound)
}

func TestAPIKeyRepository_ListByOrg(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewAPIKeyRepository(pool)

	require.NoError(t, repo.Create(ctx, testAPIKey("org-1", "hash-1")))
	require.NoError(t, repo.Create(ctx, testAPIKey("org-1", "hash-2")))
	require.NoError(t, repo.Create(ctx, testAPIKey("org-2", "hash-3")))

	keys, err := repo.ListByOrg(ctx, "org-1")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}
