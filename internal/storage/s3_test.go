//go:build integration

package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noesis-ai/noesis/internal/testutil"
)

func TestS3Client_ListAndFetch(t *testing.T) {
	ctx := context.Background()

	s3Container := testutil.NewRustFSContainer(ctx, t)
	defer s3Container.Terminate(ctx)

	client, err := NewS3Client(ctx, S3ClientConfig{
		Endpoint:        s3Container.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "test-knowledge",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	require.NoError(t, client.EnsureBucket(ctx))
	require.NoError(t, client.EnsureBucket(ctx), "ensuring an existing bucket is a no-op")

	require.NoError(t, client.PutObject(ctx, "docs/retention-policy.md", "# Retention\n\nRaw events are kept 90 days."))
	require.NoError(t, client.PutObject(ctx, "docs/auth_decisions.txt", "We use short-lived tokens."))
	require.NoError(t, client.PutObject(ctx, "other/readme.md", "not under the prefix"))

	t.Run("ListKeys respects the prefix", func(t *testing.T) {
		keys, err := client.ListKeys(ctx, "docs/")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"docs/retention-policy.md", "docs/auth_decisions.txt"}, keys)

		empty, err := client.ListKeys(ctx, "missing/")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("FetchDocument derives the title from the key", func(t *testing.T) {
		doc, err := client.FetchDocument(ctx, "docs/retention-policy.md")
		require.NoError(t, err)
		assert.Equal(t, "docs/retention-policy.md", doc.Key)
		assert.Equal(t, "retention policy", doc.Title)
		assert.Contains(t, doc.Body, "90 days")

		doc, err = client.FetchDocument(ctx, "docs/auth_decisions.txt")
		require.NoError(t, err)
		assert.Equal(t, "auth decisions", doc.Title)
	})

	t.Run("FetchDocument fails for a missing key", func(t *testing.T) {
		_, err := client.FetchDocument(ctx, "docs/missing.md")
		assert.Error(t, err)
	})
}
