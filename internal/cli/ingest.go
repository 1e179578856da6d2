package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noesis-ai/noesis/internal/domain"
	"github.com/noesis-ai/noesis/internal/repository"
	"github.com/noesis-ai/noesis/internal/service"
	"github.com/noesis-ai/noesis/internal/storage"
)

func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Bulk-ingest documents",
		Long:  "Drain raw documents from an object store into the ingestion pipeline",
	}

	cmd.AddCommand(IngestS3Cmd())

	return cmd
}

func IngestS3Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "s3",
		Short: "Ingest documents from an S3 bucket prefix",
		Long:  "List objects under a bucket prefix and run each through the ingestion pipeline",
		RunE:  runIngestS3,
	}

	cmd.Flags().String("prefix", "", "Object key prefix to drain")
	cmd.Flags().StringP("org", "o", "", "Organization ID (required)")
	cmd.Flags().String("product", "", "Product ID")
	cmd.Flags().String("client", "", "Client ID")
	cmd.Flags().String("engagement", "", "Engagement ID")
	cmd.Flags().StringP("category", "c", domain.CategoryMethodology, "Category code for ingested items")
	cmd.MarkFlagRequired("org")

	return cmd
}

func runIngestS3(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	prefix, _ := cmd.Flags().GetString("prefix")
	categoryCode, _ := cmd.Flags().GetString("category")

	scope := domain.Scope{}
	scope.OrgID, _ = cmd.Flags().GetString("org")
	scope.ProductID, _ = cmd.Flags().GetString("product")
	scope.ClientID, _ = cmd.Flags().GetString("client")
	scope.EngagementID, _ = cmd.Flags().GetString("engagement")
	if err := scope.Validate(); err != nil {
		return err
	}

	cfg, pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	if !cfg.HasS3() {
		return fmt.Errorf("S3 source not configured (NOESIS_S3_ENDPOINT, NOESIS_S3_ACCESS_KEY_ID, NOESIS_S3_SECRET_ACCESS_KEY required)")
	}

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return fmt.Errorf("failed to create S3 client: %w", err)
	}

	embedder, _, err := buildProviders(cfg)
	if err != nil {
		return err
	}

	knowledgeRepo := repository.NewKnowledgeRepository(pool)
	categoryRepo := repository.NewCategoryRepository(pool)
	txRunner := repository.NewTxRunner(pool)
	uuidGen := &service.DefaultUUIDGenerator{}

	ingestSvc, err := service.NewIngestService(txRunner, knowledgeRepo, categoryRepo, embedder, uuidGen, cfg.IngestWorkers)
	if err != nil {
		return fmt.Errorf("failed to create ingest service: %w", err)
	}
	defer ingestSvc.Release()

	results, err := ingestSvc.IngestFromS3(ctx, s3Client, prefix, scope, categoryCode)
	if err != nil {
		return fmt.Errorf("S3 ingest failed: %w", err)
	}

	counts := map[service.IngestStatus]int{}
	for _, r := range results {
		counts[r.Status]++
		if r.Status == service.IngestFailed {
			fmt.Printf("failed: %s\n", r.Error)
		}
	}
	fmt.Printf("Ingested %d documents from s3://%s/%s: %d created, %d versioned, %d duplicates, %d failed\n",
		len(results), cfg.S3Bucket, prefix,
		counts[service.IngestCreated], counts[service.IngestVersion],
		counts[service.IngestDuplicate], counts[service.IngestFailed])
	return nil
}
