package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/noesis-ai/noesis/internal/config"
	"github.com/noesis-ai/noesis/internal/database"
	"github.com/noesis-ai/noesis/internal/repository"
	"github.com/noesis-ai/noesis/internal/service"
)

func ReembedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reembed",
		Short: "Re-embed the corpus with a new model",
		Long:  "Re-embed every knowledge item whose vector was produced by a different model. Resumes from the last checkpoint if interrupted.",
		RunE:  runReembed,
	}

	cmd.Flags().String("provider", "", "Embedding provider name (defaults to configured provider)")
	cmd.Flags().Int("batch-size", 0, "Items per embedding batch (defaults to configured size)")

	return cmd
}

func runReembed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	providerName, _ := cmd.Flags().GetString("provider")
	if providerName != "" {
		cfg.EmbeddingProvider = providerName
	}
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	if batchSize > 0 {
		cfg.ReembedBatchSize = batchSize
	}

	// SIGINT checkpoints the job and leaves it resumable.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	embedder, _, err := buildProviders(cfg)
	if err != nil {
		return err
	}

	knowledgeRepo := repository.NewKnowledgeRepository(pool)
	reembedJobRepo := repository.NewReembedJobRepository(pool)
	uuidGen := &service.DefaultUUIDGenerator{}
	reembedSvc := service.NewReembedService(knowledgeRepo, reembedJobRepo, uuidGen, cfg.ReembedBatchSize)

	log.Printf("re-embedding corpus to %s (%d dims)", embedder.ModelName(), embedder.Dimensions())

	job, err := reembedSvc.Run(ctx, cfg.EmbeddingProvider, embedder)
	if err != nil {
		return fmt.Errorf("re-embed failed: %w", err)
	}

	fmt.Printf("Re-embed job %s finished: %d items processed (status: %s)\n", job.ID, job.Processed, job.Status)
	return nil
}
