package jobs

import (
	"context"
	"log"

	"github.com/noesis-ai/noesis/internal/provider"
	"github.com/noesis-ai/noesis/internal/service"
)

// ReembedProcessor resumes unfinished re-embed jobs for the configured
// provider. New jobs are created by the reembed CLI command or by Enqueue;
// this processor only drives them to completion.
type ReembedProcessor struct {
	reembed      *service.ReembedService
	providerName string
	embedder     provider.EmbeddingProvider
}

func NewReembedProcessor(reembed *service.ReembedService, providerName string, embedder provider.EmbeddingProvider) *ReembedProcessor {
	return &ReembedProcessor{
		reembed:      reembed,
		providerName: providerName,
		embedder:     embedder,
	}
}

func (p *ReembedProcessor) Name() string { return "reembed" }

func (p *ReembedProcessor) ProcessJobs(ctx context.Context) error {
	job, err := p.reembed.RunIfNeeded(ctx, p.providerName, p.embedder)
	if err != nil {
		return err
	}
	if job != nil && job.Processed > 0 {
		log.Printf("reembed job %s: %d items at model %s", job.ID, job.Processed, job.Model)
	}
	return nil
}
