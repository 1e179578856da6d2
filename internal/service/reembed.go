package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/noesis-ai/noesis/internal/domain"
	"github.com/noesis-ai/noesis/internal/provider"
)

type ReembedJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.ReembedJob) error
	GetByID(ctx context.Context, id string) (*domain.ReembedJob, error)
	GetResumable(ctx context.Context, model string) (*domain.ReembedJob, error)
	Checkpoint(ctx context.Context, id, lastItemID string, processed int64) error
	SetStatus(ctx context.Context, id string, status domain.ReembedJobStatus, errMsg string) error
}

// ReembedService re-embeds the corpus after a provider or model switch.
// Progress is checkpointed per batch, so an interrupted run resumes from
// the last stored item instead of starting over.
type ReembedService struct {
	knowledgeRepo KnowledgeRepositoryInterface
	jobRepo       ReembedJobRepositoryInterface
	uuidGen       UUIDGenerator
	batchSize     int
}

func NewReembedService(knowledgeRepo KnowledgeRepositoryInterface, jobRepo ReembedJobRepositoryInterface, uuidGen UUIDGenerator, batchSize int) *ReembedService {
	if batchSize < 1 {
		batchSize = 50
	}
	return &ReembedService{
		knowledgeRepo: knowledgeRepo,
		jobRepo:       jobRepo,
		uuidGen:       uuidGen,
		batchSize:     batchSize,
	}
}

// RunIfNeeded re-embeds only when at least one stored item was embedded by
// a different model, so periodic polling stays free of empty job rows.
func (s *ReembedService) RunIfNeeded(ctx context.Context, providerName string, embedder provider.EmbeddingProvider) (*domain.ReembedJob, error) {
	pending, err := s.knowledgeRepo.IterateForReembed(ctx, embedder.ModelName(), "", 1)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}
	return s.Run(ctx, providerName, embedder)
}

// Run drives a full re-embed against the given provider, resuming an
// unfinished job for the same model when one exists.
func (s *ReembedService) Run(ctx context.Context, providerName string, embedder provider.EmbeddingProvider) (*domain.ReembedJob, error) {
	model := embedder.ModelName()

	job, err := s.jobRepo.GetResumable(ctx, model)
	if err != nil {
		if !errors.Is(err, domain.ErrReembedJobNotFound) {
			return nil, err
		}
		now := time.Now().UTC()
		job = &domain.ReembedJob{
			ID:        s.uuidGen.NewString(),
			Provider:  providerName,
			Model:     model,
			Dims:      embedder.Dimensions(),
			Status:    domain.ReembedPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.jobRepo.Create(ctx, job); err != nil {
			return nil, err
		}
	} else {
		log.Printf("reembed: resuming job %s from item %q (%d processed)", job.ID, job.LastItemID, job.Processed)
	}

	if err := s.jobRepo.SetStatus(ctx, job.ID, domain.ReembedRunning, ""); err != nil {
		return nil, err
	}

	if err := s.drain(ctx, job, embedder); err != nil {
		// Leave the checkpoint intact; a failed job resumes where it stopped.
		status := domain.ReembedFailed
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = domain.ReembedPending
		}
		_ = s.jobRepo.SetStatus(context.WithoutCancel(ctx), job.ID, status, err.Error())
		return job, err
	}

	if err := s.jobRepo.SetStatus(ctx, job.ID, domain.ReembedCompleted, ""); err != nil {
		return nil, err
	}
	job.Status = domain.ReembedCompleted
	return job, nil
}

func (s *ReembedService) drain(ctx context.Context, job *domain.ReembedJob, embedder provider.EmbeddingProvider) error {
	model := embedder.ModelName()
	dims := embedder.Dimensions()

	afterID := job.LastItemID
	processed := job.Processed

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		items, err := s.knowledgeRepo.IterateForReembed(ctx, model, afterID, s.batchSize)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}

		texts := make([]string, len(items))
		for i, item := range items {
			texts[i] = item.Title + "\n\n" + item.Body
		}

		var vectors [][]float32
		err = provider.RetryWithBackoff(ctx, 3, time.Second, func() error {
			var embedErr error
			vectors, embedErr = embedder.EmbedBatch(ctx, texts)
			return embedErr
		})
		if err != nil {
			return err
		}

		for i, item := range items {
			if err := s.knowledgeRepo.UpdateEmbedding(ctx, item.ID, vectors[i], model, dims); err != nil {
				return err
			}
			processed++
		}

		afterID = items[len(items)-1].ID
		if err := s.jobRepo.Checkpoint(ctx, job.ID, afterID, processed); err != nil {
			return err
		}
		job.LastItemID = afterID
		job.Processed = processed

		log.Printf("reembed: job %s checkpoint at %s (%d processed)", job.ID, afterID, processed)
	}
}
