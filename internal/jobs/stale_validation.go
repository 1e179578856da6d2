package jobs

import (
	"context"
	"log"
	"time"

	"github.com/noesis-ai/noesis/internal/service"
)

// StaleValidationProcessor reports pending items that have waited past the
// review age. It only surfaces them; items are never transitioned without
// an explicit reviewer action.
type StaleValidationProcessor struct {
	validation *service.ValidationService
	maxAge     time.Duration
	batchSize  int
}

func NewStaleValidationProcessor(validation *service.ValidationService, maxAge time.Duration, batchSize int) *StaleValidationProcessor {
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &StaleValidationProcessor{
		validation: validation,
		maxAge:     maxAge,
		batchSize:  batchSize,
	}
}

func (p *StaleValidationProcessor) Name() string { return "stale-validation" }

func (p *StaleValidationProcessor) ProcessJobs(ctx context.Context) error {
	items, err := p.validation.StalePending(ctx, p.maxAge, p.batchSize)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	for _, item := range items {
		log.Printf("stale pending item: id=%s org=%s category=%s tier=%d age=%v",
			item.ID, item.Scope.OrgID, item.CategoryCode, item.Tier,
			time.Since(item.CreatedAt).Round(time.Hour))
	}
	log.Printf("stale validation report: %d pending items older than %v", len(items), p.maxAge)
	return nil
}
