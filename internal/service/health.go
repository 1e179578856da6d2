package service

import (
	"context"
	"time"

	"github.com/noesis-ai/noesis/internal/domain"
	"github.com/noesis-ai/noesis/internal/provider"
)

// HealthReport is the operational snapshot served by /health.
type HealthReport struct {
	Status            string                           `json:"status"`
	EmbeddingProvider string                           `json:"embedding_provider"`
	EmbeddingModel    string                           `json:"embedding_model"`
	EmbeddingDims     int                              `json:"embedding_dims"`
	ItemsByState      map[domain.ValidationState]int64 `json:"items_by_state"`
	ItemsByCategory   map[string]int64                 `json:"items_by_category"`
	StalePending      int64                            `json:"stale_pending"`
	QueryStats        *domain.LatencyStats             `json:"query_stats,omitempty"`
}

// HealthService aggregates corpus and latency statistics per organization.
type HealthService struct {
	knowledgeRepo KnowledgeRepositoryInterface
	queryLogRepo  QueryLogRepositoryInterface
	providerName  string
	embedder      provider.EmbeddingProvider
	staleAge      time.Duration
}

func NewHealthService(
	knowledgeRepo KnowledgeRepositoryInterface,
	queryLogRepo QueryLogRepositoryInterface,
	providerName string,
	embedder provider.EmbeddingProvider,
	staleAge time.Duration,
) *HealthService {
	if staleAge <= 0 {
		staleAge = 7 * 24 * time.Hour
	}
	return &HealthService{
		knowledgeRepo: knowledgeRepo,
		queryLogRepo:  queryLogRepo,
		providerName:  providerName,
		embedder:      embedder,
		staleAge:      staleAge,
	}
}

func (s *HealthService) Report(ctx context.Context, orgID string) (*HealthReport, error) {
	byState, err := s.knowledgeRepo.CountByState(ctx, orgID)
	if err != nil {
		return nil, err
	}
	byCategory, err := s.knowledgeRepo.CountByCategory(ctx, orgID)
	if err != nil {
		return nil, err
	}
	stale, err := s.knowledgeRepo.CountStalePending(ctx, orgID, time.Now().UTC().Add(-s.staleAge))
	if err != nil {
		return nil, err
	}
	stats, err := s.queryLogRepo.LatencyStats(ctx, orgID, 100)
	if err != nil {
		return nil, err
	}

	return &HealthReport{
		Status:            "ok",
		EmbeddingProvider: s.providerName,
		EmbeddingModel:    s.embedder.ModelName(),
		EmbeddingDims:     s.embedder.Dimensions(),
		ItemsByState:      byState,
		ItemsByCategory:   byCategory,
		StalePending:      stale,
		QueryStats:        stats,
	}, nil
}
