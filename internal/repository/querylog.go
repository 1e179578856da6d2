package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/noesis-ai/noesis/internal/domain"
)

// QueryLogRepository records retrieval calls and their feedback.
type QueryLogRepository struct {
	db dbtx
}

func NewQueryLogRepository(pool *pgxpool.Pool) *QueryLogRepository {
	return &QueryLogRepository{db: pool}
}

func NewQueryLogRepositoryWithTx(tx pgx.Tx) *QueryLogRepository {
	return &QueryLogRepository{db: tx}
}

func (r *QueryLogRepository) Create(ctx context.Context, q *domain.QueryLog) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO query_logs
			(id, org_id, kind, query_text, result_count, top_similarity, item_ids, latency_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		q.ID, q.OrgID, q.Kind, q.QueryText, q.ResultCount, q.TopSimilarity, q.ItemIDs, q.LatencyMS, q.CreatedAt,
	)
	return err
}

func (r *QueryLogRepository) GetByID(ctx context.Context, id string) (*domain.QueryLog, error) {
	var q domain.QueryLog
	err := r.db.QueryRow(ctx,
		`SELECT id, org_id, kind, query_text, result_count, top_similarity, item_ids, latency_ms, created_at
		 FROM query_logs WHERE id = $1`,
		id,
	).Scan(&q.ID, &q.OrgID, &q.Kind, &q.QueryText, &q.ResultCount, &q.TopSimilarity, &q.ItemIDs, &q.LatencyMS, &q.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrQueryLogNotFound
		}
		return nil, err
	}
	return &q, nil
}

func (r *QueryLogRepository) CreateFeedback(ctx context.Context, f *domain.QueryFeedback) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO query_feedback
			(id, query_log_id, helpful, comment, correction, item_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		f.ID, f.QueryLogID, f.Helpful, f.Comment, f.Correction, nullableString(f.ItemID), f.CreatedAt,
	)
	return err
}

// LatencyStats aggregates recent query latency for health reporting.
func (r *QueryLogRepository) LatencyStats(ctx context.Context, orgID string, lastN int) (*domain.LatencyStats, error) {
	if lastN <= 0 {
		lastN = 100
	}
	var stats domain.LatencyStats
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*),
		        COALESCE(AVG(latency_ms), 0),
		        COALESCE(MAX(latency_ms), 0),
		        COALESCE(AVG(top_similarity), 0)
		 FROM (
			 SELECT latency_ms, top_similarity
			 FROM query_logs
			 WHERE org_id = $1
			 ORDER BY created_at DESC
			 LIMIT $2
		 ) recent`,
		orgID, lastN,
	).Scan(&stats.Count, &stats.AvgMS, &stats.MaxMS, &stats.AvgTopSim)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
