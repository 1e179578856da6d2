package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/noesis-ai/noesis/internal/domain"
)

type ReembedJobRepository struct {
	db dbtx
}

func NewReembedJobRepository(pool *pgxpool.Pool) *ReembedJobRepository {
	return &ReembedJobRepository{db: pool}
}

func (r *ReembedJobRepository) Create(ctx context.Context, job *domain.ReembedJob) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO reembed_jobs (id, provider, model, dims, status, last_item_id, processed, error, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		job.ID, job.Provider, job.Model, job.Dims, job.Status, job.LastItemID, job.Processed, job.Error, job.CreatedAt, job.UpdatedAt,
	)
	return err
}

func (r *ReembedJobRepository) GetByID(ctx context.Context, id string) (*domain.ReembedJob, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, provider, model, dims, status, last_item_id, processed, error, created_at, updated_at
		 FROM reembed_jobs WHERE id = $1`, id)
	return scanReembedJob(row)
}

// GetResumable returns the newest unfinished job for a model, if any.
func (r *ReembedJobRepository) GetResumable(ctx context.Context, model string) (*domain.ReembedJob, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, provider, model, dims, status, last_item_id, processed, error, created_at, updated_at
		 FROM reembed_jobs
		 WHERE model = $1 AND status IN ('pending', 'running')
		 ORDER BY created_at DESC
		 LIMIT 1`, model)
	return scanReembedJob(row)
}

// Checkpoint advances the resume cursor after a successfully stored batch.
func (r *ReembedJobRepository) Checkpoint(ctx context.Context, id, lastItemID string, processed int64) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE reembed_jobs
		 SET last_item_id = $1, processed = $2, status = 'running', updated_at = $3
		 WHERE id = $4`,
		lastItemID, processed, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrReembedJobNotFound
	}
	return nil
}

func (r *ReembedJobRepository) SetStatus(ctx context.Context, id string, status domain.ReembedJobStatus, errMsg string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE reembed_jobs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		status, errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrReembedJobNotFound
	}
	return nil
}

func scanReembedJob(row pgx.Row) (*domain.ReembedJob, error) {
	var job domain.ReembedJob
	err := row.Scan(&job.ID, &job.Provider, &job.Model, &job.Dims, &job.Status,
		&job.LastItemID, &job.Processed, &job.Error, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrReembedJobNotFound
		}
		return nil, err
	}
	return &job, nil
}
