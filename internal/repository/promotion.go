package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/noesis-ai/noesis/internal/domain"
)

const promotionColumns = `id, source_item_id, result_item_id, actor, target_level, notes, state, resolved_by, resolved_at, created_at`

// PromotionRepository persists the promotion audit trail.
type PromotionRepository struct {
	db dbtx
}

func NewPromotionRepository(pool *pgxpool.Pool) *PromotionRepository {
	return &PromotionRepository{db: pool}
}

func NewPromotionRepositoryWithTx(tx pgx.Tx) *PromotionRepository {
	return &PromotionRepository{db: tx}
}

func (r *PromotionRepository) Create(ctx context.Context, p *domain.KnowledgePromotion) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_promotions
			(id, source_item_id, result_item_id, actor, target_level, notes, state, resolved_by, resolved_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.SourceItemID, p.ResultItemID, p.Actor, p.TargetLevel, p.Notes, p.State,
		nullableString(p.ResolvedBy), p.ResolvedAt, p.CreatedAt,
	)
	return err
}

func (r *PromotionRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgePromotion, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+promotionColumns+` FROM knowledge_promotions WHERE id = $1`, id)
	p, err := scanPromotion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPromotionNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *PromotionRepository) ListBySourceItem(ctx context.Context, sourceItemID string) ([]*domain.KnowledgePromotion, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+promotionColumns+`
		 FROM knowledge_promotions WHERE source_item_id = $1 ORDER BY created_at DESC`,
		sourceItemID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPromotions(rows)
}

// GetByResultItem returns the promotion that produced an item, if any.
func (r *PromotionRepository) GetByResultItem(ctx context.Context, resultItemID string) (*domain.KnowledgePromotion, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+promotionColumns+` FROM knowledge_promotions WHERE result_item_id = $1`, resultItemID)
	p, err := scanPromotion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPromotionNotFound
		}
		return nil, err
	}
	return p, nil
}

// Resolve records the independent promotion approval decision. Resolving an
// already-resolved promotion is rejected.
func (r *PromotionRepository) Resolve(ctx context.Context, id string, state domain.PromotionState, resolvedBy string, resolvedAt time.Time) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_promotions
		 SET state = $1, resolved_by = $2, resolved_at = $3
		 WHERE id = $4 AND state = 'pending'`,
		state, resolvedBy, resolvedAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		// Distinguish missing from already-resolved for a precise error.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return domain.ErrPromotionResolved
	}
	return nil
}

func scanPromotion(s knowledgeScanner) (*domain.KnowledgePromotion, error) {
	var p domain.KnowledgePromotion
	var resolvedBy *string
	if err := s.Scan(&p.ID, &p.SourceItemID, &p.ResultItemID, &p.Actor, &p.TargetLevel, &p.Notes,
		&p.State, &resolvedBy, &p.ResolvedAt, &p.CreatedAt); err != nil {
		return nil, err
	}
	if resolvedBy != nil {
		p.ResolvedBy = *resolvedBy
	}
	return &p, nil
}

func scanPromotions(rows pgx.Rows) ([]*domain.KnowledgePromotion, error) {
	var results []*domain.KnowledgePromotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}
