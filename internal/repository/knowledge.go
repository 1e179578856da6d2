package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/noesis-ai/noesis/internal/domain"
	"github.com/noesis-ai/noesis/internal/pagination"
	"github.com/noesis-ai/noesis/internal/service"
	"github.com/pgvector/pgvector-go"
)

const knowledgeColumns = `id, org_id, product_id, client_id, engagement_id,
	category_code, title, body, tags, metadata,
	embedding_model, embedding_dims,
	source, confidence, tier, confidence_flagged,
	validation_state, validated_by, validated_at,
	source_ref, source_key, content_hash, lock_version,
	supersedes_id, superseded_by_id, promoted_from_id,
	created_at, updated_at`

// KnowledgeRepository persists knowledge items. Writes are append-only:
// items are superseded or marked rejected, never deleted or edited in place
// beyond validation and embedding columns.
type KnowledgeRepository struct {
	db dbtx
}

func NewKnowledgeRepository(pool *pgxpool.Pool) *KnowledgeRepository {
	return &KnowledgeRepository{db: pool}
}

func NewKnowledgeRepositoryWithTx(tx pgx.Tx) *KnowledgeRepository {
	return &KnowledgeRepository{db: tx}
}

func (r *KnowledgeRepository) Create(ctx context.Context, k *domain.KnowledgeItem) error {
	var embedding any
	if len(k.Embedding) > 0 {
		embedding = pgvector.NewVector(k.Embedding)
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_items (
			id, org_id, product_id, client_id, engagement_id,
			category_code, title, body, tags, metadata,
			embedding, embedding_model, embedding_dims,
			source, confidence, tier, confidence_flagged,
			validation_state, validated_by, validated_at,
			source_ref, source_key, content_hash, lock_version,
			supersedes_id, superseded_by_id, promoted_from_id,
			created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28, $29)`,
		k.ID, k.Scope.OrgID, nullableString(k.Scope.ProductID), nullableString(k.Scope.ClientID), nullableString(k.Scope.EngagementID),
		k.CategoryCode, k.Title, k.Body, k.Tags, k.Metadata,
		embedding, nullableString(k.EmbeddingModel), k.EmbeddingDims,
		k.Source, k.Confidence, k.Tier, k.ConfidenceFlagged,
		k.ValidationState, nullableString(k.ValidatedBy), k.ValidatedAt,
		nullableString(k.SourceRef), k.SourceKey, k.ContentHash, k.LockVersion,
		nullableString(k.SupersedesID), nullableString(k.SupersededByID), nullableString(k.PromotedFromID),
		k.CreatedAt, k.UpdatedAt,
	)
	if err != nil && isUniqueViolation(err) {
		return domain.ErrSourceKeyConflict
	}
	return err
}

func (r *KnowledgeRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+knowledgeColumns+` FROM knowledge_items WHERE id = $1`, id)
	item, err := scanKnowledgeItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrKnowledgeNotFound
		}
		return nil, err
	}
	return item, nil
}

// GetHeadBySourceKey returns the newest non-superseded item for an
// idempotency key, or ErrKnowledgeNotFound.
func (r *KnowledgeRepository) GetHeadBySourceKey(ctx context.Context, sourceKey string) (*domain.KnowledgeItem, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+knowledgeColumns+`
		 FROM knowledge_items
		 WHERE source_key = $1 AND superseded_by_id IS NULL
		 ORDER BY created_at DESC
		 LIMIT 1`, sourceKey)
	item, err := scanKnowledgeItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrKnowledgeNotFound
		}
		return nil, err
	}
	return item, nil
}

// ListHeadsBySourceKey returns every live item keyed by a submission: the
// bare key plus any chunk siblings carrying its ordinal suffix. The key is
// a hex digest, so the '#' separator cannot collide with another family.
func (r *KnowledgeRepository) ListHeadsBySourceKey(ctx context.Context, sourceKey string) ([]*domain.KnowledgeItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+knowledgeColumns+`
		 FROM knowledge_items
		 WHERE (source_key = $1 OR source_key LIKE $1 || '#%')
		   AND superseded_by_id IS NULL
		 ORDER BY source_key ASC`, sourceKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanKnowledgeRows(rows)
}

// History returns the full version chain sharing the item's source key,
// oldest first.
func (r *KnowledgeRepository) History(ctx context.Context, id string) ([]*domain.KnowledgeItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+knowledgeColumns+`
		 FROM knowledge_items
		 WHERE source_key = (SELECT source_key FROM knowledge_items WHERE id = $1)
		 ORDER BY created_at ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanKnowledgeRows(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domain.ErrKnowledgeNotFound
	}
	return items, nil
}

// MarkSuperseded links an old version to its successor. The old version is
// not otherwise mutated; superseding is additive.
func (r *KnowledgeRepository) MarkSuperseded(ctx context.Context, oldID, newID string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_items SET superseded_by_id = $1, updated_at = $2
		 WHERE id = $3 AND superseded_by_id IS NULL`,
		newID, time.Now().UTC(), oldID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrKnowledgeNotFound
	}
	return nil
}

// UpdateValidation records a validation transition with its actor.
func (r *KnowledgeRepository) UpdateValidation(ctx context.Context, id string, state domain.ValidationState, validatedBy string, validatedAt time.Time) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_items
		 SET validation_state = $1, validated_by = $2, validated_at = $3, updated_at = $3
		 WHERE id = $4`,
		state, validatedBy, validatedAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrKnowledgeNotFound
	}
	return nil
}

// UpdateEmbedding replaces the stored vector together with its model
// identity so cross-model comparisons stay structurally impossible.
func (r *KnowledgeRepository) UpdateEmbedding(ctx context.Context, id string, embedding []float32, model string, dims int) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_items
		 SET embedding = $1, embedding_model = $2, embedding_dims = $3, updated_at = $4
		 WHERE id = $5`,
		pgvector.NewVector(embedding), model, dims, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrKnowledgeNotFound
	}
	return nil
}

// GetEmbedding fetches the stored vector and its model identity for an
// item, for related-item lookups and re-embedding.
func (r *KnowledgeRepository) GetEmbedding(ctx context.Context, id string) ([]float32, string, int, error) {
	var vec *pgvector.Vector
	var model *string
	var dims int
	err := r.db.QueryRow(ctx,
		`SELECT embedding, embedding_model, embedding_dims FROM knowledge_items WHERE id = $1`,
		id,
	).Scan(&vec, &model, &dims)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", 0, domain.ErrKnowledgeNotFound
		}
		return nil, "", 0, err
	}
	if vec == nil || model == nil {
		return nil, "", 0, domain.NewDomainError(domain.ErrCodeInvalidOperation, "item has no embedding")
	}
	return vec.Slice(), *model, dims, nil
}

// TouchForPromotion bumps the optimistic lock on the source item. Zero rows
// affected means a concurrent promotion won the race.
func (r *KnowledgeRepository) TouchForPromotion(ctx context.Context, id string, expectedVersion int64) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_items
		 SET lock_version = lock_version + 1, updated_at = $1
		 WHERE id = $2 AND lock_version = $3`,
		time.Now().UTC(), id, expectedVersion,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrPromotionConflict
	}
	return nil
}

// SearchSimilar returns the top matches by cosine distance, restricted to
// approved, non-superseded items visible to the scope. Scope and model are
// applied before the vector ordering so irrelevant tenants' vectors are
// never scanned.
func (r *KnowledgeRepository) SearchSimilar(ctx context.Context, p service.SearchParams) ([]*service.SearchResult, error) {
	if p.Limit <= 0 {
		p.Limit = 5
	}

	vec := pgvector.NewVector(p.Vector)
	args := []any{vec, p.Model, p.Dims}

	scopeClause, scopeArgs := scopePredicate(p.Scope, len(args)+1)
	args = append(args, scopeArgs...)

	var extra strings.Builder
	if p.Filters.CategoryCode != "" {
		args = append(args, p.Filters.CategoryCode)
		fmt.Fprintf(&extra, " AND category_code = $%d", len(args))
	}
	if len(p.Filters.Tags) > 0 {
		args = append(args, p.Filters.Tags)
		fmt.Fprintf(&extra, " AND tags && $%d", len(args))
	}
	if p.Filters.MinConfidence > 0 {
		args = append(args, p.Filters.MinConfidence)
		fmt.Fprintf(&extra, " AND confidence >= $%d", len(args))
	}

	args = append(args, p.Limit)

	query := fmt.Sprintf(
		`SELECT %s, 1 - (embedding <=> $1) AS similarity
		 FROM knowledge_items
		 WHERE validation_state = 'approved'
		   AND superseded_by_id IS NULL
		   AND embedding IS NOT NULL
		   AND embedding_model = $2
		   AND embedding_dims = $3
		   AND %s%s
		 ORDER BY embedding <=> $1
		 LIMIT $%d`,
		knowledgeColumns, scopeClause, extra.String(), len(args),
	)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*service.SearchResult
	for rows.Next() {
		item, similarity, err := scanKnowledgeItemWithSimilarity(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, &service.SearchResult{Item: item, Similarity: similarity})
	}
	return results, rows.Err()
}

// ListByScope pages through items visible to the scope, newest first.
func (r *KnowledgeRepository) ListByScope(ctx context.Context, scope domain.Scope, cursor *pagination.Cursor, limit int) (*service.KnowledgePageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	scopeClause, args := scopePredicate(scope, 1)
	query := `SELECT ` + knowledgeColumns + ` FROM knowledge_items WHERE ` + scopeClause

	if cursor != nil {
		args = append(args, cursor.Timestamp, cursor.LastID)
		query += fmt.Sprintf(" AND (updated_at, id) < ($%d, $%d)", len(args)-1, len(args))
	}
	args = append(args, limit+1)
	query += fmt.Sprintf(" ORDER BY updated_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanKnowledgeRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.UpdatedAt)
	}

	return &service.KnowledgePageResult{Items: items, NextCursor: nextCursor, HasMore: hasMore}, nil
}

// ListStalePending returns pending items older than the cutoff. Staleness is
// a reporting concern only; callers never transition these automatically.
func (r *KnowledgeRepository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*domain.KnowledgeItem, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+knowledgeColumns+`
		 FROM knowledge_items
		 WHERE validation_state = 'pending' AND created_at < $1
		 ORDER BY created_at ASC
		 LIMIT $2`,
		olderThan, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanKnowledgeRows(rows)
}

// IterateForReembed returns the next batch of items whose embeddings were
// not produced by model, keyed by id for resumable checkpointing.
func (r *KnowledgeRepository) IterateForReembed(ctx context.Context, model string, afterID string, limit int) ([]*domain.KnowledgeItem, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+knowledgeColumns+`
		 FROM knowledge_items
		 WHERE id > $1
		   AND superseded_by_id IS NULL
		   AND (embedding_model IS DISTINCT FROM $2 OR embedding IS NULL)
		 ORDER BY id ASC
		 LIMIT $3`,
		afterID, model, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanKnowledgeRows(rows)
}

// CountByState aggregates validation states for an organization.
func (r *KnowledgeRepository) CountByState(ctx context.Context, orgID string) (map[domain.ValidationState]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT validation_state, COUNT(*) FROM knowledge_items WHERE org_id = $1 GROUP BY validation_state`,
		orgID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.ValidationState]int64)
	for rows.Next() {
		var state domain.ValidationState
		var n int64
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[state] = n
	}
	return counts, rows.Err()
}

// CountByCategory aggregates items per category for an organization.
func (r *KnowledgeRepository) CountByCategory(ctx context.Context, orgID string) (map[string]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT category_code, COUNT(*) FROM knowledge_items WHERE org_id = $1 GROUP BY category_code`,
		orgID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var code string
		var n int64
		if err := rows.Scan(&code, &n); err != nil {
			return nil, err
		}
		counts[code] = n
	}
	return counts, rows.Err()
}

// CountStalePending counts pending items older than the cutoff.
func (r *KnowledgeRepository) CountStalePending(ctx context.Context, orgID string, olderThan time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM knowledge_items
		 WHERE org_id = $1 AND validation_state = 'pending' AND created_at < $2`,
		orgID, olderThan,
	).Scan(&n)
	return n, err
}

type knowledgeScanner interface {
	Scan(dest ...any) error
}

func scanKnowledgeItemInto(s knowledgeScanner, extra ...any) (*domain.KnowledgeItem, error) {
	var k domain.KnowledgeItem
	var productID, clientID, engagementID *string
	var embeddingModel, validatedBy, sourceRef *string
	var supersedesID, supersededByID, promotedFromID *string

	dest := []any{
		&k.ID, &k.Scope.OrgID, &productID, &clientID, &engagementID,
		&k.CategoryCode, &k.Title, &k.Body, &k.Tags, &k.Metadata,
		&embeddingModel, &k.EmbeddingDims,
		&k.Source, &k.Confidence, &k.Tier, &k.ConfidenceFlagged,
		&k.ValidationState, &validatedBy, &k.ValidatedAt,
		&sourceRef, &k.SourceKey, &k.ContentHash, &k.LockVersion,
		&supersedesID, &supersededByID, &promotedFromID,
		&k.CreatedAt, &k.UpdatedAt,
	}
	dest = append(dest, extra...)

	if err := s.Scan(dest...); err != nil {
		return nil, err
	}

	assign := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	assign(&k.Scope.ProductID, productID)
	assign(&k.Scope.ClientID, clientID)
	assign(&k.Scope.EngagementID, engagementID)
	assign(&k.EmbeddingModel, embeddingModel)
	assign(&k.ValidatedBy, validatedBy)
	assign(&k.SourceRef, sourceRef)
	assign(&k.SupersedesID, supersedesID)
	assign(&k.SupersededByID, supersededByID)
	assign(&k.PromotedFromID, promotedFromID)

	return &k, nil
}

func scanKnowledgeItem(s knowledgeScanner) (*domain.KnowledgeItem, error) {
	return scanKnowledgeItemInto(s)
}

func scanKnowledgeItemWithSimilarity(s knowledgeScanner) (*domain.KnowledgeItem, float64, error) {
	var similarity float64
	item, err := scanKnowledgeItemInto(s, &similarity)
	if err != nil {
		return nil, 0, err
	}
	return item, similarity, nil
}

func scanKnowledgeRows(rows pgx.Rows) ([]*domain.KnowledgeItem, error) {
	var results []*domain.KnowledgeItem
	for rows.Next() {
		item, err := scanKnowledgeItem(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	return results, rows.Err()
}
