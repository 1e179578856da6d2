package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/noesis-ai/noesis/internal/domain"
)

// CategoryRepository persists the per-organization knowledge taxonomy.
type CategoryRepository struct {
	db dbtx
}

func NewCategoryRepository(pool *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{db: pool}
}

func NewCategoryRepositoryWithTx(tx pgx.Tx) *CategoryRepository {
	return &CategoryRepository{db: tx}
}

func (r *CategoryRepository) Create(ctx context.Context, c *domain.KnowledgeCategory) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_categories
			(code, org_id, name, parent_code, default_scope_level, default_tier, system, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.Code, c.OrgID, c.Name, nullableString(c.ParentCode), c.DefaultScopeLevel, c.DefaultTier, c.System, c.CreatedAt,
	)
	if err != nil && isUniqueViolation(err) {
		return domain.ErrCategoryAlreadyExists
	}
	return err
}

func (r *CategoryRepository) GetByCode(ctx context.Context, orgID, code string) (*domain.KnowledgeCategory, error) {
	row := r.db.QueryRow(ctx,
		`SELECT code, org_id, name, parent_code, default_scope_level, default_tier, system, created_at
		 FROM knowledge_categories WHERE org_id = $1 AND code = $2`,
		orgID, code,
	)
	c, err := scanCategory(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCategoryNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *CategoryRepository) ListByOrg(ctx context.Context, orgID string) ([]*domain.KnowledgeCategory, error) {
	rows, err := r.db.Query(ctx,
		`SELECT code, org_id, name, parent_code, default_scope_level, default_tier, system, created_at
		 FROM knowledge_categories WHERE org_id = $1 ORDER BY code ASC`,
		orgID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []*domain.KnowledgeCategory
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func scanCategory(s knowledgeScanner) (*domain.KnowledgeCategory, error) {
	var c domain.KnowledgeCategory
	var parent *string
	if err := s.Scan(&c.Code, &c.OrgID, &c.Name, &parent, &c.DefaultScopeLevel, &c.DefaultTier, &c.System, &c.CreatedAt); err != nil {
		return nil, err
	}
	if parent != nil {
		c.ParentCode = *parent
	}
	return &c, nil
}
