package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/noesis-ai/noesis/internal/domain"
	"github.com/noesis-ai/noesis/internal/pagination"
)

// MockKnowledgeRepository is a mock implementation of KnowledgeRepositoryInterface
type MockKnowledgeRepository struct {
	mock.Mock
}

func (m *MockKnowledgeRepository) Create(ctx context.Context, k *domain.KnowledgeItem) error {
	args := m.Called(ctx, k)
	return args.Error(0)
}

func (m *MockKnowledgeRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeItem), args.Error(1)
}

func (m *MockKnowledgeRepository) GetHeadBySourceKey(ctx context.Context, sourceKey string) (*domain.KnowledgeItem, error) {
	args := m.Called(ctx, sourceKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeItem), args.Error(1)
}

func (m *MockKnowledgeRepository) ListHeadsBySourceKey(ctx context.Context, sourceKey string) ([]*domain.KnowledgeItem, error) {
	args := m.Called(ctx, sourceKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeItem), args.Error(1)
}

func (m *MockKnowledgeRepository) History(ctx context.Context, id string) ([]*domain.KnowledgeItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeItem), args.Error(1)
}

func (m *MockKnowledgeRepository) MarkSuperseded(ctx context.Context, oldID, newID string) error {
	args := m.Called(ctx, oldID, newID)
	return args.Error(0)
}

func (m *MockKnowledgeRepository) UpdateValidation(ctx context.Context, id string, state domain.ValidationState, validatedBy string, validatedAt time.Time) error {
	args := m.Called(ctx, id, state, validatedBy, validatedAt)
	return args.Error(0)
}

func (m *MockKnowledgeRepository) UpdateEmbedding(ctx context.Context, id string, embedding []float32, model string, dims int) error {
	args := m.Called(ctx, id, embedding, model, dims)
	return args.Error(0)
}

func (m *MockKnowledgeRepository) GetEmbedding(ctx context.Context, id string) ([]float32, string, int, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, "", 0, args.Error(3)
	}
	return args.Get(0).([]float32), args.String(1), args.Int(2), args.Error(3)
}

func (m *MockKnowledgeRepository) TouchForPromotion(ctx context.Context, id string, expectedVersion int64) error {
	args := m.Called(ctx, id, expectedVersion)
	return args.Error(0)
}

func (m *MockKnowledgeRepository) SearchSimilar(ctx context.Context, p SearchParams) ([]*SearchResult, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*SearchResult), args.Error(1)
}

func (m *MockKnowledgeRepository) ListByScope(ctx context.Context, scope domain.Scope, cursor *pagination.Cursor, limit int) (*KnowledgePageResult, error) {
	args := m.Called(ctx, scope, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*KnowledgePageResult), args.Error(1)
}

func (m *MockKnowledgeRepository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*domain.KnowledgeItem, error) {
	args := m.Called(ctx, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeItem), args.Error(1)
}

func (m *MockKnowledgeRepository) IterateForReembed(ctx context.Context, model string, afterID string, limit int) ([]*domain.KnowledgeItem, error) {
	args := m.Called(ctx, model, afterID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeItem), args.Error(1)
}

func (m *MockKnowledgeRepository) CountByState(ctx context.Context, orgID string) (map[domain.ValidationState]int64, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[domain.ValidationState]int64), args.Error(1)
}

func (m *MockKnowledgeRepository) CountByCategory(ctx context.Context, orgID string) (map[string]int64, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

func (m *MockKnowledgeRepository) CountStalePending(ctx context.Context, orgID string, olderThan time.Time) (int64, error) {
	args := m.Called(ctx, orgID, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

// MockCategoryRepository is a mock implementation of CategoryRepositoryInterface
type MockCategoryRepository struct {
	mock.Mock
}

func (m *MockCategoryRepository) Create(ctx context.Context, c *domain.KnowledgeCategory) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCategoryRepository) GetByCode(ctx context.Context, orgID, code string) (*domain.KnowledgeCategory, error) {
	args := m.Called(ctx, orgID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeCategory), args.Error(1)
}

func (m *MockCategoryRepository) ListByOrg(ctx context.Context, orgID string) ([]*domain.KnowledgeCategory, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeCategory), args.Error(1)
}

// MockPromotionRepository is a mock implementation of PromotionRepositoryInterface
type MockPromotionRepository struct {
	mock.Mock
}

func (m *MockPromotionRepository) Create(ctx context.Context, p *domain.KnowledgePromotion) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPromotionRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgePromotion, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgePromotion), args.Error(1)
}

func (m *MockPromotionRepository) ListBySourceItem(ctx context.Context, sourceItemID string) ([]*domain.KnowledgePromotion, error) {
	args := m.Called(ctx, sourceItemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgePromotion), args.Error(1)
}

func (m *MockPromotionRepository) GetByResultItem(ctx context.Context, resultItemID string) (*domain.KnowledgePromotion, error) {
	args := m.Called(ctx, resultItemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgePromotion), args.Error(1)
}

func (m *MockPromotionRepository) Resolve(ctx context.Context, id string, state domain.PromotionState, resolvedBy string, resolvedAt time.Time) error {
	args := m.Called(ctx, id, state, resolvedBy, resolvedAt)
	return args.Error(0)
}

// MockQueryLogRepository is a mock implementation of QueryLogRepositoryInterface
type MockQueryLogRepository struct {
	mock.Mock
}

func (m *MockQueryLogRepository) Create(ctx context.Context, q *domain.QueryLog) error {
	args := m.Called(ctx, q)
	return args.Error(0)
}

func (m *MockQueryLogRepository) GetByID(ctx context.Context, id string) (*domain.QueryLog, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QueryLog), args.Error(1)
}

func (m *MockQueryLogRepository) CreateFeedback(ctx context.Context, f *domain.QueryFeedback) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

func (m *MockQueryLogRepository) LatencyStats(ctx context.Context, orgID string, lastN int) (*domain.LatencyStats, error) {
	args := m.Called(ctx, orgID, lastN)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LatencyStats), args.Error(1)
}

// MockAPIKeyRepository is a mock implementation of APIKeyRepositoryInterface
type MockAPIKeyRepository struct {
	mock.Mock
}

func (m *MockAPIKeyRepository) Create(ctx context.Context, key *domain.APIKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockAPIKeyRepository) GetByID(ctx context.Context, id string) (*domain.APIKey, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.APIKey), args.Error(1)
}

func (m *MockAPIKeyRepository) GetByHash(ctx context.Context, hash string) (*domain.APIKey, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.APIKey), args.Error(1)
}

func (m *MockAPIKeyRepository) ListByOrg(ctx context.Context, orgID string) ([]*domain.APIKey, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.APIKey), args.Error(1)
}

func (m *MockAPIKeyRepository) Revoke(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockReembedJobRepository is a mock implementation of ReembedJobRepositoryInterface
type MockReembedJobRepository struct {
	mock.Mock
}

func (m *MockReembedJobRepository) Create(ctx context.Context, job *domain.ReembedJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockReembedJobRepository) GetByID(ctx context.Context, id string) (*domain.ReembedJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReembedJob), args.Error(1)
}

func (m *MockReembedJobRepository) GetResumable(ctx context.Context, model string) (*domain.ReembedJob, error) {
	args := m.Called(ctx, model)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReembedJob), args.Error(1)
}

func (m *MockReembedJobRepository) Checkpoint(ctx context.Context, id, lastItemID string, processed int64) error {
	args := m.Called(ctx, id, lastItemID, processed)
	return args.Error(0)
}

func (m *MockReembedJobRepository) SetStatus(ctx context.Context, id string, status domain.ReembedJobStatus, errMsg string) error {
	args := m.Called(ctx, id, status, errMsg)
	return args.Error(0)
}

// MockEmbeddingProvider mocks the embedding backend. Model and Dims are
// plain fields because every pipeline stage reads them.
type MockEmbeddingProvider struct {
	mock.Mock
	Model string
	Dims  int
}

func (m *MockEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockEmbeddingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *MockEmbeddingProvider) ModelName() string {
	return m.Model
}

func (m *MockEmbeddingProvider) Dimensions() int {
	return m.Dims
}

// MockCompletionProvider mocks the answer synthesis backend
type MockCompletionProvider struct {
	mock.Mock
}

func (m *MockCompletionProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	args := m.Called(ctx, system, prompt)
	return args.String(0), args.Error(1)
}

func (m *MockCompletionProvider) CompletionModel() string {
	return "mock-completion"
}

// MockIngestor is a mock implementation of CorrectionIngestor
type MockIngestor struct {
	mock.Mock
}

func (m *MockIngestor) Ingest(ctx context.Context, sub IngestSubmission) (*IngestResult, error) {
	args := m.Called(ctx, sub)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*IngestResult), args.Error(1)
}

// MockUUIDGenerator returns the configured IDs in order, then "default-uuid".
// Safe for concurrent use because batch ingestion generates IDs from pool
// workers.
type MockUUIDGenerator struct {
	mu        sync.Mutex
	callCount int
	uuids     []string
}

func NewMockUUIDGenerator(uuids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{uuids: uuids}
}

func (m *MockUUIDGenerator) NewString() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.callCount < len(m.uuids) {
		uuid := m.uuids[m.callCount]
		m.callCount++
		return uuid
	}
	return "default-uuid"
}

// stubTxRunner hands the enclosed repositories straight to the callback,
// with no transaction underneath.
type stubTxRunner struct {
	knowledge  KnowledgeRepositoryInterface
	promotions PromotionRepositoryInterface
	err        error
}

func (r *stubTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	if r.err != nil {
		return r.err
	}
	return fn(r)
}

func (r *stubTxRunner) Knowledge() KnowledgeRepositoryInterface {
	return r.knowledge
}

func (r *stubTxRunner) Promotions() PromotionRepositoryInterface {
	return r.promotions
}

func testVector(dims int) []float32 {
	v := make([]float32, dims)
	for i := range v {
		v[i] = float32(i%7) * 0.1
	}
	return v
}
