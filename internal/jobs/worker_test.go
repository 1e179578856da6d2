package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/noesis-ai/noesis/internal/domain"
	"github.com/noesis-ai/noesis/internal/service"
)

// MockProcessor is a mock implementation of Processor
type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) Name() string {
	return "mock"
}

func (m *MockProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// TestWorker_StartStop tests the worker start and stop functionality
func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(250 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestWorker_ContextCancellation tests worker stops on context cancellation
func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)

	cancel()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestWorker_ProcessorErrorKeepsPolling tests that a failing processor does
// not stop the worker
func TestWorker_ProcessorErrorKeepsPolling(t *testing.T) {
	mockProcessor := new(MockProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(errors.New("transient failure"))

	worker := NewWorker(mockProcessor, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(200 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	assert.GreaterOrEqual(t, len(mockProcessor.Calls), 2, "worker should keep polling after errors")
}

// stubKnowledgeRepo covers only the method the stale validation report
// touches; any other call panics on the nil embedded interface.
type stubKnowledgeRepo struct {
	service.KnowledgeRepositoryInterface
	items []*domain.KnowledgeItem
	err   error
}

func (s *stubKnowledgeRepo) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*domain.KnowledgeItem, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.items, nil
}

func TestStaleValidationProcessor_ProcessJobs(t *testing.T) {
	t.Run("reports stale pending items without transitioning them", func(t *testing.T) {
		repo := &stubKnowledgeRepo{items: []*domain.KnowledgeItem{
			{
				ID:              "item-1",
				Scope:           domain.Scope{OrgID: "org-1"},
				CategoryCode:    domain.CategoryMethodology,
				Tier:            domain.TierReviewRequired,
				ValidationState: domain.ValidationPending,
				CreatedAt:       time.Now().Add(-30 * 24 * time.Hour),
			},
		}}
		processor := NewStaleValidationProcessor(service.NewValidationService(repo), 7*24*time.Hour, 100)

		assert.NoError(t, processor.ProcessJobs(context.Background()))
	})

	t.Run("surfaces repository errors", func(t *testing.T) {
		repo := &stubKnowledgeRepo{err: errors.New("database error")}
		processor := NewStaleValidationProcessor(service.NewValidationService(repo), 7*24*time.Hour, 100)

		assert.Error(t, processor.ProcessJobs(context.Background()))
	})

	t.Run("no stale items is a quiet no-op", func(t *testing.T) {
		repo := &stubKnowledgeRepo{}
		processor := NewStaleValidationProcessor(service.NewValidationService(repo), 7*24*time.Hour, 100)

		assert.NoError(t, processor.ProcessJobs(context.Background()))
	})
}
