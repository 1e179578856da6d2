package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/noesis-ai/noesis/internal/domain"
	"github.com/noesis-ai/noesis/internal/provider"
	"github.com/noesis-ai/noesis/internal/storage"
)

// ObjectSource lists and fetches raw documents for bulk ingestion.
type ObjectSource interface {
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	FetchDocument(ctx context.Context, key string) (*storage.Document, error)
}

// IngestStatus is the per-submission outcome of an ingestion batch.
type IngestStatus string

const (
	IngestCreated   IngestStatus = "created"
	IngestVersion   IngestStatus = "version"
	IngestDuplicate IngestStatus = "duplicate"
	IngestFailed    IngestStatus = "failed"
)

// IngestSubmission is one raw document handed to the pipeline.
type IngestSubmission struct {
	Scope        domain.Scope
	CategoryCode string
	Title        string
	Body         string
	Tags         []string
	Metadata     map[string]string
	Source       domain.SourceType
	SourceRef    string
	Confidence   float64
	Tier         int // 0 means category default
}

// IngestResult reports what happened to one submission. A multi-chunk
// submission yields sibling items; ItemIDs lists them in chunk order.
type IngestResult struct {
	Status  IngestStatus
	ItemIDs []string
	Error   string
}

// IngestService runs submissions through the pipeline: parse, chunk, embed,
// validate, store. Failures are isolated per submission.
type IngestService struct {
	txRunner      TxRunner
	knowledgeRepo KnowledgeRepositoryInterface
	categoryRepo  CategoryRepositoryInterface
	embedder      provider.EmbeddingProvider
	chunkers      *ChunkerRegistry
	chunkCfg      ChunkConfig
	uuidGen       UUIDGenerator
	pool          *ants.Pool
}

func NewIngestService(
	txRunner TxRunner,
	knowledgeRepo KnowledgeRepositoryInterface,
	categoryRepo CategoryRepositoryInterface,
	embedder provider.EmbeddingProvider,
	uuidGen UUIDGenerator,
	workers int,
) (*IngestService, error) {
	if workers < 1 {
		workers = 4
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}
	return &IngestService{
		txRunner:      txRunner,
		knowledgeRepo: knowledgeRepo,
		categoryRepo:  categoryRepo,
		embedder:      embedder,
		chunkers:      NewChunkerRegistry(),
		chunkCfg:      DefaultChunkConfig(),
		uuidGen:       uuidGen,
		pool:          pool,
	}, nil
}

// Release frees the worker pool. The service should not be used afterwards.
func (s *IngestService) Release() {
	if s.pool != nil {
		s.pool.Release()
	}
}

// Chunkers exposes the registry so callers can install category-specific
// chunking strategies.
func (s *IngestService) Chunkers() *ChunkerRegistry {
	return s.chunkers
}

// Ingest runs a single submission through all pipeline stages.
func (s *IngestService) Ingest(ctx context.Context, sub IngestSubmission) (*IngestResult, error) {
	result := s.process(ctx, sub)
	if result.Status == IngestFailed {
		return result, domain.NewDomainError(domain.ErrCodeValidation, result.Error)
	}
	return result, nil
}

// IngestBatch runs submissions concurrently over the bounded worker pool.
// Results keep submission order. A cancelled context stops unstarted
// submissions; already-running ones finish their current item.
func (s *IngestService) IngestBatch(ctx context.Context, subs []IngestSubmission) ([]*IngestResult, error) {
	results := make([]*IngestResult, len(subs))

	var wg sync.WaitGroup
	for i := range subs {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(subs); j++ {
				results[j] = &IngestResult{Status: IngestFailed, Error: "batch cancelled"}
			}
			break
		}

		i := i
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				results[i] = &IngestResult{Status: IngestFailed, Error: "batch cancelled"}
				return
			}
			results[i] = s.process(ctx, subs[i])
		})
		if err != nil {
			wg.Done()
			results[i] = &IngestResult{Status: IngestFailed, Error: err.Error()}
		}
	}
	wg.Wait()

	return results, nil
}

// IngestFromS3 drains a bucket prefix of raw documents into the batch
// pipeline with ingested provenance. The object key is the source
// reference, so a re-run of the same prefix is idempotent.
func (s *IngestService) IngestFromS3(ctx context.Context, source ObjectSource, prefix string, scope domain.Scope, categoryCode string) ([]*IngestResult, error) {
	keys, err := source.ListKeys(ctx, prefix)
	if err != nil {
		return nil, err
	}

	subs := make([]IngestSubmission, 0, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := source.FetchDocument(ctx, key)
		if err != nil {
			return nil, err
		}
		subs = append(subs, IngestSubmission{
			Scope:        scope,
			CategoryCode: categoryCode,
			Title:        doc.Title,
			Body:         doc.Body,
			Source:       domain.SourceIngested,
			SourceRef:    "s3:" + doc.Key,
		})
	}

	return s.IngestBatch(ctx, subs)
}

func (s *IngestService) process(ctx context.Context, sub IngestSubmission) *IngestResult {
	fail := func(reason string) *IngestResult {
		return &IngestResult{Status: IngestFailed, Error: reason}
	}

	// Parse: structural checks and provenance normalization.
	category, err := s.parse(ctx, &sub)
	if err != nil {
		return fail(err.Error())
	}

	tier := sub.Tier
	if tier == 0 {
		tier = category.DefaultTier
	}
	if tier < domain.TierAutoApproved || tier > domain.TierAIGenerated {
		return fail("validation tier must be between 1 and 4")
	}
	if sub.Source == domain.SourceAIGenerated && tier != domain.TierAIGenerated {
		tier = domain.TierAIGenerated
	}

	// Chunk: one item per chunk, siblings share a submission id.
	chunks := s.chunkers.For(sub.CategoryCode).Chunk(sub.Body, s.chunkCfg)
	if len(chunks) == 0 {
		return fail("submission body produced no content")
	}

	// Embed: one provider round trip for the whole submission.
	vectors, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return fail(fmt.Sprintf("embedding failed: %v", err))
	}

	submissionID := s.uuidGen.NewString()
	submissionKey := domain.SourceKeyFor(sub.Scope, sub.Source, sub.SourceRef, sub.Title)
	now := time.Now().UTC()
	state := domain.InitialValidationState(tier)

	var validatedBy string
	var validatedAt *time.Time
	if state == domain.ValidationApproved {
		validatedBy = "system"
		validatedAt = &now
	}

	items := make([]*domain.KnowledgeItem, len(chunks))
	for i, chunk := range chunks {
		item := &domain.KnowledgeItem{
			ID:           s.uuidGen.NewString(),
			Scope:        sub.Scope,
			CategoryCode: sub.CategoryCode,
			Title:        chunkTitle(sub.Title, i, len(chunks)),
			Body:         chunk,
			Tags:         sub.Tags,
			Metadata:     chunkMetadata(sub.Metadata, submissionID, i, len(chunks)),

			Embedding:      vectors[i],
			EmbeddingModel: s.embedder.ModelName(),
			EmbeddingDims:  s.embedder.Dimensions(),

			Source:            sub.Source,
			Confidence:        sub.Confidence,
			Tier:              tier,
			ConfidenceFlagged: tier == domain.TierAutoTrusted,

			ValidationState: state,
			ValidatedBy:     validatedBy,
			ValidatedAt:     validatedAt,
			SourceRef:       sub.SourceRef,
			ContentHash:     domain.ContentHashFor(sub.Title, chunk, sub.Tags),

			CreatedAt: now,
			UpdatedAt: now,
		}
		item.SourceKey = chunkKey(submissionKey, i, len(chunks))

		if err := domain.ValidateKnowledgeItem(item); err != nil {
			return fail(err.Error())
		}
		items[i] = item
	}

	status, itemIDs, err := s.store(ctx, submissionKey, items)
	if err != nil {
		return fail(err.Error())
	}
	return &IngestResult{Status: status, ItemIDs: itemIDs}
}

func (s *IngestService) parse(ctx context.Context, sub *IngestSubmission) (*domain.KnowledgeCategory, error) {
	if err := sub.Scope.Validate(); err != nil {
		return nil, err
	}
	sub.Title = strings.TrimSpace(sub.Title)
	sub.Body = strings.TrimSpace(sub.Body)
	if sub.Title == "" {
		return nil, errors.New("title is required")
	}
	if sub.Body == "" {
		return nil, errors.New("body is required")
	}
	if sub.CategoryCode == "" {
		return nil, errors.New("category code is required")
	}
	if sub.Source == "" {
		sub.Source = domain.SourceHumanAuthored
	}
	if !sub.Source.Valid() {
		return nil, domain.ErrInvalidSourceType
	}
	if sub.Confidence < 0 || sub.Confidence > 1 {
		return nil, errors.New("confidence must be between 0 and 1")
	}
	if sub.Confidence == 0 {
		sub.Confidence = 1
	}

	category, err := s.categoryRepo.GetByCode(ctx, sub.Scope.OrgID, sub.CategoryCode)
	if err != nil {
		return nil, fmt.Errorf("unknown category %q", sub.CategoryCode)
	}
	return category, nil
}

func (s *IngestService) embedChunks(ctx context.Context, chunks []string) ([][]float32, error) {
	var vectors [][]float32
	err := provider.RetryWithBackoff(ctx, 3, 500*time.Millisecond, func() error {
		var embedErr error
		vectors, embedErr = s.embedder.EmbedBatch(ctx, chunks)
		return embedErr
	})
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("provider returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	return vectors, nil
}

// store persists a submission idempotently against the live heads sharing
// its key family. Unchanged chunks are duplicates, changed chunks supersede
// their head, and heads left over from a previous chunking are retired in
// the same transaction so stale chunks never stay retrievable.
func (s *IngestService) store(ctx context.Context, submissionKey string, items []*domain.KnowledgeItem) (IngestStatus, []string, error) {
	heads, err := s.knowledgeRepo.ListHeadsBySourceKey(ctx, submissionKey)
	if err != nil {
		return IngestFailed, nil, err
	}
	headByKey := make(map[string]*domain.KnowledgeItem, len(heads))
	for _, h := range heads {
		headByKey[h.SourceKey] = h
	}

	var creates []*domain.KnowledgeItem
	itemIDs := make([]string, 0, len(items))
	kept := make(map[string]bool, len(items))
	for _, item := range items {
		kept[item.SourceKey] = true
		head, ok := headByKey[item.SourceKey]
		if ok && head.ContentHash == item.ContentHash {
			itemIDs = append(itemIDs, head.ID)
			continue
		}
		if ok {
			item.SupersedesID = head.ID
		}
		creates = append(creates, item)
		itemIDs = append(itemIDs, item.ID)
	}

	var orphans []*domain.KnowledgeItem
	for _, h := range heads {
		if !kept[h.SourceKey] {
			orphans = append(orphans, h)
		}
	}

	if len(creates) == 0 && len(orphans) == 0 {
		return IngestDuplicate, itemIDs, nil
	}

	// A head whose chunk no longer exists is retired toward the submission's
	// first item so its version chain stays connected.
	successorID := itemIDs[0]

	// Old heads must be retired before replacements are inserted: the
	// one-live-head-per-key index is checked per statement. Forward
	// references to new ids resolve at commit.
	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		for _, item := range creates {
			if item.SupersedesID == "" {
				continue
			}
			if err := repos.Knowledge().MarkSuperseded(ctx, item.SupersedesID, item.ID); err != nil {
				return err
			}
		}
		for _, h := range orphans {
			if err := repos.Knowledge().MarkSuperseded(ctx, h.ID, successorID); err != nil {
				return err
			}
		}
		for _, item := range creates {
			if err := repos.Knowledge().Create(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return IngestFailed, nil, err
	}

	if len(heads) == 0 {
		return IngestCreated, itemIDs, nil
	}
	return IngestVersion, itemIDs, nil
}

func chunkTitle(title string, i, total int) string {
	if total == 1 {
		return title
	}
	return fmt.Sprintf("%s (part %d/%d)", title, i+1, total)
}

// chunkKey derives the per-chunk idempotency key. A single chunk keeps the
// bare submission key; siblings append an ordinal the hex digest can never
// contain, so the whole family is addressable by its shared prefix.
func chunkKey(submissionKey string, i, total int) string {
	if total == 1 {
		return submissionKey
	}
	return fmt.Sprintf("%s#chunk-%d", submissionKey, i)
}

func chunkMetadata(meta map[string]string, submissionID string, i, total int) map[string]string {
	out := make(map[string]string, len(meta)+3)
	for k, v := range meta {
		out[k] = v
	}
	out["submission_id"] = submissionID
	if total > 1 {
		out["chunk_index"] = fmt.Sprintf("%d", i)
		out["chunk_count"] = fmt.Sprintf("%d", total)
	}
	return out
}
