package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noesis-ai/noesis/internal/domain"
	"github.com/noesis-ai/noesis/internal/provider"
)

// DefaultMinSimilarity is the retrieval floor: hits below it are discarded
// and an Ask with no hit above it answers insufficient_knowledge.
const DefaultMinSimilarity = 0.7

// DefaultTopK is the default result count for search and ask.
const DefaultTopK = 5

// SearchFilters compose with the scope predicate at query time.
type SearchFilters struct {
	CategoryCode  string
	Tags          []string
	MinConfidence float64
}

// SearchParams carries everything a similarity search needs. Model and Dims
// are hard pre-filters: vectors from other models never enter the distance
// computation.
type SearchParams struct {
	Vector  []float32
	Model   string
	Dims    int
	Scope   domain.Scope
	Filters SearchFilters
	Limit   int
}

// SearchResult is one ranked hit with its cosine similarity in [0,1].
type SearchResult struct {
	Item       *domain.KnowledgeItem
	Similarity float64
}

type QueryLogRepositoryInterface interface {
	Create(ctx context.Context, q *domain.QueryLog) error
	GetByID(ctx context.Context, id string) (*domain.QueryLog, error)
	CreateFeedback(ctx context.Context, f *domain.QueryFeedback) error
	LatencyStats(ctx context.Context, orgID string, lastN int) (*domain.LatencyStats, error)
}

// CorrectionIngestor accepts feedback corrections into the ingestion
// pipeline as tier 4 items.
type CorrectionIngestor interface {
	Ingest(ctx context.Context, sub IngestSubmission) (*IngestResult, error)
}

// Citation names one source supplied to the completion provider. Every
// source block sent to the model is cited, whether or not the answer used it.
type Citation struct {
	ItemID     string  `json:"item_id"`
	Title      string  `json:"title"`
	Scope      string  `json:"scope"`
	Similarity float64 `json:"similarity"`
}

// Answer is the result of an ask call.
type Answer struct {
	QueryID               string     `json:"query_id"`
	Answer                string     `json:"answer"`
	Citations             []Citation `json:"citations"`
	Confidence            string     `json:"confidence"`
	InsufficientKnowledge bool       `json:"insufficient_knowledge"`
}

// SearchResponse is a ranked result set with its query log id.
type SearchResponse struct {
	QueryID string
	Results []*SearchResult
}

// QueryService embeds queries and retrieves scoped, approved knowledge.
type QueryService struct {
	knowledgeRepo KnowledgeRepositoryInterface
	queryLogRepo  QueryLogRepositoryInterface
	embedder      provider.EmbeddingProvider
	completer     provider.CompletionProvider
	ingestor      CorrectionIngestor
	uuidGen       UUIDGenerator
	minSimilarity float64
}

func NewQueryService(
	knowledgeRepo KnowledgeRepositoryInterface,
	queryLogRepo QueryLogRepositoryInterface,
	embedder provider.EmbeddingProvider,
	completer provider.CompletionProvider,
	ingestor CorrectionIngestor,
	uuidGen UUIDGenerator,
	minSimilarity float64,
) *QueryService {
	if minSimilarity <= 0 || minSimilarity >= 1 {
		minSimilarity = DefaultMinSimilarity
	}
	return &QueryService{
		knowledgeRepo: knowledgeRepo,
		queryLogRepo:  queryLogRepo,
		embedder:      embedder,
		completer:     completer,
		ingestor:      ingestor,
		uuidGen:       uuidGen,
		minSimilarity: minSimilarity,
	}
}

// Search embeds the query and returns ranked hits above the similarity
// floor, all within the caller's scope.
func (s *QueryService) Search(ctx context.Context, scope domain.Scope, query string, filters SearchFilters, topK int) (*SearchResponse, error) {
	started := time.Now()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "query text is required")
	}
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUnavailable, "query embedding failed", err)
	}
	if len(vector) != s.embedder.Dimensions() {
		return nil, domain.ErrEmbeddingModelMismatch
	}

	hits, err := s.knowledgeRepo.SearchSimilar(ctx, SearchParams{
		Vector:  vector,
		Model:   s.embedder.ModelName(),
		Dims:    s.embedder.Dimensions(),
		Scope:   scope,
		Filters: filters,
		Limit:   topK,
	})
	if err != nil {
		return nil, err
	}

	results := hits[:0:len(hits)]
	for _, hit := range hits {
		if hit.Similarity >= s.minSimilarity {
			results = append(results, hit)
		}
	}

	queryID := s.logQuery(ctx, scope.OrgID, domain.QuerySearch, query, results, started)
	return &SearchResponse{QueryID: queryID, Results: results}, nil
}

// Ask searches, then synthesizes an answer from the hits. When nothing
// clears the similarity floor it reports insufficient knowledge instead of
// letting the model improvise.
func (s *QueryService) Ask(ctx context.Context, scope domain.Scope, question string, filters SearchFilters, topK int) (*Answer, error) {
	started := time.Now()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "question text is required")
	}
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUnavailable, "query embedding failed", err)
	}
	if len(vector) != s.embedder.Dimensions() {
		return nil, domain.ErrEmbeddingModelMismatch
	}

	hits, err := s.knowledgeRepo.SearchSimilar(ctx, SearchParams{
		Vector:  vector,
		Model:   s.embedder.ModelName(),
		Dims:    s.embedder.Dimensions(),
		Scope:   scope,
		Filters: filters,
		Limit:   topK,
	})
	if err != nil {
		return nil, err
	}

	var usable []*SearchResult
	for _, hit := range hits {
		if hit.Similarity >= s.minSimilarity {
			usable = append(usable, hit)
		}
	}

	queryID := s.logQuery(ctx, scope.OrgID, domain.QueryAsk, question, usable, started)

	if len(usable) == 0 {
		return &Answer{
			QueryID:               queryID,
			Confidence:            "low",
			InsufficientKnowledge: true,
		}, nil
	}

	prompt := buildAskPrompt(question, usable)
	text, err := s.completer.Complete(ctx, askSystemPrompt, prompt)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUnavailable, "answer synthesis failed", err)
	}

	citations := make([]Citation, len(usable))
	for i, hit := range usable {
		citations[i] = Citation{
			ItemID:     hit.Item.ID,
			Title:      hit.Item.Title,
			Scope:      hit.Item.Scope.String(),
			Similarity: hit.Similarity,
		}
	}

	return &Answer{
		QueryID:    queryID,
		Answer:     text,
		Citations:  citations,
		Confidence: confidenceLabel(usable[0].Similarity),
	}, nil
}

// Similar returns the nearest approved neighbours of an existing item,
// re-using its stored vector.
func (s *QueryService) Similar(ctx context.Context, scope domain.Scope, itemID string, topK int) ([]*SearchResult, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	item, err := s.knowledgeRepo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !visibleTo(item.Scope, scope) {
		return nil, domain.ErrKnowledgeNotFound
	}

	vector, model, dims, err := s.knowledgeRepo.GetEmbedding(ctx, itemID)
	if err != nil {
		return nil, err
	}

	hits, err := s.knowledgeRepo.SearchSimilar(ctx, SearchParams{
		Vector: vector,
		Model:  model,
		Dims:   dims,
		Scope:  scope,
		Limit:  topK + 1, // the item matches itself
	})
	if err != nil {
		return nil, err
	}

	results := make([]*SearchResult, 0, topK)
	for _, hit := range hits {
		if hit.Item.ID == itemID {
			continue
		}
		if len(results) == topK {
			break
		}
		results = append(results, hit)
	}
	return results, nil
}

// Feedback records quality feedback on a logged query. A non-empty
// correction enters the ingestion pipeline as a tier 4 AI-reviewed item and
// is never auto-approved.
func (s *QueryService) Feedback(ctx context.Context, scope domain.Scope, queryID string, helpful bool, comment, correction string) (*domain.QueryFeedback, error) {
	logEntry, err := s.queryLogRepo.GetByID(ctx, queryID)
	if err != nil {
		return nil, err
	}
	if logEntry.OrgID != scope.OrgID {
		return nil, domain.ErrQueryLogNotFound
	}

	feedback := &domain.QueryFeedback{
		ID:         s.uuidGen.NewString(),
		QueryLogID: queryID,
		Helpful:    helpful,
		Comment:    comment,
		Correction: correction,
		CreatedAt:  time.Now().UTC(),
	}

	if correction = strings.TrimSpace(correction); correction != "" {
		result, err := s.ingestor.Ingest(ctx, IngestSubmission{
			Scope:        scope,
			CategoryCode: domain.CategoryFeedback,
			Title:        "Correction for query: " + truncate(logEntry.QueryText, 120),
			Body:         correction,
			Tags:         []string{"feedback", "correction"},
			Source:       domain.SourceAIGenerated,
			SourceRef:    "feedback:" + feedback.ID,
			Tier:         domain.TierAIGenerated,
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return nil, err
		}
		if result != nil && len(result.ItemIDs) > 0 {
			feedback.ItemID = result.ItemIDs[0]
		}
	}

	if err := s.queryLogRepo.CreateFeedback(ctx, feedback); err != nil {
		return nil, err
	}
	return feedback, nil
}

func (s *QueryService) logQuery(ctx context.Context, orgID string, kind domain.QueryKind, text string, results []*SearchResult, started time.Time) string {
	entry := &domain.QueryLog{
		ID:          s.uuidGen.NewString(),
		OrgID:       orgID,
		Kind:        kind,
		QueryText:   text,
		ResultCount: len(results),
		LatencyMS:   time.Since(started).Milliseconds(),
		CreatedAt:   time.Now().UTC(),
	}
	for _, r := range results {
		entry.ItemIDs = append(entry.ItemIDs, r.Item.ID)
	}
	if len(results) > 0 {
		entry.TopSimilarity = results[0].Similarity
	}

	// Logging never fails the query itself.
	if err := s.queryLogRepo.Create(ctx, entry); err != nil {
		return ""
	}
	return entry.ID
}

const askSystemPrompt = `You answer questions using only the numbered source blocks provided. ` +
	`Cite sources as [n]. If the sources do not contain the answer, say so plainly. ` +
	`Never invent facts that are not in the sources.`

func buildAskPrompt(question string, hits []*SearchResult) string {
	var b strings.Builder
	b.WriteString("Sources:\n\n")
	for i, hit := range hits {
		fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, hit.Item.Title, hit.Item.Body)
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

func confidenceLabel(topSimilarity float64) string {
	switch {
	case topSimilarity >= 0.85:
		return "high"
	case topSimilarity >= 0.75:
		return "medium"
	default:
		return "low"
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
