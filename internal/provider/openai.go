package provider

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// Name is the registry key for the OpenAI-backed provider.
	Name = "openai"

	// DefaultEmbeddingModel is the OpenAI model used for embeddings.
	DefaultEmbeddingModel = string(openai.SmallEmbedding3)
	// DefaultEmbeddingDimensions matches text-embedding-3-small.
	DefaultEmbeddingDimensions = 1536
	// DefaultCompletionModel is used for answer synthesis.
	DefaultCompletionModel = openai.GPT4oMini

	// embedBatchMax bounds how many inputs go into one API call.
	embedBatchMax = 64
)

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	EmbeddingModel  string
	Dimensions      int
	CompletionModel string
}

// OpenAIProvider implements EmbeddingProvider and CompletionProvider against
// the OpenAI API.
type OpenAIProvider struct {
	client          *openai.Client
	embeddingModel  string
	dimensions      int
	completionModel string
}

// NewOpenAI creates a provider with defaults filled in.
func NewOpenAI(cfg OpenAIConfig) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.EmbeddingModel
	if model == "" {
		model = DefaultEmbeddingModel
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = DefaultEmbeddingDimensions
	}
	completion := cfg.CompletionModel
	if completion == "" {
		completion = DefaultCompletionModel
	}
	return &OpenAIProvider{
		client:          openai.NewClientWithConfig(clientCfg),
		embeddingModel:  model,
		dimensions:      dims,
		completionModel: completion,
	}
}

// ModelName returns the embedding model identifier stored with every vector.
func (p *OpenAIProvider) ModelName() string { return p.embeddingModel }

// Dimensions returns the declared vector dimensionality.
func (p *OpenAIProvider) Dimensions() int { return p.dimensions }

// CompletionModel returns the chat model used by Complete.
func (p *OpenAIProvider) CompletionModel() string { return p.completionModel }

// Embed generates an embedding for a single text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for several texts, splitting oversized
// batches to stay under the API input limit.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyText
	}
	for _, t := range texts {
		if t == "" {
			return nil, ErrEmptyText
		}
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchMax {
		end := start + embedBatchMax
		if end > len(texts) {
			end = len(texts)
		}

		resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input:      texts[start:end],
			Model:      openai.EmbeddingModel(p.embeddingModel),
			Dimensions: p.dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("create embeddings: %w", err)
		}
		if len(resp.Data) != end-start {
			return nil, errors.New("embedding response count mismatch")
		}
		for _, d := range resp.Data {
			if len(d.Embedding) != p.dimensions {
				return nil, fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, p.dimensions, len(d.Embedding))
			}
			out = append(out, d.Embedding)
		}
	}
	return out, nil
}

// Complete synthesizes an answer from the system prompt and user prompt.
func (p *OpenAIProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.completionModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
