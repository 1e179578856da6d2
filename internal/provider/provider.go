// Package provider defines the pluggable embedding and completion
// boundaries. Concrete backends register by name; the active provider is a
// deployment configuration value, never a compile-time constant.
package provider

import (
	"context"
	"errors"
)

var (
	// ErrEmptyText is returned when there is nothing to embed.
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when a backend yields a vector whose
	// length differs from its declared dimensionality.
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrUnknownProvider is returned for an unregistered provider name.
	ErrUnknownProvider = errors.New("unknown provider")
)

// EmbeddingProvider turns text into vectors. Implementations must return
// vectors of exactly Dimensions() length for the model named by ModelName().
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
	Dimensions() int
}

// CompletionProvider synthesizes an answer from a prompt. It is a black box
// to the engine; only the text contract is specified.
type CompletionProvider interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	CompletionModel() string
}
