package provider

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds named embedding and completion providers. Registration
// happens at process start; lookups are concurrency-safe.
type Registry struct {
	mu         sync.RWMutex
	embedders  map[string]EmbeddingProvider
	completers map[string]CompletionProvider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		embedders:  make(map[string]EmbeddingProvider),
		completers: make(map[string]CompletionProvider),
	}
}

// RegisterEmbedding adds an embedding provider under name, replacing any
// previous registration.
func (r *Registry) RegisterEmbedding(name string, p EmbeddingProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embedders[name] = p
}

// RegisterCompletion adds a completion provider under name.
func (r *Registry) RegisterCompletion(name string, p CompletionProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completers[name] = p
}

// Embedding returns the embedding provider registered under name.
func (r *Registry) Embedding(name string) (EmbeddingProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.embedders[name]
	if !ok {
		return nil, fmt.Errorf("%w: embedding provider %q", ErrUnknownProvider, name)
	}
	return p, nil
}

// Completion returns the completion provider registered under name.
func (r *Registry) Completion(name string) (CompletionProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.completers[name]
	if !ok {
		return nil, fmt.Errorf("%w: completion provider %q", ErrUnknownProvider, name)
	}
	return p, nil
}

// EmbeddingNames lists registered embedding provider names, sorted.
func (r *Registry) EmbeddingNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.embedders))
	for name := range r.embedders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
