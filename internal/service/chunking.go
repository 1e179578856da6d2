package service

import (
	"strings"
	"sync"
	"unicode"
)

// ChunkConfig controls chunking for knowledge embeddings.
type ChunkConfig struct {
	MaxChars  int
	MinChars  int
	Overlap   int
	MaxChunks int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChars:  1200,
		MinChars:  400,
		Overlap:   200,
		MaxChunks: 40,
	}
}

// Chunker splits source content into semantically coherent pieces, each of
// which becomes its own knowledge item.
type Chunker interface {
	Chunk(text string, cfg ChunkConfig) []string
}

// ChunkerRegistry maps category codes to chunking strategies, falling back
// to a boundary chunker for unregistered categories.
type ChunkerRegistry struct {
	mu       sync.RWMutex
	chunkers map[string]Chunker
	fallback Chunker
}

func NewChunkerRegistry() *ChunkerRegistry {
	return &ChunkerRegistry{
		chunkers: make(map[string]Chunker),
		fallback: BoundaryChunker{},
	}
}

func (r *ChunkerRegistry) Register(categoryCode string, c Chunker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunkers[categoryCode] = c
}

func (r *ChunkerRegistry) For(categoryCode string) Chunker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.chunkers[categoryCode]; ok {
		return c
	}
	return r.fallback
}

// BoundaryChunker splits on markdown headings and blank lines first, then
// windows oversized sections by character count with overlap.
type BoundaryChunker struct{}

func (BoundaryChunker) Chunk(text string, cfg ChunkConfig) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	if cfg.MaxChars <= 0 {
		cfg = DefaultChunkConfig()
	}

	var chunks []string
	for _, section := range splitSections(clean) {
		for _, chunk := range chunkText(section, cfg) {
			if cfg.MaxChunks > 0 && len(chunks) >= cfg.MaxChunks {
				return chunks
			}
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

// splitSections breaks text at markdown headings and paragraph gaps, then
// re-merges adjacent fragments so sections keep a reasonable size.
func splitSections(text string) []string {
	lines := strings.Split(text, "\n")

	var sections []string
	var current strings.Builder
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sections = append(sections, s)
		}
		current.Reset()
	}

	blank := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "#"):
			flush()
			blank = 0
		case trimmed == "":
			blank++
			if blank >= 2 {
				flush()
				continue
			}
		default:
			blank = 0
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	flush()

	if len(sections) == 0 {
		return []string{text}
	}
	return sections
}

func chunkText(text string, cfg ChunkConfig) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	runes := []rune(clean)
	if len(runes) <= cfg.MaxChars {
		return []string{clean}
	}

	chunks := make([]string, 0, 8)
	start := 0
	for start < len(runes) {
		end := start + cfg.MaxChars
		if end > len(runes) {
			end = len(runes)
		}

		if end < len(runes) {
			cut := end
			minCut := start + cfg.MinChars
			if minCut > end {
				minCut = start
			}
			for i := end; i > minCut; i-- {
				if unicode.IsSpace(runes[i-1]) {
					cut = i
					break
				}
			}
			end = cut
		}

		if end <= start {
			break
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= len(runes) {
			break
		}

		nextStart := end
		if cfg.Overlap > 0 && end-start > cfg.Overlap {
			nextStart = end - cfg.Overlap
		}
		if nextStart <= start {
			nextStart = end
		}
		start = nextStart
	}

	return chunks
}
