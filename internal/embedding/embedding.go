package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"

	"ecoroute/internal/config"
	"ecoroute/internal/llmservice"
	"ecoroute/internal/models"
)

// NewOllamaEmbedder creates an embedder backed by the Ollama embedding endpoint.
// Every call is bounded by the configured timeout. When CacheSize is set,
// query embeddings are kept in an LRU cache.
func NewOllamaEmbedder(LLMconfig *config.LLMConfig) (embeddings.Embedder, error) {
	log.Debug().Interface("config", map[string]string{
		"base_url":        LLMconfig.BaseURL,
		"embedding_model": LLMconfig.Model,
	}).Msg("Loaded embedder config")

	llm, err := ollama.New(
		ollama.WithServerURL(LLMconfig.BaseURL),
		ollama.WithModel(LLMconfig.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("init ollama embedder: %w", err)
	}
	impl, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	embedder := NewBounded(impl, LLMconfig.Model, LLMconfig.Timeout)
	if LLMconfig.CacheSize <= 0 {
		return embedder, nil
	}
	return NewCached(embedder, LLMconfig.CacheSize)
}

// Bounded puts a deadline on every embedding call and reports failures as
// llmservice.ErrServiceUnavailable.
type Bounded struct {
	impl    embeddings.Embedder
	model   string
	timeout time.Duration
}

func NewBounded(impl embeddings.Embedder, model string, timeout time.Duration) *Bounded {
	return &Bounded{impl: impl, model: model, timeout: timeout}
}

func (b *Bounded) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	vectors, err := b.impl.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, b.unavailable(err)
	}
	return vectors, nil
}

func (b *Bounded) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	vec, err := b.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, b.unavailable(err)
	}
	return vec, nil
}

func (b *Bounded) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, b.timeout)
}

func (b *Bounded) unavailable(err error) error {
	log.Error().Err(err).Str("model", b.model).Msg("Embedding call failed")
	return fmt.Errorf("%w: embedding %s: %w", llmservice.ErrServiceUnavailable, b.model, err)
}

// Cached memoizes EmbedQuery results. Document embeddings pass through.
type Cached struct {
	impl  embeddings.Embedder
	mu    sync.Mutex
	cache *lru.Cache[string, []float32]
}

func NewCached(impl embeddings.Embedder, size int) (*Cached, error) {
	if impl == nil {
		return nil, errors.New("embedder is required")
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("init embedding cache: %w", err)
	}
	return &Cached{impl: impl, cache: cache}, nil
}

func (c *Cached) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return c.impl.EmbedDocuments(ctx, texts)
}

func (c *Cached) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	vec, ok := c.cache.Get(text)
	c.mu.Unlock()
	if ok {
		return vec, nil
	}
	vec, err := c.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.cache.Add(text, vec)
	c.mu.Unlock()
	return vec, nil
}

// GenerateEmbedding embeds every chunk in one batch call
func GenerateEmbedding(ctx context.Context, embedder embeddings.Embedder, chunks []models.Chunk) ([]models.ChunkEmbedding, error) {
	if len(chunks) == 0 {
		log.Info().Msg("No chunks to embed")
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	chunkEmbeddings := make([]models.ChunkEmbedding, len(chunks))
	for i, c := range chunks {
		chunkEmbeddings[i] = models.ChunkEmbedding{Chunk: c, Embedding: vectors[i]}
	}
	return chunkEmbeddings, nil
}
