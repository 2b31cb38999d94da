package main

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"ecoroute/internal/chromemdb"
	"ecoroute/internal/chunk"
	"ecoroute/internal/config"
	"ecoroute/internal/db"
	"ecoroute/internal/embedding"
	"ecoroute/internal/emission"
	"ecoroute/internal/llmservice"
	"ecoroute/internal/parser"
	"ecoroute/internal/rag"
)

// vectorStore is a rag.Store that can report its size.
type vectorStore interface {
	rag.Store
	Count() int
}

func (c *cli) emissionTable() (*emission.Table, error) {
	if c.cfg.Emissions.File != "" {
		return emission.LoadTable(c.cfg.Emissions.File)
	}
	return emission.Builtin(c.cfg.Emissions.Table)
}

// corpus loads the knowledge files, reporting the ones that failed.
func (c *cli) corpus() (*parser.Corpus, error) {
	corpus, errs := parser.LoadWithFallback(c.cfg.Knowledge.Files, c.cfg.Knowledge.Builtin)
	for _, err := range errs {
		log.Warn().Err(err).Msg("Knowledge file not loaded")
	}
	if corpus.Empty() {
		return nil, parser.ErrNoKnowledge
	}
	return corpus, nil
}

func (c *cli) llm() (*llmservice.Ollama, error) {
	client, err := llmservice.NewOllama(&c.cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("error initializing llm: %w", err)
	}
	return client, nil
}

// openStore opens the configured store. The returned func releases it.
func (c *cli) openStore(ctx context.Context) (vectorStore, func(), error) {
	embedder, err := embedding.NewOllamaEmbedder(&c.cfg.EmbedLLM)
	if err != nil {
		return nil, nil, fmt.Errorf("error initializing embedder: %w", err)
	}

	switch c.cfg.RAG.Store {
	case config.StorePgvector:
		sqldb, err := db.ConnectDB(&c.cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("error connecting to database: %w", err)
		}
		store := db.NewStore(db.NewDB(sqldb, c.cfg.Database.Debug), embedder, c.cfg.Database.TableName)
		if err := store.Init(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("error initializing database: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	default:
		manager, err := chromemdb.NewVectorDBManager(c.cfg.RAG.PersistDir, c.cfg.RAG.Collection, embedFunc(embedder), c.cfg.RAG.EncryptionKey)
		if err != nil {
			return nil, nil, fmt.Errorf("error creating vector database manager: %w", err)
		}
		return manager, func() {}, nil
	}
}

func embedFunc(embedder embeddings.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return embedder.EmbedQuery(ctx, text)
	}
}

func (c *cli) splitter() (chunk.Splitter, error) {
	return chunk.New(c.cfg.RAG.ChunkStrategy, c.cfg.RAG.ChunkSize, c.cfg.RAG.ChunkOverlap)
}

// answerer builds the configured question answering pipeline. An empty
// vector store is filled from the knowledge files first.
func (c *cli) answerer(ctx context.Context, naive bool) (rag.Answerer, func(), error) {
	llm, err := c.llm()
	if err != nil {
		return nil, nil, err
	}
	corpus, err := c.corpus()
	if err != nil {
		return nil, nil, err
	}

	if naive || c.cfg.RAG.Mode == config.ModeNaive {
		qa, err := rag.NewNaiveQA(corpus, embedding.NewCharCode(c.cfg.RAG.NaiveDimension), llm, c.cfg.RAG.NaiveChunkSize)
		if err != nil {
			return nil, nil, err
		}
		return qa, func() {}, nil
	}

	store, release, err := c.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	splitter, err := c.splitter()
	if err != nil {
		release()
		return nil, nil, err
	}
	qa := rag.NewVectorQA(store, llm, splitter, c.cfg.RAG.TopK)
	if store.Count() == 0 {
		log.Info().Msg("Vector store is empty, ingesting knowledge files")
		if _, err := qa.Ingest(ctx, corpus); err != nil {
			release()
			return nil, nil, fmt.Errorf("error ingesting knowledge: %w", err)
		}
	}
	return qa, release, nil
}

// resetStore drops every stored chunk.
func resetStore(ctx context.Context, store vectorStore) error {
	switch s := store.(type) {
	case *chromemdb.VectorDBManager:
		return s.Reset()
	case *db.Store:
		if err := s.Drop(ctx); err != nil {
			return err
		}
		return s.Init(ctx)
	default:
		return fmt.Errorf("cannot reset %T", store)
	}
}
