package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/prompts"

	"ecoroute/internal/chunk"
	"ecoroute/internal/llmservice"
	"ecoroute/internal/models"
	"ecoroute/internal/parser"
	"ecoroute/internal/retrieval"
)

var ErrEmptyQuestion = errors.New("question is empty")

// Store is a vector store holding knowledge chunks.
type Store interface {
	Add(ctx context.Context, chunks []models.Chunk) error
	Search(ctx context.Context, query string, k int) ([]models.Chunk, error)
}

// Answerer answers a question from the knowledge base.
type Answerer interface {
	Ask(ctx context.Context, question string) (models.PromptResponse, error)
}

// BuildPrompt renders the question-answering prompt around the retrieved context.
func BuildPrompt(retrieved, question string) (string, error) {
	tmpl := prompts.NewPromptTemplate(models.QAPromptTemplate, models.QAPromptVariables)
	return tmpl.Format(map[string]any{
		"context":  retrieved,
		"question": question,
	})
}

// ChunkCorpus splits every document of corpus, numbering chunks per source.
func ChunkCorpus(corpus *parser.Corpus, splitter chunk.Splitter) ([]models.Chunk, error) {
	var chunks []models.Chunk
	for _, doc := range corpus.Documents {
		parts, err := splitter.Split(doc.Content)
		if err != nil {
			return nil, fmt.Errorf("split %s: %w", doc.Source, err)
		}
		for i, p := range parts {
			chunks = append(chunks, models.Chunk{
				ID:      fmt.Sprintf("%s#%d", doc.Source, i),
				Source:  doc.Source,
				Index:   i,
				Content: p,
			})
		}
	}
	return chunks, nil
}

func cleanQuestion(question string) (string, error) {
	q := strings.TrimSpace(question)
	if q == "" {
		return "", ErrEmptyQuestion
	}
	return q, nil
}

// answer sends the prompt for question and retrieved context to the model.
func answer(ctx context.Context, llm llmservice.Client, question, retrieved string) (models.PromptResponse, error) {
	prompt, err := BuildPrompt(retrieved, question)
	if err != nil {
		return models.PromptResponse{}, fmt.Errorf("build prompt: %w", err)
	}
	log.Debug().Int("prompt_chars", len(prompt)).Msg("Sending prompt")

	content, err := llm.Answer(ctx, prompt)
	if err != nil {
		return models.PromptResponse{}, err
	}
	return models.PromptResponse{Query: question, Source: retrieved, Content: content}, nil
}

// VectorQA retrieves the top k chunks from a vector store and stuffs them
// into the prompt.
type VectorQA struct {
	store    Store
	llm      llmservice.Client
	splitter chunk.Splitter
	topK     int
}

func NewVectorQA(store Store, llm llmservice.Client, splitter chunk.Splitter, topK int) *VectorQA {
	if topK <= 0 {
		topK = 1
	}
	return &VectorQA{store: store, llm: llm, splitter: splitter, topK: topK}
}

// Ingest chunks the corpus and adds every chunk to the store.
func (q *VectorQA) Ingest(ctx context.Context, corpus *parser.Corpus) (int, error) {
	chunks, err := ChunkCorpus(corpus, q.splitter)
	if err != nil {
		return 0, err
	}
	if err := q.store.Add(ctx, chunks); err != nil {
		return 0, err
	}
	log.Info().Int("documents", len(corpus.Documents)).Int("chunks", len(chunks)).Msg("Ingested knowledge")
	return len(chunks), nil
}

func (q *VectorQA) Ask(ctx context.Context, question string) (models.PromptResponse, error) {
	question, err := cleanQuestion(question)
	if err != nil {
		return models.PromptResponse{}, err
	}

	chunks, err := q.store.Search(ctx, question, q.topK)
	if err != nil {
		// a failed search means the embedding service or database is down
		if errors.Is(err, llmservice.ErrServiceUnavailable) {
			return models.PromptResponse{}, fmt.Errorf("retrieve context: %w", err)
		}
		return models.PromptResponse{}, fmt.Errorf("%w: retrieve context: %w", llmservice.ErrServiceUnavailable, err)
	}
	if len(chunks) == 0 {
		return models.PromptResponse{}, fmt.Errorf("%w: ingest the knowledge files first", retrieval.ErrEmptyIndex)
	}

	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}
	log.Debug().Int("chunks", len(chunks)).Str("question", question).Msg("Retrieved context")
	return answer(ctx, q.llm, question, strings.Join(parts, models.ContextSeparator))
}

// NaiveQA concatenates the corpus, slices it into fixed-size chunks and picks
// the single chunk whose character-code vector is closest to the question.
type NaiveQA struct {
	index *retrieval.Index
	llm   llmservice.Client
}

func NewNaiveQA(corpus *parser.Corpus, embedder retrieval.Embedder, llm llmservice.Client, chunkSize int) (*NaiveQA, error) {
	parts, err := chunk.Fixed(corpus.Text(), chunkSize)
	if err != nil {
		return nil, err
	}
	chunks := make([]models.Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = models.Chunk{ID: fmt.Sprintf("corpus#%d", i), Source: "corpus", Index: i, Content: p}
	}
	log.Debug().Int("chunks", len(chunks)).Int("chunk_size", chunkSize).Msg("Built naive index")
	return &NaiveQA{index: retrieval.NewIndex(embedder, chunks), llm: llm}, nil
}

func (q *NaiveQA) Ask(ctx context.Context, question string) (models.PromptResponse, error) {
	question, err := cleanQuestion(question)
	if err != nil {
		return models.PromptResponse{}, err
	}
	match, err := q.index.Best(question)
	if err != nil {
		return models.PromptResponse{}, err
	}
	log.Debug().Int("chunk", match.Chunk.Index).Float64("score", match.Score).Msg("Best chunk")
	return answer(ctx, q.llm, question, match.Chunk.Content)
}
