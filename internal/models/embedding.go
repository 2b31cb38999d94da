package models

// Chunk represents a slice of knowledge text with its origin
type Chunk struct {
	ID      string
	Source  string
	Index   int
	Content string
}

// ChunkEmbedding pairs a chunk with its vector
type ChunkEmbedding struct {
	Chunk
	Embedding []float32
}

type PromptResponse struct {
	Query   string `json:"query"`
	Source  string `json:"source"`
	Content string `json:"content"`
}
