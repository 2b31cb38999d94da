package retrieval

import (
	"errors"
	"math"
	"sort"

	"ecoroute/internal/models"
)

var ErrEmptyIndex = errors.New("retrieval index has no chunks")

// Embedder maps text to a fixed-length vector.
type Embedder interface {
	Embed(text string) []float64
}

// Match is a chunk with its similarity to the query.
type Match struct {
	Chunk models.Chunk
	Score float64
}

// Index holds chunk vectors in memory for brute-force cosine search.
type Index struct {
	embedder Embedder
	chunks   []models.Chunk
	vectors  [][]float64
}

func NewIndex(embedder Embedder, chunks []models.Chunk) *Index {
	idx := &Index{
		embedder: embedder,
		chunks:   chunks,
		vectors:  make([][]float64, len(chunks)),
	}
	for i, c := range chunks {
		idx.vectors[i] = embedder.Embed(c.Content)
	}
	return idx
}

func (idx *Index) Len() int { return len(idx.chunks) }

// Best returns the chunk most similar to query. The first chunk wins ties,
// so a query with no signal (such as the empty string) yields chunk zero.
func (idx *Index) Best(query string) (Match, error) {
	if len(idx.chunks) == 0 {
		return Match{}, ErrEmptyIndex
	}
	q := idx.embedder.Embed(query)
	best := 0
	bestScore := Cosine(q, idx.vectors[0])
	for i := 1; i < len(idx.vectors); i++ {
		if s := Cosine(q, idx.vectors[i]); s > bestScore {
			best, bestScore = i, s
		}
	}
	return Match{Chunk: idx.chunks[best], Score: bestScore}, nil
}

// Top returns up to k matches by descending score, ties in index order.
func (idx *Index) Top(query string, k int) ([]Match, error) {
	if len(idx.chunks) == 0 {
		return nil, ErrEmptyIndex
	}
	q := idx.embedder.Embed(query)
	matches := make([]Match, len(idx.chunks))
	for i := range idx.chunks {
		matches[i] = Match{Chunk: idx.chunks[i], Score: Cosine(q, idx.vectors[i])}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if k <= 0 || k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}

// Cosine is the dot product of a and b over the product of their norms.
// It is 0 when the lengths differ or either vector has zero norm.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
