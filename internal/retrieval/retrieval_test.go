package retrieval

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoroute/internal/embedding"
	"ecoroute/internal/models"
)

func chunks(texts ...string) []models.Chunk {
	out := make([]models.Chunk, len(texts))
	for i, t := range texts {
		out[i] = models.Chunk{Index: i, Content: t}
	}
	return out
}

func TestCosine(t *testing.T) {
	e := embedding.NewCharCode(0)
	t.Run("ShouldBeOneForIdenticalText", func(t *testing.T) {
		v := e.Embed("Metro Rail: greenest option")
		assert.InDelta(t, 1.0, Cosine(v, v), 1e-12)
		assert.InDelta(t, 1.0, Cosine(v, e.Embed("Metro Rail: greenest option")), 1e-12)
	})
	t.Run("ShouldBeZeroForZeroNorm", func(t *testing.T) {
		zero := e.Embed("")
		got := Cosine(zero, e.Embed("bus"))
		assert.False(t, math.IsNaN(got))
		assert.Zero(t, got)
		assert.Zero(t, Cosine(e.Embed("\x00\x00"), e.Embed("bus")))
	})
	t.Run("ShouldBeZeroForMismatchedLengths", func(t *testing.T) {
		assert.Zero(t, Cosine([]float64{1, 2}, []float64{1, 2, 3}))
	})
	t.Run("ShouldStayWithinUnitRange", func(t *testing.T) {
		got := Cosine([]float64{1, -2, 3}, []float64{-1, 2, -3})
		assert.InDelta(t, -1.0, got, 1e-12)
	})
}

func TestIndex(t *testing.T) {
	e := embedding.NewCharCode(0)
	docs := chunks(
		"SUV emits 0.213 kg of CO2 per km.",
		"Metro Rail: greenest option, 0.011 kg CO2 per passenger-km.",
		"Walking/Cycling: Zero emissions.",
	)
	idx := NewIndex(e, docs)

	t.Run("ShouldReturnExactMatch", func(t *testing.T) {
		m, err := idx.Best("Walking/Cycling: Zero emissions.")
		require.NoError(t, err)
		assert.Equal(t, 2, m.Chunk.Index)
		assert.InDelta(t, 1.0, m.Score, 1e-12)
	})
	t.Run("ShouldFallBackToFirstChunkForEmptyQuery", func(t *testing.T) {
		m, err := idx.Best("")
		require.NoError(t, err)
		assert.Equal(t, 0, m.Chunk.Index)
		assert.Zero(t, m.Score)
	})
	t.Run("ShouldPreferFirstOccurrenceOnTies", func(t *testing.T) {
		dup := NewIndex(e, chunks("same text", "other", "same text"))
		m, err := dup.Best("same text")
		require.NoError(t, err)
		assert.Equal(t, 0, m.Chunk.Index)
	})
	t.Run("ShouldIgnoreQueryTextPastDimension", func(t *testing.T) {
		long := strings.Repeat("x", 300)
		a, err := idx.Best(long + "Metro")
		require.NoError(t, err)
		b, err := idx.Best(long + "Walking")
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})
	t.Run("ShouldRankTopMatches", func(t *testing.T) {
		top, err := idx.Top("Walking/Cycling: Zero emissions.", 2)
		require.NoError(t, err)
		require.Len(t, top, 2)
		assert.Equal(t, 2, top[0].Chunk.Index)
		assert.GreaterOrEqual(t, top[0].Score, top[1].Score)
	})
	t.Run("ShouldFailOnEmptyIndex", func(t *testing.T) {
		_, err := NewIndex(e, nil).Best("metro")
		assert.ErrorIs(t, err, ErrEmptyIndex)
		_, err = NewIndex(e, nil).Top("metro", 1)
		assert.ErrorIs(t, err, ErrEmptyIndex)
	})
}
