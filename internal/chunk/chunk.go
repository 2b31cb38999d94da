package chunk

import (
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	StrategyRecursive = "recursive"
	StrategySliding   = "sliding"
	StrategyFixed     = "fixed"
)

// Splitter turns a document body into an ordered list of chunks.
type Splitter interface {
	Split(text string) ([]string, error)
}

// SplitterFunc adapts a function to Splitter.
type SplitterFunc func(text string) ([]string, error)

func (f SplitterFunc) Split(text string) ([]string, error) { return f(text) }

// New returns the splitter for strategy. Overlap is ignored by fixed.
func New(strategy string, size, overlap int) (Splitter, error) {
	if err := check(size, overlap); err != nil {
		return nil, err
	}
	switch strategy {
	case StrategyRecursive, "":
		return SplitterFunc(func(text string) ([]string, error) { return Recursive(text, size, overlap) }), nil
	case StrategySliding:
		return SplitterFunc(func(text string) ([]string, error) { return Sliding(text, size, overlap) }), nil
	case StrategyFixed:
		return SplitterFunc(func(text string) ([]string, error) { return Fixed(text, size) }), nil
	default:
		return nil, fmt.Errorf("unknown chunk strategy %q", strategy)
	}
}

// Fixed slices text into consecutive pieces of at most size runes. The
// pieces concatenate back to text; only the last one may be shorter.
func Fixed(text string, size int) ([]string, error) {
	return Sliding(text, size, 0)
}

// Sliding cuts windows of at most size runes, each starting size-overlap
// runes after the previous one, so neighbours share exactly overlap runes.
func Sliding(text string, size, overlap int) ([]string, error) {
	if err := check(size, overlap); err != nil {
		return nil, err
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}
	step := size - overlap
	var chunks []string
	for start := 0; ; start += step {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}

// Recursive splits on paragraph, line and word boundaries before falling
// back to characters, merging pieces up to size with overlap carried over.
func Recursive(text string, size, overlap int) ([]string, error) {
	if err := check(size, overlap); err != nil {
		return nil, err
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
	)
	chunks, err := splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("chunk: recursive split: %w", err)
	}
	return chunks, nil
}

func check(size, overlap int) error {
	if size <= 0 {
		return errors.New("chunk: size must be greater than zero")
	}
	if overlap < 0 {
		return errors.New("chunk: overlap cannot be negative")
	}
	if overlap >= size {
		return fmt.Errorf("chunk: overlap %d must be smaller than size %d", overlap, size)
	}
	return nil
}
