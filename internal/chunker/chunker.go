// Package chunker splits extracted text into overlapping fixed-size
// segments suitable for embedding.
package chunker

import (
	"errors"
	"fmt"
)

const (
	// DefaultSize is the target chunk length in runes.
	DefaultSize = 1000
	// DefaultOverlap is how many runes consecutive chunks share.
	DefaultOverlap = 200
)

// ErrInvalidParameter is returned when size/overlap are misconfigured.
var ErrInvalidParameter = errors.New("invalid chunking parameters")

// Chunk is one contiguous span of the source text.
type Chunk struct {
	// Ordinal is the chunk's position in the sequence, starting at 0.
	Ordinal int
	// Text is the chunk content. Never empty.
	Text string
}

// Split cuts text into chunks of at most size runes, each overlapping its
// predecessor by overlap runes. Boundaries are rune positions; word and
// sentence breaks are not respected. The result is deterministic: the same
// input always yields the same sequence.
//
// If len(text) <= size the whole text is returned as a single chunk.
// Empty input yields no chunks.
func Split(text string, size, overlap int) ([]Chunk, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size %d must be positive", ErrInvalidParameter, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must satisfy 0 <= overlap < size (%d)", ErrInvalidParameter, overlap, size)
	}
	if text == "" {
		return nil, nil
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []Chunk{{Ordinal: 0, Text: text}}, nil
	}

	step := size - overlap
	chunks := make([]Chunk, 0, (len(runes)+step-1)/step)
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{Ordinal: len(chunks), Text: string(runes[start:end])})
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}

// SplitDefault applies Split with the default size and overlap.
func SplitDefault(text string) ([]Chunk, error) {
	return Split(text, DefaultSize, DefaultOverlap)
}
