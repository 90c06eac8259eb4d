package chunker

import (
	"errors"
	"fmt"
	"iter"
	"strconv"

	"ragchat/internal/domain"
)

// ErrInvalidConfig is returned for a size/overlap pair that cannot make progress.
var ErrInvalidConfig = errors.New("invalid chunker configuration")

// CharacterChunker cuts documents into fixed-size windows of runes where
// consecutive windows share exactly overlap runes.
type CharacterChunker struct {
	size    int
	overlap int
}

func NewCharacterChunker(size, overlap int) (*CharacterChunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size must be > 0, got %d", ErrInvalidConfig, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap must be >= 0 and < size, got %d", ErrInvalidConfig, overlap)
	}
	return &CharacterChunker{size: size, overlap: overlap}, nil
}

func (c *CharacterChunker) Size() int    { return c.size }
func (c *CharacterChunker) Overlap() int { return c.overlap }

// Split lazily yields the chunks of document. The sequence is finite and
// deterministic; the last window always ends at the end of the text.
func (c *CharacterChunker) Split(document domain.Document) iter.Seq[domain.Chunk] {
	return func(yield func(domain.Chunk) bool) {
		runes := []rune(document.Content)
		if len(runes) == 0 {
			return
		}
		step := c.size - c.overlap
		idx := 0
		for start := 0; start < len(runes); start += step {
			end := start + c.size
			if end > len(runes) {
				end = len(runes)
			}
			chunk := domain.Chunk{
				DocumentID: document.ID,
				ChunkID:    document.ID + ":" + strconv.Itoa(idx),
				Index:      idx,
				Text:       string(runes[start:end]),
				Source:     document.Path,
				Metadata:   map[string]string{"source": document.Path},
			}
			if !yield(chunk) {
				return
			}
			if end == len(runes) {
				return
			}
			idx++
		}
	}
}

// Chunk collects Split into a slice.
func (c *CharacterChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for ch := range c.Split(document) {
		chunks = append(chunks, ch)
	}
	return chunks, nil
}

var _ domain.Chunker = (*CharacterChunker)(nil)
